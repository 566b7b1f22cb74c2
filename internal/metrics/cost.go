// Package metrics implements the pure computation layer: token cost
// pricing, descriptive statistics, and threshold checks.
package metrics

import (
	"log"
	"strings"

	"github.com/bagula/platform/internal/models"
	"gorm.io/gorm"
)

// PriceTable resolves model strings to per-million-token rates.
type PriceTable struct {
	exact    map[string]models.ModelPrice
	families []models.ModelPrice
	fallback models.ModelPrice
}

// NewPriceTable builds a table from price rows. When no row carries
// IsDefault, sonnet-tier rates are used as the fallback.
func NewPriceTable(rows []models.ModelPrice) *PriceTable {
	t := &PriceTable{
		exact:    make(map[string]models.ModelPrice, len(rows)),
		fallback: models.ModelPrice{Model: "default", InputPerMillion: 3.0, OutputPerMillion: 15.0},
	}
	for _, r := range rows {
		t.exact[normalize(r.Model)] = r
		if r.Family != "" {
			t.families = append(t.families, r)
		}
		if r.IsDefault {
			t.fallback = r
		}
	}
	return t
}

// LoadPriceTable reads the price table from the store.
func LoadPriceTable(db *gorm.DB) (*PriceTable, error) {
	var rows []models.ModelPrice
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	return NewPriceTable(rows), nil
}

// Resolve returns the price row for a model string: exact match first, then
// the longest matching family substring (so "gpt-5-mini-2025" resolves to
// "gpt-5-mini", not "gpt-5", regardless of row order), then the default
// row. An unresolved model is logged as a warning, never an error.
func (t *PriceTable) Resolve(model string) models.ModelPrice {
	norm := normalize(model)
	if p, ok := t.exact[norm]; ok {
		return p
	}
	var best models.ModelPrice
	bestLen := 0
	for _, p := range t.families {
		fam := normalize(p.Family)
		if strings.Contains(norm, fam) && len(fam) > bestLen {
			best = p
			bestLen = len(fam)
		}
	}
	if bestLen > 0 {
		return best
	}
	log.Printf("metrics: unknown model %q, using default pricing", model)
	return t.fallback
}

// Cost computes the USD cost of a call. Linear in input and output token
// counts independently; always >= 0.
func (t *PriceTable) Cost(model string, inputTokens, outputTokens int64) float64 {
	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}
	p := t.Resolve(model)
	return float64(inputTokens)*p.InputPerMillion/1_000_000 +
		float64(outputTokens)*p.OutputPerMillion/1_000_000
}

// IsPremium reports whether the model matches any of the given premium
// family prefixes.
func IsPremium(model string, premiumFamilies []string) bool {
	norm := normalize(model)
	for _, fam := range premiumFamilies {
		if strings.Contains(norm, normalize(fam)) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
