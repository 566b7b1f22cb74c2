package baseline

import (
	"fmt"
	"strings"

	"github.com/bagula/platform/internal/config"
	"github.com/bagula/platform/internal/metrics"
	"github.com/bagula/platform/internal/models"
)

// Difference types.
const (
	DiffOutput = "output"
	DiffTools  = "tools"
	DiffMetric = "metric"
)

// Difference severities.
const (
	DiffMinor    = "minor"
	DiffMajor    = "major"
	DiffCritical = "critical"
)

// Difference is one typed deviation between baseline and current.
type Difference struct {
	Type        string
	Severity    string
	Description string
}

// MetricDeltas holds percent changes from baseline to current. Deltas
// against a zero baseline denominator are 0 by definition.
type MetricDeltas struct {
	LatencyPct float64
	CostPct    float64
	TokensPct  float64
}

// Comparison is the full result of comparing a session against a baseline.
// The manager only reports; consumers decide how to react.
type Comparison struct {
	OutputSimilarity float64
	Differences      []Difference
	Deltas           MetricDeltas
}

// Compare computes a structured diff between a baseline and a current
// session snapshot. It never fails: every guard degrades to a defined value.
func Compare(b *models.Baseline, cur Snapshot, cfg config.BaselineThresholds) Comparison {
	cmp := Comparison{
		OutputSimilarity: Similarity(b.OutputSummary, cur.OutputSummary),
	}

	if cmp.OutputSimilarity < cfg.SimilarityThreshold {
		sev := DiffMinor
		switch {
		case cmp.OutputSimilarity < 0.5:
			sev = DiffCritical
		case cmp.OutputSimilarity < 0.7:
			sev = DiffMajor
		}
		cmp.Differences = append(cmp.Differences, Difference{
			Type:     DiffOutput,
			Severity: sev,
			Description: fmt.Sprintf("output similarity %.2f below threshold %.2f",
				cmp.OutputSimilarity, cfg.SimilarityThreshold),
		})
	}

	baseTools := toolSet(decodeTools(b.ToolNames))
	curTools := toolSet(cur.ToolNames)
	for tool := range baseTools {
		if !curTools[tool] {
			cmp.Differences = append(cmp.Differences, Difference{
				Type:        DiffTools,
				Severity:    DiffMajor,
				Description: fmt.Sprintf("tool %q used in baseline but not in current session", tool),
			})
		}
	}
	for tool := range curTools {
		if !baseTools[tool] {
			cmp.Differences = append(cmp.Differences, Difference{
				Type:        DiffTools,
				Severity:    DiffMinor,
				Description: fmt.Sprintf("tool %q is new relative to baseline", tool),
			})
		}
	}

	cmp.Deltas = MetricDeltas{
		LatencyPct: metrics.PercentChange(b.AvgLatencyMS, cur.AvgLatencyMS),
		CostPct:    metrics.PercentChange(b.TotalCostUSD, cur.TotalCostUSD),
		TokensPct:  metrics.PercentChange(float64(b.TotalTokens), float64(cur.TotalTokens)),
	}

	swing := cfg.MetricSwingPct
	for _, m := range []struct {
		name     string
		pct      float64
		severity string
	}{
		{"latency", cmp.Deltas.LatencyPct, DiffMajor},
		{"cost", cmp.Deltas.CostPct, DiffMajor},
		{"tokens", cmp.Deltas.TokensPct, DiffMinor},
	} {
		if abs(m.pct) > swing {
			cmp.Differences = append(cmp.Differences, Difference{
				Type:        DiffMetric,
				Severity:    m.severity,
				Description: fmt.Sprintf("%s changed %+.1f%% from baseline", m.name, m.pct),
			})
		}
	}

	return cmp
}

// Similarity computes the token-set (bag-of-words, case-folded) Jaccard
// similarity between two texts. Symmetric; Similarity(a, a) == 1. Two empty
// texts are identical by definition.
func Similarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = true
	}
	return set
}

func toolSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		if n != "" {
			set[n] = true
		}
	}
	return set
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
