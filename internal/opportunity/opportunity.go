// Package opportunity exposes the query and resolution surface over
// detected opportunities.
package opportunity

import (
	"fmt"
	"time"

	"github.com/bagula/platform/internal/models"
	"gorm.io/gorm"
)

// Filters narrows an agent-level opportunity query. Zero values match
// everything.
type Filters struct {
	Since    time.Time
	Type     string
	Severity string
	Resolved *bool
}

// Summary aggregates a set of opportunities for dashboards and the CLI.
type Summary struct {
	Total                    int            `json:"total"`
	Unresolved               int            `json:"unresolved"`
	ByType                   map[string]int `json:"by_type"`
	BySeverity               map[string]int `json:"by_severity"`
	EstimatedSavingsUSD      float64        `json:"estimated_savings_usd"`
	EstimatedLatencySavingMS int64          `json:"estimated_latency_saving_ms"`
}

// ForSession returns every opportunity detected for one session, newest
// first.
func ForSession(db *gorm.DB, sessionID string) ([]models.Opportunity, error) {
	var ops []models.Opportunity
	if err := db.Where("session_id = ?", sessionID).
		Order("detected_at DESC").Find(&ops).Error; err != nil {
		return nil, fmt.Errorf("opportunity: query session %s: %w", sessionID, err)
	}
	return ops, nil
}

// ForAgent returns an agent's opportunities matching the filters, newest
// first.
func ForAgent(db *gorm.DB, agent string, f Filters) ([]models.Opportunity, error) {
	q := db.Where("agent_name = ?", agent)
	if !f.Since.IsZero() {
		q = q.Where("detected_at >= ?", f.Since)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Severity != "" {
		q = q.Where("severity = ?", f.Severity)
	}
	if f.Resolved != nil {
		q = q.Where("resolved = ?", *f.Resolved)
	}

	var ops []models.Opportunity
	if err := q.Order("detected_at DESC").Find(&ops).Error; err != nil {
		return nil, fmt.Errorf("opportunity: query agent %s: %w", agent, err)
	}
	return ops, nil
}

// Summarize aggregates counts and estimated impact over a result set.
func Summarize(ops []models.Opportunity) Summary {
	s := Summary{
		Total:      len(ops),
		ByType:     make(map[string]int),
		BySeverity: make(map[string]int),
	}
	for _, op := range ops {
		s.ByType[op.Type]++
		s.BySeverity[op.Severity]++
		if !op.Resolved {
			s.Unresolved++
		}
		if op.EstimatedSavingsUSD != nil {
			s.EstimatedSavingsUSD += *op.EstimatedSavingsUSD
		}
		if op.EstimatedLatencySavingMS != nil {
			s.EstimatedLatencySavingMS += *op.EstimatedLatencySavingMS
		}
	}
	return s
}

// Resolve marks an opportunity resolved with an optional note. Resolving an
// already-resolved opportunity is a no-op that preserves the original note
// and timestamp.
func Resolve(db *gorm.DB, id, note string) (*models.Opportunity, error) {
	var op models.Opportunity
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&op).Error; err != nil {
			return fmt.Errorf("opportunity: resolve %s: %w", id, err)
		}
		if op.Resolved {
			return nil
		}
		now := time.Now()
		if err := tx.Model(&models.Opportunity{}).Where("id = ?", id).Updates(map[string]interface{}{
			"resolved":        true,
			"resolution_note": note,
			"resolved_at":     now,
		}).Error; err != nil {
			return fmt.Errorf("opportunity: resolve %s: %w", id, err)
		}
		op.Resolved = true
		op.ResolutionNote = note
		op.ResolvedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &op, nil
}
