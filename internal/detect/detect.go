// Package detect implements the stateless rule-based opportunity detectors.
// Each detector is a pure function over a session graph plus injected
// thresholds; no detector has an unhandled-error path, since a failure here
// must never abort sibling analysis jobs.
package detect

import (
	"time"

	"github.com/bagula/platform/internal/models"
	"github.com/google/uuid"
)

// newOpportunity builds an opportunity row for a session.
func newOpportunity(session *models.Session, typ, severity, title, description, action string) models.Opportunity {
	return models.Opportunity{
		ID:              uuid.NewString(),
		SessionID:       session.ID,
		AgentName:       session.AgentName,
		Type:            typ,
		Severity:        severity,
		Title:           title,
		Description:     description,
		SuggestedAction: action,
		DetectedAt:      time.Now(),
	}
}

// severityByRatio maps how far a value exceeds its threshold to a severity:
// up to 2x is low, up to 5x is medium, beyond that high.
func severityByRatio(actual, threshold float64) string {
	if threshold <= 0 {
		return models.SeverityLow
	}
	ratio := actual / threshold
	switch {
	case ratio > 5:
		return models.SeverityHigh
	case ratio > 2:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func f64ptr(v float64) *float64 { return &v }
func i64ptr(v int64) *int64     { return &v }
