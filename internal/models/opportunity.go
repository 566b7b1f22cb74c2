package models

import "time"

// Opportunity types.
const (
	TypeCost        = "cost"
	TypePerformance = "performance"
	TypeQuality     = "quality"
	TypeRegression  = "regression"
)

// Opportunity severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Opportunity is a detected, actionable improvement for a session. Rows are
// write-once except the resolution fields, which flip exactly once.
type Opportunity struct {
	ID                       string `gorm:"primaryKey;size:64"`
	SessionID                string `gorm:"size:64;index"`
	AgentName                string `gorm:"size:128;index"`
	Type                     string `gorm:"size:16;index"`
	Severity                 string `gorm:"size:8;index"`
	Title                    string `gorm:"size:255"`
	Description              string `gorm:"type:text"`
	SuggestedAction          string `gorm:"type:text"`
	EstimatedSavingsUSD      *float64
	EstimatedLatencySavingMS *int64
	DetectedAt               time.Time
	Resolved                 bool `gorm:"default:false;index"`
	ResolutionNote           string `gorm:"type:text"`
	ResolvedAt               *time.Time
}
