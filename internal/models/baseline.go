package models

import "time"

// Baseline is a saved reference session for one agent, used for regression
// comparison. At most one baseline is active per agent name at any time; the
// baseline manager enforces this with an atomic deactivate-then-activate swap.
type Baseline struct {
	ID        string `gorm:"primaryKey;size:64"`
	AgentName string `gorm:"size:128;index"`
	SessionID string `gorm:"size:64"`
	Active    bool   `gorm:"default:false;index"`

	// Metric snapshot taken when the baseline was saved.
	AvgLatencyMS  float64
	TotalCostUSD  float64
	TotalTokens   int64
	TurnCount     int
	ToolNames     string `gorm:"type:json"`
	OutputSummary string `gorm:"type:text"`

	Tags      string `gorm:"type:json"`
	CreatedAt time.Time
}
