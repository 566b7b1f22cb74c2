package models

import "time"

// Session outcome statuses.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeAbandoned = "abandoned"
)

// Session is one complete agent execution trace, from initial request to
// final outcome. Sessions are immutable once EndTime is recorded; analyzers
// only read them and write Opportunities/Baselines.
type Session struct {
	ID                string `gorm:"primaryKey;size:64"`
	AgentName         string `gorm:"size:128;not null;index"`
	UserID            string `gorm:"size:128"`
	StartTime         time.Time
	EndTime           *time.Time
	InitialRequest    string   `gorm:"type:text"`
	OutcomeStatus     string   `gorm:"size:16"`
	OutcomeResult     string   `gorm:"type:text"`
	SatisfactionScore *float64
	Metadata          string `gorm:"type:json"`
	Tags              string `gorm:"type:json"`
	CreatedAt         time.Time

	Turns []Turn `gorm:"foreignKey:SessionID"`
}

// Turn is one request/response exchange within a session.
type Turn struct {
	ID              string `gorm:"primaryKey;size:64"`
	SessionID       string `gorm:"size:64;index;uniqueIndex:idx_turn_number,priority:1"`
	TurnNumber      int    `gorm:"uniqueIndex:idx_turn_number,priority:2"`
	Timestamp       time.Time
	TriggerType     string `gorm:"size:32"`
	TriggerContent  string `gorm:"type:text"`
	ResponseMessage string `gorm:"type:text"`
	FeedbackRating  *int
	FeedbackComment string `gorm:"type:text"`

	ModelCalls []ModelCall `gorm:"foreignKey:TurnID"`
	ToolCalls  []ToolCall  `gorm:"foreignKey:TurnID"`
}

// ModelCall records a single LLM invocation within a turn. Token counts and
// cost are write-once at creation. Request/Response are opaque payloads; the
// core never assumes schema beyond size.
type ModelCall struct {
	ID           string `gorm:"primaryKey;size:64"`
	TurnID       string `gorm:"size:64;index"`
	SessionID    string `gorm:"size:64;index"`
	Provider     string `gorm:"size:64"`
	Model        string `gorm:"size:128"`
	StartTime    time.Time
	EndTime      time.Time
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
	LatencyMS    int64
	Request      string `gorm:"type:json"`
	Response     string `gorm:"type:json"`
}

// ToolCall records a single tool invocation within a turn. Result and Error
// are mutually exclusive; a call carrying neither is a data-quality signal
// surfaced by the quality detector, not assumed to be a failure.
type ToolCall struct {
	ID        string `gorm:"primaryKey;size:64"`
	TurnID    string `gorm:"size:64;index"`
	SessionID string `gorm:"size:64;index"`
	ToolName  string `gorm:"size:128;index"`
	Arguments string `gorm:"type:json"`
	StartTime time.Time
	EndTime   time.Time
	Result    string `gorm:"type:text"`
	Error     string `gorm:"type:text"`
	LatencyMS int64
}

// Failed reports whether the call recorded an error.
func (tc *ToolCall) Failed() bool { return tc.Error != "" }

// Unrecorded reports whether the call completed with neither a result nor an
// error.
func (tc *ToolCall) Unrecorded() bool { return tc.Result == "" && tc.Error == "" }
