package models

import "time"

// Analyzer types scheduled per ingested session.
const (
	AnalyzerCost        = "cost"
	AnalyzerPerformance = "performance"
	AnalyzerQuality     = "quality"
	AnalyzerRegression  = "regression"
)

// AllAnalyzers returns the analyzer types enqueued for every session.
func AllAnalyzers() []string {
	return []string{AnalyzerCost, AnalyzerPerformance, AnalyzerQuality, AnalyzerRegression}
}

// AnalysisJob statuses.
const (
	JobPending = "pending"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

// AnalysisJob is one unit of analysis work, keyed by (session, analyzer).
// The unique composite index makes enqueue idempotent: re-ingesting a session
// never creates duplicate work. Jobs that exhaust their attempt budget stay
// in status "failed" as an operator-visible dead-letter record.
type AnalysisJob struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	SessionID   string `gorm:"size:64;uniqueIndex:idx_session_analyzer,priority:1"`
	Analyzer    string `gorm:"size:16;uniqueIndex:idx_session_analyzer,priority:2;index"`
	AgentName   string `gorm:"size:128"`
	Status      string `gorm:"size:16;default:pending;index"`
	Attempts    int    `gorm:"default:0"`
	NextRunAt   time.Time `gorm:"index"`
	ClaimedBy   string    `gorm:"size:64"`
	LastError   string    `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}
