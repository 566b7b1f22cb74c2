package analytics

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/bagula/platform/internal/config"
	"github.com/bagula/platform/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Session{}, &models.ModelCall{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

// seedSession creates a session with one model call carrying the given cost
// and token count, lasting latency milliseconds.
func seedSession(t *testing.T, db *gorm.DB, id, agent, outcome string, cost float64, tokens, latencyMS int64, age time.Duration) {
	t.Helper()
	start := time.Now().Add(-age)
	end := start.Add(time.Duration(latencyMS) * time.Millisecond)
	if err := db.Create(&models.Session{
		ID: id, AgentName: agent, StartTime: start, EndTime: &end,
		OutcomeStatus: outcome,
	}).Error; err != nil {
		t.Fatalf("seed session %s: %v", id, err)
	}
	if err := db.Create(&models.ModelCall{
		ID: id + "-m1", SessionID: id, TurnID: id + "-t1",
		Model: "claude-sonnet", CostUSD: cost, TotalTokens: tokens,
	}).Error; err != nil {
		t.Fatalf("seed model call for %s: %v", id, err)
	}
}

func TestAgentMetrics(t *testing.T) {
	db := openTestDB(t)
	seedSession(t, db, "s1", "support-bot", models.OutcomeSuccess, 0.10, 1000, 2000, time.Hour)
	seedSession(t, db, "s2", "support-bot", models.OutcomeSuccess, 0.20, 2000, 4000, time.Hour)
	seedSession(t, db, "s3", "support-bot", models.OutcomeFailure, 0.30, 3000, 6000, time.Hour)
	seedSession(t, db, "s4", "support-bot", models.OutcomeSuccess, 9.99, 9000, 9000, 48*time.Hour) // outside window
	seedSession(t, db, "s5", "other-bot", models.OutcomeSuccess, 5.00, 5000, 5000, time.Hour)

	m, err := AgentMetrics(db, "support-bot", 24*time.Hour)
	if err != nil {
		t.Fatalf("agent metrics: %v", err)
	}

	if m.SessionCount != 3 {
		t.Errorf("SessionCount = %d, want 3", m.SessionCount)
	}
	if want := 2.0 / 3.0; m.SuccessRate < want-1e-9 || m.SuccessRate > want+1e-9 {
		t.Errorf("SuccessRate = %v, want %v", m.SuccessRate, want)
	}
	if m.TotalCostUSD < 0.599 || m.TotalCostUSD > 0.601 {
		t.Errorf("TotalCostUSD = %v, want 0.60", m.TotalCostUSD)
	}
	if m.TotalTokens != 6000 {
		t.Errorf("TotalTokens = %d, want 6000", m.TotalTokens)
	}
	if m.Cost.Max < 0.299 || m.Cost.Max > 0.301 {
		t.Errorf("Cost.Max = %v, want 0.30", m.Cost.Max)
	}
	if m.LatencyMS.Mean != 4000 {
		t.Errorf("LatencyMS.Mean = %v, want 4000", m.LatencyMS.Mean)
	}
}

func TestAgentMetrics_EmptyWindow(t *testing.T) {
	db := openTestDB(t)
	m, err := AgentMetrics(db, "ghost-bot", 24*time.Hour)
	if err != nil {
		t.Fatalf("agent metrics: %v", err)
	}
	if m.SessionCount != 0 || m.SuccessRate != 0 || m.Cost.Mean != 0 {
		t.Errorf("empty window metrics = %+v", m)
	}
}

func TestAgentMetrics_NoOutcomesRecorded(t *testing.T) {
	db := openTestDB(t)
	seedSession(t, db, "s1", "support-bot", "", 0.10, 1000, 2000, time.Hour)

	m, err := AgentMetrics(db, "support-bot", 24*time.Hour)
	if err != nil {
		t.Fatalf("agent metrics: %v", err)
	}
	if m.SuccessRate != 0 {
		t.Errorf("SuccessRate = %v with no recorded outcomes, want 0", m.SuccessRate)
	}
}

func anomalyThresholds() config.AnomalyThresholds {
	return config.AnomalyThresholds{MinSessions: 5, StdDevs: 2}
}

func TestDetectAnomalies_FlagsCostSpike(t *testing.T) {
	db := openTestDB(t)
	// Nine ordinary sessions and one 10x cost spike.
	for i := 0; i < 9; i++ {
		seedSession(t, db, fmt.Sprintf("s%d", i), "support-bot", models.OutcomeSuccess, 0.10, 1000, 2000, time.Hour)
	}
	seedSession(t, db, "spike", "support-bot", models.OutcomeSuccess, 1.00, 1000, 2000, time.Hour)

	anomalies, err := DetectAnomalies(db, "support-bot", 24*time.Hour, anomalyThresholds())
	if err != nil {
		t.Fatalf("detect anomalies: %v", err)
	}

	var found *Anomaly
	for i := range anomalies {
		if anomalies[i].Metric == "cost_usd" {
			found = &anomalies[i]
		}
	}
	if found == nil {
		t.Fatalf("cost spike not flagged: %+v", anomalies)
	}
	if found.SessionID != "spike" {
		t.Errorf("SessionID = %q, want spike", found.SessionID)
	}
	if found.Deviations <= 2 {
		t.Errorf("Deviations = %v, want > 2", found.Deviations)
	}
}

func TestDetectAnomalies_MinimumSessionsFloor(t *testing.T) {
	db := openTestDB(t)
	seedSession(t, db, "s1", "support-bot", models.OutcomeSuccess, 0.10, 1000, 2000, time.Hour)
	seedSession(t, db, "s2", "support-bot", models.OutcomeSuccess, 9.00, 1000, 2000, time.Hour)

	anomalies, err := DetectAnomalies(db, "support-bot", 24*time.Hour, anomalyThresholds())
	if err != nil {
		t.Fatalf("detect anomalies: %v", err)
	}
	if len(anomalies) != 0 {
		t.Errorf("anomalies = %+v below the session floor, want none", anomalies)
	}
}

func TestDetectAnomalies_UniformSeries(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 6; i++ {
		seedSession(t, db, fmt.Sprintf("s%d", i), "support-bot", models.OutcomeSuccess, 0.10, 1000, 2000, time.Hour)
	}

	anomalies, err := DetectAnomalies(db, "support-bot", 24*time.Hour, anomalyThresholds())
	if err != nil {
		t.Fatalf("detect anomalies: %v", err)
	}
	if len(anomalies) != 0 {
		t.Errorf("uniform series produced anomalies: %+v", anomalies)
	}
}
