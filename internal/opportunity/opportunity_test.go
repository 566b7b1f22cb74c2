package opportunity

import (
	"path/filepath"
	"testing"
	"time"

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
	if err := db.AutoMigrate(&models.Opportunity{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func seedOpportunities(t *testing.T, db *gorm.DB) {
	t.Helper()
	savings := 1.50
	latency := int64(1900)
	now := time.Now()
	rows := []models.Opportunity{
		{ID: "op1", SessionID: "s1", AgentName: "support-bot", Type: models.TypeCost,
			Severity: models.SeverityLow, Title: "Expensive model call",
			EstimatedSavingsUSD: &savings, DetectedAt: now},
		{ID: "op2", SessionID: "s1", AgentName: "support-bot", Type: models.TypePerformance,
			Severity: models.SeverityMedium, Title: "Sequential tool calls",
			EstimatedLatencySavingMS: &latency, DetectedAt: now.Add(-time.Hour)},
		{ID: "op3", SessionID: "s2", AgentName: "support-bot", Type: models.TypeQuality,
			Severity: models.SeverityHigh, Title: "High tool failure rate",
			Resolved: true, ResolutionNote: "fixed upstream", DetectedAt: now.Add(-48 * time.Hour)},
		{ID: "op4", SessionID: "s3", AgentName: "other-bot", Type: models.TypeCost,
			Severity: models.SeverityLow, Title: "Expensive model call", DetectedAt: now},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed %s: %v", rows[i].ID, err)
		}
	}
}

func TestForSession(t *testing.T) {
	db := openTestDB(t)
	seedOpportunities(t, db)

	ops, err := ForSession(db, "s1")
	if err != nil {
		t.Fatalf("for session: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("ops = %d, want 2", len(ops))
	}
	// Newest first.
	if ops[0].ID != "op1" || ops[1].ID != "op2" {
		t.Errorf("order = %s, %s; want op1, op2", ops[0].ID, ops[1].ID)
	}
}

func TestForAgent_Filters(t *testing.T) {
	db := openTestDB(t)
	seedOpportunities(t, db)

	all, err := ForAgent(db, "support-bot", Filters{})
	if err != nil {
		t.Fatalf("for agent: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("unfiltered = %d, want 3", len(all))
	}

	costOnly, _ := ForAgent(db, "support-bot", Filters{Type: models.TypeCost})
	if len(costOnly) != 1 || costOnly[0].ID != "op1" {
		t.Errorf("type filter = %+v", costOnly)
	}

	highOnly, _ := ForAgent(db, "support-bot", Filters{Severity: models.SeverityHigh})
	if len(highOnly) != 1 || highOnly[0].ID != "op3" {
		t.Errorf("severity filter = %+v", highOnly)
	}

	recent, _ := ForAgent(db, "support-bot", Filters{Since: time.Now().Add(-24 * time.Hour)})
	if len(recent) != 2 {
		t.Errorf("since filter = %d, want 2", len(recent))
	}

	unresolved := false
	open, _ := ForAgent(db, "support-bot", Filters{Resolved: &unresolved})
	if len(open) != 2 {
		t.Errorf("resolved filter = %d, want 2", len(open))
	}
}

func TestSummarize(t *testing.T) {
	db := openTestDB(t)
	seedOpportunities(t, db)

	ops, err := ForAgent(db, "support-bot", Filters{})
	if err != nil {
		t.Fatalf("for agent: %v", err)
	}
	s := Summarize(ops)

	if s.Total != 3 {
		t.Errorf("Total = %d, want 3", s.Total)
	}
	if s.Unresolved != 2 {
		t.Errorf("Unresolved = %d, want 2", s.Unresolved)
	}
	if s.ByType[models.TypeCost] != 1 || s.ByType[models.TypePerformance] != 1 || s.ByType[models.TypeQuality] != 1 {
		t.Errorf("ByType = %v", s.ByType)
	}
	if s.BySeverity[models.SeverityHigh] != 1 {
		t.Errorf("BySeverity = %v", s.BySeverity)
	}
	if s.EstimatedSavingsUSD != 1.50 {
		t.Errorf("EstimatedSavingsUSD = %v, want 1.50", s.EstimatedSavingsUSD)
	}
	if s.EstimatedLatencySavingMS != 1900 {
		t.Errorf("EstimatedLatencySavingMS = %v, want 1900", s.EstimatedLatencySavingMS)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.Total != 0 || s.Unresolved != 0 || s.EstimatedSavingsUSD != 0 {
		t.Errorf("empty summary = %+v", s)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	db := openTestDB(t)
	seedOpportunities(t, db)

	op, err := Resolve(db, "op1", "tuned the prompt")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !op.Resolved || op.ResolutionNote != "tuned the prompt" {
		t.Errorf("first resolve = %+v", op)
	}
	if op.ResolvedAt == nil {
		t.Error("ResolvedAt not set")
	}
	firstResolvedAt := *op.ResolvedAt

	// A second resolution is a no-op, keeping the original note.
	op, err = Resolve(db, "op1", "different note")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if op.ResolutionNote != "tuned the prompt" {
		t.Errorf("note = %q, want original preserved", op.ResolutionNote)
	}
	if op.ResolvedAt == nil || op.ResolvedAt.Sub(firstResolvedAt) > time.Second || firstResolvedAt.Sub(*op.ResolvedAt) > time.Second {
		t.Errorf("ResolvedAt changed on re-resolve")
	}
}

func TestResolve_UnknownID(t *testing.T) {
	db := openTestDB(t)
	if _, err := Resolve(db, "nope", ""); err == nil {
		t.Error("expected error for unknown opportunity")
	}
}
