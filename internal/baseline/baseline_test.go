package baseline

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bagula/platform/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB opens a throwaway SQLite DB with the tables baseline needs.
// A per-test file (not :memory:) so pooled connections share one database,
// which the concurrent-save test depends on.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Session{},
		&models.Turn{},
		&models.ModelCall{},
		&models.ToolCall{},
		&models.Baseline{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

func seedSession(t *testing.T, db *gorm.DB, sessionID, agent string) {
	t.Helper()
	now := time.Now()
	end := now.Add(time.Minute)
	db.Create(&models.Session{
		ID: sessionID, AgentName: agent, StartTime: now, EndTime: &end,
		InitialRequest: "please refund order 42", OutcomeStatus: models.OutcomeSuccess,
	})
	db.Create(&models.Turn{
		ID: sessionID + "-t1", SessionID: sessionID, TurnNumber: 1, Timestamp: now,
		TriggerType: "user_message", ResponseMessage: "Your refund has been processed",
	})
	db.Create(&models.ModelCall{
		ID: sessionID + "-m1", TurnID: sessionID + "-t1", SessionID: sessionID,
		Provider: "anthropic", Model: "claude-sonnet-4",
		InputTokens: 500, OutputTokens: 200, TotalTokens: 700, CostUSD: 0.05, LatencyMS: 1200,
	})
	db.Create(&models.ToolCall{
		ID: sessionID + "-tc1", TurnID: sessionID + "-t1", SessionID: sessionID,
		ToolName: "refund_lookup", Result: `{"ok":true}`, LatencyMS: 300,
	})
}

func TestSave_Validation(t *testing.T) {
	if _, err := Save(nil, "", "s1", nil); err == nil {
		t.Error("expected error for missing agentName")
	}
	if _, err := Save(nil, "support-bot", "", nil); err == nil {
		t.Error("expected error for missing sessionID")
	}
}

func TestSave_SessionNotFound(t *testing.T) {
	db := openTestDB(t)
	if _, err := Save(db, "support-bot", "nope", nil); err == nil {
		t.Error("expected error for unknown session")
	}
}

func TestSave_SnapshotAndActivation(t *testing.T) {
	db := openTestDB(t)
	seedSession(t, db, "s1", "support-bot")

	b, err := Save(db, "support-bot", "s1", []string{"v1"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if !b.Active {
		t.Error("new baseline should be active")
	}
	if b.TurnCount != 1 {
		t.Errorf("TurnCount = %d, want 1", b.TurnCount)
	}
	if b.TotalCostUSD != 0.05 {
		t.Errorf("TotalCostUSD = %v, want 0.05", b.TotalCostUSD)
	}
	if b.TotalTokens != 700 {
		t.Errorf("TotalTokens = %d, want 700", b.TotalTokens)
	}
	// Average of 1200ms model call and 300ms tool call.
	if b.AvgLatencyMS != 750 {
		t.Errorf("AvgLatencyMS = %v, want 750", b.AvgLatencyMS)
	}
	if b.ToolNames != `["refund_lookup"]` {
		t.Errorf("ToolNames = %q", b.ToolNames)
	}
	if b.OutputSummary != "Your refund has been processed" {
		t.Errorf("OutputSummary = %q", b.OutputSummary)
	}
}

func TestSave_DeactivatesPrevious(t *testing.T) {
	db := openTestDB(t)
	seedSession(t, db, "s1", "support-bot")
	seedSession(t, db, "s2", "support-bot")

	first, err := Save(db, "support-bot", "s1", nil)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	second, err := Save(db, "support-bot", "s2", nil)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}

	var active []models.Baseline
	db.Where("agent_name = ? AND active = ?", "support-bot", true).Find(&active)
	if len(active) != 1 {
		t.Fatalf("active baselines = %d, want 1", len(active))
	}
	if active[0].ID != second.ID {
		t.Errorf("active baseline = %s, want %s", active[0].ID, second.ID)
	}

	var old models.Baseline
	db.Where("id = ?", first.ID).First(&old)
	if old.Active {
		t.Error("previous baseline should be deactivated")
	}
}

func TestSave_ConcurrentSavesLeaveOneActive(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 8; i++ {
		seedSession(t, db, fmt.Sprintf("s%d", i), "support-bot")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			// SQLite serializes writers; racing saves may need a retry on
			// a busy database, which mirrors the job retry policy.
			for n := 0; n < 5; n++ {
				if _, err := Save(db, "support-bot", fmt.Sprintf("s%d", n), nil); err == nil {
					return
				}
				time.Sleep(10 * time.Millisecond)
			}
		}(i)
	}
	wg.Wait()

	var count int64
	db.Model(&models.Baseline{}).Where("agent_name = ? AND active = ?", "support-bot", true).Count(&count)
	if count != 1 {
		t.Errorf("active baselines after concurrent saves = %d, want exactly 1", count)
	}
}

func TestGetActive_NoneIsNotError(t *testing.T) {
	db := openTestDB(t)
	b, err := GetActive(db, "unknown-agent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b != nil {
		t.Errorf("expected nil baseline, got %+v", b)
	}
}

func TestHistory_NewestFirst(t *testing.T) {
	db := openTestDB(t)
	seedSession(t, db, "s1", "support-bot")
	seedSession(t, db, "s2", "support-bot")

	if _, err := Save(db, "support-bot", "s1", nil); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := Save(db, "support-bot", "s2", nil)
	if err != nil {
		t.Fatal(err)
	}

	hist, err := History(db, "support-bot")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("history = %d entries, want 2", len(hist))
	}
	if hist[0].ID != second.ID {
		t.Errorf("history[0] = %s, want newest %s", hist[0].ID, second.ID)
	}
}
