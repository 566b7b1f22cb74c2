package detect

import (
	"testing"

	"github.com/bagula/platform/internal/config"
	"github.com/bagula/platform/internal/models"
)

func costThresholds() config.CostThresholds {
	return config.CostThresholds{
		CallCostUSD:        0.10,
		TokenCeiling:       50_000,
		RepeatCallLimit:    3,
		PremiumModels:      []string{"claude-opus"},
		ShortOutputTokens:  500,
		DowngradeSavingPct: 0.8,
	}
}

func fixtureSession() *models.Session {
	return &models.Session{ID: "s1", AgentName: "support-bot", OutcomeStatus: models.OutcomeSuccess}
}

func modelCall(model string, cost float64, in, out int64) models.ModelCall {
	return models.ModelCall{
		ID: "mc-" + model, SessionID: "s1", Provider: "anthropic", Model: model,
		CostUSD: cost, InputTokens: in, OutputTokens: out, TotalTokens: in + out,
	}
}

func TestAnalyzeCost_ExpensiveCallLowSeverity(t *testing.T) {
	// One call at $0.15 against a $0.10 threshold: exactly one opportunity,
	// severity low since it is within 2x of the threshold.
	session := fixtureSession()
	calls := []models.ModelCall{modelCall("claude-sonnet-4", 0.15, 1000, 800)}

	ops := AnalyzeCost(session, nil, calls, nil, costThresholds())

	if len(ops) != 1 {
		t.Fatalf("opportunities = %d, want 1", len(ops))
	}
	op := ops[0]
	if op.Type != models.TypeCost {
		t.Errorf("Type = %q, want cost", op.Type)
	}
	if op.Severity != models.SeverityLow {
		t.Errorf("Severity = %q, want low", op.Severity)
	}
	if op.EstimatedSavingsUSD == nil || *op.EstimatedSavingsUSD <= 0 {
		t.Errorf("EstimatedSavingsUSD = %v, want positive", op.EstimatedSavingsUSD)
	}
	if op.SessionID != "s1" || op.AgentName != "support-bot" {
		t.Errorf("opportunity not attributed to session: %+v", op)
	}
}

func TestAnalyzeCost_SeverityScalesWithOverage(t *testing.T) {
	session := fixtureSession()

	tests := []struct {
		cost float64
		want string
	}{
		{0.15, models.SeverityLow},    // 1.5x
		{0.30, models.SeverityMedium}, // 3x
		{0.60, models.SeverityHigh},   // 6x
	}
	for _, tt := range tests {
		ops := AnalyzeCost(session, nil, []models.ModelCall{modelCall("m", tt.cost, 10, 10)}, nil, costThresholds())
		if len(ops) != 1 || ops[0].Severity != tt.want {
			t.Errorf("cost %v: severity = %v, want %v", tt.cost, ops, tt.want)
		}
	}
}

func TestAnalyzeCost_UnderThresholdClean(t *testing.T) {
	session := fixtureSession()
	ops := AnalyzeCost(session, nil, []models.ModelCall{modelCall("claude-sonnet-4", 0.05, 1000, 800)}, nil, costThresholds())
	if len(ops) != 0 {
		t.Errorf("clean session produced %d opportunities: %+v", len(ops), ops)
	}
}

func TestAnalyzeCost_TokenCeiling(t *testing.T) {
	session := fixtureSession()
	ops := AnalyzeCost(session, nil, []models.ModelCall{modelCall("claude-sonnet-4", 0.05, 60_000, 1000)}, nil, costThresholds())

	if len(ops) != 1 {
		t.Fatalf("opportunities = %d, want 1", len(ops))
	}
	if ops[0].Title != "Oversized model call" {
		t.Errorf("Title = %q", ops[0].Title)
	}
}

func TestAnalyzeCost_RepeatedCalls(t *testing.T) {
	session := fixtureSession()
	var calls []models.ModelCall
	for n := 0; n < 4; n++ {
		calls = append(calls, modelCall("claude-sonnet-4", 0.01, 100, 100))
	}

	ops := AnalyzeCost(session, nil, calls, nil, costThresholds())

	if len(ops) != 1 {
		t.Fatalf("opportunities = %d, want 1 (batching)", len(ops))
	}
	if ops[0].Severity != models.SeverityMedium {
		t.Errorf("Severity = %q, want medium", ops[0].Severity)
	}

	// Exactly at the limit is not flagged.
	ops = AnalyzeCost(session, nil, calls[:3], nil, costThresholds())
	if len(ops) != 0 {
		t.Errorf("3 calls should not be flagged, got %+v", ops)
	}
}

func TestAnalyzeCost_RepeatedCallsDistinctModels(t *testing.T) {
	session := fixtureSession()
	calls := []models.ModelCall{
		modelCall("model-a", 0.01, 100, 100),
		modelCall("model-a", 0.01, 100, 100),
		modelCall("model-b", 0.01, 100, 100),
		modelCall("model-b", 0.01, 100, 100),
	}
	if ops := AnalyzeCost(session, nil, calls, nil, costThresholds()); len(ops) != 0 {
		t.Errorf("distinct pairs under limit flagged: %+v", ops)
	}
}

func TestAnalyzeCost_PremiumDowngrade(t *testing.T) {
	session := fixtureSession()
	calls := []models.ModelCall{modelCall("claude-opus-4", 0.08, 2000, 120)}

	ops := AnalyzeCost(session, nil, calls, nil, costThresholds())

	if len(ops) != 1 {
		t.Fatalf("opportunities = %d, want 1 (downgrade)", len(ops))
	}
	op := ops[0]
	if op.EstimatedSavingsUSD == nil {
		t.Fatal("downgrade should estimate savings")
	}
	// Documented fraction: 0.8 of observed cost.
	want := 0.08 * 0.8
	if *op.EstimatedSavingsUSD != want {
		t.Errorf("EstimatedSavingsUSD = %v, want %v", *op.EstimatedSavingsUSD, want)
	}

	// Long outputs on premium models are fine.
	calls[0].OutputTokens = 2000
	if ops := AnalyzeCost(session, nil, calls, nil, costThresholds()); len(ops) != 0 {
		t.Errorf("long premium output flagged: %+v", ops)
	}
}

func TestAnalyzeCost_EmptySession(t *testing.T) {
	if ops := AnalyzeCost(fixtureSession(), nil, nil, nil, costThresholds()); len(ops) != 0 {
		t.Errorf("empty session produced %+v", ops)
	}
}
