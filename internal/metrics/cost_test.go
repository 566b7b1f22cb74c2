package metrics

import (
	"math"
	"testing"

	"github.com/bagula/platform/internal/db"
	"github.com/bagula/platform/internal/models"
)

func testTable() *PriceTable {
	return NewPriceTable(db.DefaultPrices())
}

func TestCost_ExactMatch(t *testing.T) {
	table := testTable()

	// claude-opus-4: $15/M input, $75/M output.
	got := table.Cost("claude-opus-4", 1_000_000, 1_000_000)
	if math.Abs(got-90.0) > 1e-9 {
		t.Errorf("Cost = %v, want 90.0", got)
	}
}

func TestCost_FamilyMatch(t *testing.T) {
	table := testTable()

	// Dated sonnet release resolves through the claude-sonnet family.
	got := table.Cost("claude-sonnet-4-20250514", 2_000_000, 0)
	if math.Abs(got-6.0) > 1e-9 {
		t.Errorf("Cost = %v, want 6.0", got)
	}
}

func TestCost_UnknownModelUsesDefault(t *testing.T) {
	table := testTable()

	got := table.Cost("some-new-model-xyz", 1_000_000, 1_000_000)
	// Default row: $3/M input + $15/M output.
	if math.Abs(got-18.0) > 1e-9 {
		t.Errorf("Cost = %v, want 18.0 (default rates)", got)
	}
}

func TestCost_NonNegative(t *testing.T) {
	table := testTable()

	for _, tc := range []struct{ in, out int64 }{
		{0, 0}, {-100, 50}, {50, -100}, {1, 1},
	} {
		if got := table.Cost("claude-sonnet-4", tc.in, tc.out); got < 0 {
			t.Errorf("Cost(%d, %d) = %v, want >= 0", tc.in, tc.out, got)
		}
	}
}

func TestCost_LinearInTokenCounts(t *testing.T) {
	table := testTable()

	base := table.Cost("claude-sonnet-4", 1000, 1000)
	doubleIn := table.Cost("claude-sonnet-4", 2000, 1000)
	doubleOut := table.Cost("claude-sonnet-4", 1000, 2000)

	inCost := table.Cost("claude-sonnet-4", 1000, 0)
	outCost := table.Cost("claude-sonnet-4", 0, 1000)

	if math.Abs((doubleIn-base)-inCost) > 1e-12 {
		t.Errorf("cost not linear in input tokens")
	}
	if math.Abs((doubleOut-base)-outCost) > 1e-12 {
		t.Errorf("cost not linear in output tokens")
	}
	if math.Abs(base-(inCost+outCost)) > 1e-12 {
		t.Errorf("input/output contributions not independent")
	}
}

func TestResolve_LongestFamilyWins(t *testing.T) {
	rows := []models.ModelPrice{
		{Model: "gpt-5", Family: "gpt-5", InputPerMillion: 1.25, OutputPerMillion: 10.0},
		{Model: "gpt-5-mini", Family: "gpt-5-mini", InputPerMillion: 0.25, OutputPerMillion: 2.0},
	}

	// "gpt-5-mini-2025" contains both families; the more specific one must
	// win regardless of row order.
	for _, table := range []*PriceTable{
		NewPriceTable(rows),
		NewPriceTable([]models.ModelPrice{rows[1], rows[0]}),
	} {
		got := table.Resolve("gpt-5-mini-2025")
		if got.Model != "gpt-5-mini" {
			t.Errorf("Resolve(gpt-5-mini-2025) = %q, want gpt-5-mini", got.Model)
		}
	}
}

func TestResolve_CaseInsensitive(t *testing.T) {
	table := testTable()
	p := table.Resolve("Claude-Opus-4")
	if p.Model != "claude-opus-4" {
		t.Errorf("Resolve = %q, want claude-opus-4", p.Model)
	}
}

func TestNewPriceTable_NoDefaultRow(t *testing.T) {
	table := NewPriceTable([]models.ModelPrice{
		{Model: "claude-sonnet-4", Family: "claude-sonnet", InputPerMillion: 3, OutputPerMillion: 15},
	})
	p := table.Resolve("totally-unknown")
	if p.InputPerMillion <= 0 || p.OutputPerMillion <= 0 {
		t.Errorf("fallback rates = %v/%v, want positive", p.InputPerMillion, p.OutputPerMillion)
	}
}

func TestIsPremium(t *testing.T) {
	premium := []string{"claude-opus", "gpt-5-pro"}

	tests := []struct {
		model string
		want  bool
	}{
		{"claude-opus-4-20250514", true},
		{"GPT-5-Pro", true},
		{"claude-sonnet-4", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsPremium(tt.model, premium); got != tt.want {
			t.Errorf("IsPremium(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}
