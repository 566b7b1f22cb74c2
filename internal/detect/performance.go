package detect

import (
	"fmt"
	"sort"

	"github.com/bagula/platform/internal/config"
	"github.com/bagula/platform/internal/models"
)

// AnalyzePerformance evaluates the latency rules over a session graph.
func AnalyzePerformance(session *models.Session, turns []models.Turn, modelCalls []models.ModelCall, toolCalls []models.ToolCall, cfg config.PerformanceThresholds) []models.Opportunity {
	var out []models.Opportunity

	for _, tc := range toolCalls {
		if cfg.SlowToolMS > 0 && tc.LatencyMS > cfg.SlowToolMS {
			out = append(out, newOpportunity(session, models.TypePerformance,
				severityByRatio(float64(tc.LatencyMS), float64(cfg.SlowToolMS)),
				"Slow tool call",
				fmt.Sprintf("Tool %q took %dms, above the %dms threshold.",
					tc.ToolName, tc.LatencyMS, cfg.SlowToolMS),
				"Profile the tool or add a timeout budget for it."))
		}
	}

	for _, mc := range modelCalls {
		if cfg.TimeoutWarningMS > 0 && mc.LatencyMS > cfg.TimeoutWarningMS {
			out = append(out, newOpportunity(session, models.TypePerformance, models.SeverityMedium,
				"Model call approaching timeout",
				fmt.Sprintf("Model call to %s took %dms, approaching the timeout budget.",
					mc.Model, mc.LatencyMS),
				"Stream the response or reduce the requested output size."))
		}
	}

	if cfg.ExcessiveTurns > 0 && len(turns) > cfg.ExcessiveTurns {
		out = append(out, newOpportunity(session, models.TypePerformance, models.SeverityMedium,
			"Excessive turn count",
			fmt.Sprintf("Session took %d turns, above the %d turn threshold.",
				len(turns), cfg.ExcessiveTurns),
			"Review the agent's loop logic for unnecessary round-trips."))
	}

	out = append(out, parallelizableCalls(session, turns, cfg)...)

	if op := slowAverageTurn(session, turns, cfg); op != nil {
		out = append(out, *op)
	}
	return out
}

// parallelizableCalls finds same-turn tool calls that ran back-to-back with
// near-zero gap. Estimated saving is the serial total minus the longest
// call, i.e. what concurrent execution would reclaim.
func parallelizableCalls(session *models.Session, turns []models.Turn, cfg config.PerformanceThresholds) []models.Opportunity {
	var out []models.Opportunity

	for _, turn := range turns {
		if len(turn.ToolCalls) < 2 {
			continue
		}
		calls := make([]models.ToolCall, len(turn.ToolCalls))
		copy(calls, turn.ToolCalls)
		sort.Slice(calls, func(i, j int) bool { return calls[i].StartTime.Before(calls[j].StartTime) })

		run := []models.ToolCall{calls[0]}
		for i := 1; i < len(calls); i++ {
			gap := calls[i].StartTime.Sub(calls[i-1].EndTime).Milliseconds()
			if gap >= 0 && gap < cfg.ParallelGapMS {
				run = append(run, calls[i])
				continue
			}
			if op := runOpportunity(session, turn.TurnNumber, run); op != nil {
				out = append(out, *op)
			}
			run = []models.ToolCall{calls[i]}
		}
		if op := runOpportunity(session, turn.TurnNumber, run); op != nil {
			out = append(out, *op)
		}
	}
	return out
}

func runOpportunity(session *models.Session, turnNumber int, run []models.ToolCall) *models.Opportunity {
	if len(run) < 2 {
		return nil
	}
	var total, max int64
	for _, tc := range run {
		total += tc.LatencyMS
		if tc.LatencyMS > max {
			max = tc.LatencyMS
		}
	}
	saving := total - max
	op := newOpportunity(session, models.TypePerformance, models.SeverityMedium,
		"Parallelizable tool calls",
		fmt.Sprintf("Turn %d ran %d tool calls back-to-back; running them concurrently would save ~%dms.",
			turnNumber, len(run), saving),
		"Issue independent tool calls concurrently.")
	op.EstimatedLatencySavingMS = i64ptr(saving)
	return &op
}

// slowAverageTurn flags sessions whose average per-turn duration exceeds the
// configured ceiling. Needs a recorded end time.
func slowAverageTurn(session *models.Session, turns []models.Turn, cfg config.PerformanceThresholds) *models.Opportunity {
	if cfg.AvgTurnDurationMS <= 0 || session.EndTime == nil || len(turns) == 0 {
		return nil
	}
	avg := session.EndTime.Sub(session.StartTime).Milliseconds() / int64(len(turns))
	if avg <= cfg.AvgTurnDurationMS {
		return nil
	}
	op := newOpportunity(session, models.TypePerformance, models.SeverityMedium,
		"Slow average turn",
		fmt.Sprintf("Average turn duration was %dms, above the %dms ceiling.",
			avg, cfg.AvgTurnDurationMS),
		"Look for slow tools or oversized model calls dominating each turn.")
	return &op
}
