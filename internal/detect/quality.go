package detect

import (
	"fmt"
	"sort"

	"github.com/bagula/platform/internal/config"
	"github.com/bagula/platform/internal/models"
)

// AnalyzeQuality evaluates the quality rules over a session graph.
func AnalyzeQuality(session *models.Session, turns []models.Turn, modelCalls []models.ModelCall, toolCalls []models.ToolCall, cfg config.QualityThresholds) []models.Opportunity {
	var out []models.Opportunity

	if op := sessionFailureRate(session, toolCalls, cfg); op != nil {
		out = append(out, *op)
	}
	out = append(out, perToolFailures(session, toolCalls, cfg)...)
	out = append(out, retryLoops(session, toolCalls, cfg)...)

	if session.OutcomeStatus != models.OutcomeSuccess {
		desc := "Session ended without a recorded final outcome."
		if session.OutcomeStatus != "" {
			desc = fmt.Sprintf("Session ended with outcome %q.", session.OutcomeStatus)
		}
		out = append(out, newOpportunity(session, models.TypeQuality, models.SeverityLow,
			"Unsuccessful session outcome", desc,
			"Review the session transcript to understand why the agent did not succeed."))
	}

	for _, tc := range toolCalls {
		if tc.Unrecorded() {
			// Data-quality signal only; a missing record is not assumed to
			// be a failure.
			out = append(out, newOpportunity(session, models.TypeQuality, models.SeverityLow,
				"Tool call with no recorded outcome",
				fmt.Sprintf("Tool %q completed with neither a result nor an error recorded.", tc.ToolName),
				"Check the client SDK's tool instrumentation for dropped records."))
		}
	}
	return out
}

// sessionFailureRate flags a session-wide tool failure rate above the
// threshold, but only once the minimum sample size is reached so tiny
// sessions don't alert spuriously.
func sessionFailureRate(session *models.Session, toolCalls []models.ToolCall, cfg config.QualityThresholds) *models.Opportunity {
	if len(toolCalls) < cfg.MinToolCalls || cfg.FailureRate <= 0 {
		return nil
	}
	failures := 0
	for _, tc := range toolCalls {
		if tc.Failed() {
			failures++
		}
	}
	rate := float64(failures) / float64(len(toolCalls))
	if rate <= cfg.FailureRate {
		return nil
	}

	severity := models.SeverityMedium
	if rate > 0.5 {
		severity = models.SeverityHigh
	}
	op := newOpportunity(session, models.TypeQuality, severity,
		"High tool failure rate",
		fmt.Sprintf("%d of %d tool calls failed (%.0f%%), above the %.0f%% threshold.",
			failures, len(toolCalls), rate*100, cfg.FailureRate*100),
		"Investigate the failing tools and add input validation or retries.")
	return &op
}

// perToolFailures flags any single tool whose own failure rate is high,
// requiring at least two observed failures.
func perToolFailures(session *models.Session, toolCalls []models.ToolCall, cfg config.QualityThresholds) []models.Opportunity {
	type tally struct{ total, failed int }
	byTool := make(map[string]*tally)
	for _, tc := range toolCalls {
		t := byTool[tc.ToolName]
		if t == nil {
			t = &tally{}
			byTool[tc.ToolName] = t
		}
		t.total++
		if tc.Failed() {
			t.failed++
		}
	}

	var out []models.Opportunity
	for name, t := range byTool {
		if t.failed < 2 {
			continue
		}
		rate := float64(t.failed) / float64(t.total)
		if rate < cfg.ToolFailureRate {
			continue
		}
		out = append(out, newOpportunity(session, models.TypeQuality, models.SeverityHigh,
			"Failing tool",
			fmt.Sprintf("Tool %q failed %d of %d calls (%.0f%%).", name, t.failed, t.total, rate*100),
			"Fix or replace the failing tool before it degrades more sessions."))
	}
	return out
}

// retryLoops detects RetryCount or more calls to the same tool within a
// short rolling time window.
func retryLoops(session *models.Session, toolCalls []models.ToolCall, cfg config.QualityThresholds) []models.Opportunity {
	if cfg.RetryCount < 2 {
		return nil
	}
	window := cfg.RetryWindow.Std()

	byTool := make(map[string][]models.ToolCall)
	for _, tc := range toolCalls {
		byTool[tc.ToolName] = append(byTool[tc.ToolName], tc)
	}

	var out []models.Opportunity
	for name, calls := range byTool {
		if len(calls) < cfg.RetryCount {
			continue
		}
		sort.Slice(calls, func(i, j int) bool { return calls[i].StartTime.Before(calls[j].StartTime) })
		for i := 0; i+cfg.RetryCount <= len(calls); i++ {
			last := calls[i+cfg.RetryCount-1]
			if last.StartTime.Sub(calls[i].StartTime) <= window {
				out = append(out, newOpportunity(session, models.TypeQuality, models.SeverityMedium,
					"Retry loop",
					fmt.Sprintf("Tool %q was called %d times within %s.", name, cfg.RetryCount, window),
					"Add backoff or fix the underlying failure instead of hammering the tool."))
				break
			}
		}
	}
	return out
}
