// Package regression decides whether a session regressed from its agent's
// active baseline by delegating the semantic comparison to an injected
// Judge. Detection is best-effort: judge failures never fail the pipeline.
package regression

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bagula/platform/internal/baseline"
	"github.com/bagula/platform/internal/config"
	"github.com/bagula/platform/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Detector orchestrates baseline lookup, the structured baseline
// comparison, summary extraction, and the judge.
type Detector struct {
	Judge        Judge
	JudgeTimeout time.Duration
	Thresholds   config.RegressionThresholds
	Baseline     config.BaselineThresholds
}

// Analyze compares a session against its agent's active baseline. The
// structured diff (output similarity, tool-usage delta, metric deltas) is
// handed to the judge alongside the summaries and attached to any emitted
// opportunity. When no baseline exists the detector is a no-op. Judge
// errors, timeouts, and malformed responses all degrade to "no regression
// detected". Turns must carry their model and tool calls.
func (d *Detector) Analyze(ctx context.Context, db *gorm.DB, session *models.Session, turns []models.Turn) ([]models.Opportunity, error) {
	active, err := baseline.GetActive(db, session.AgentName)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, nil
	}
	if active.SessionID == session.ID {
		// The baseline's own session cannot regress from itself.
		return nil, nil
	}

	current := d.summarize(turns)
	base := d.bound(active.OutputSummary)
	diff := diffReport(d.compare(active, session, turns))
	if current == "" && base == "" && diff == "" {
		return nil, nil
	}

	judged := current
	if diff != "" {
		judged = current + "\n\nSTRUCTURED DIFF FROM BASELINE:\n" + diff
	}

	timeout := d.JudgeTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	judgeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	verdict, err := d.Judge.Compare(judgeCtx, base, judged)
	if err != nil {
		log.Printf("regression: judge unavailable for session %s: %v (treating as no regression)", session.ID, err)
		return nil, nil
	}
	if !verdict.RegressionDetected {
		return nil, nil
	}

	op := models.Opportunity{
		ID:              uuid.NewString(),
		SessionID:       session.ID,
		AgentName:       session.AgentName,
		Type:            models.TypeRegression,
		Severity:        verdict.Severity,
		Title:           verdict.Title,
		Description:     verdict.Description,
		SuggestedAction: verdict.SuggestedAction,
		DetectedAt:      time.Now(),
	}
	if op.Title == "" {
		op.Title = "Behavioral regression from baseline"
	}
	if diff != "" {
		if op.Description != "" {
			op.Description += "\n\n"
		}
		op.Description += "Diff from baseline:\n" + diff
	}
	return []models.Opportunity{op}, nil
}

// compare builds the current session's snapshot and diffs it against the
// active baseline. Zero thresholds fall back to the standard defaults.
func (d *Detector) compare(active *models.Baseline, session *models.Session, turns []models.Turn) baseline.Comparison {
	thr := d.Baseline
	if thr.SimilarityThreshold <= 0 {
		thr.SimilarityThreshold = 0.85
	}
	if thr.MetricSwingPct <= 0 {
		thr.MetricSwingPct = 50
	}
	return baseline.Compare(active, baseline.BuildSnapshot(session, turns), thr)
}

// diffReport renders the comparison's differences one per line for the
// judge prompt and the emitted opportunity. Empty when the session matches
// its baseline.
func diffReport(cmp baseline.Comparison) string {
	if len(cmp.Differences) == 0 {
		return ""
	}
	lines := make([]string, 0, len(cmp.Differences))
	for _, diff := range cmp.Differences {
		lines = append(lines, fmt.Sprintf("- [%s/%s] %s", diff.Type, diff.Severity, diff.Description))
	}
	return strings.Join(lines, "\n")
}

// summarize joins the first N agent responses into a bounded summary.
func (d *Detector) summarize(turns []models.Turn) string {
	limit := d.Thresholds.SummaryResponses
	if limit <= 0 {
		limit = 3
	}

	var sb []byte
	count := 0
	for _, turn := range turns {
		if turn.ResponseMessage == "" {
			continue
		}
		if count > 0 {
			sb = append(sb, '\n')
		}
		sb = append(sb, turn.ResponseMessage...)
		count++
		if count >= limit {
			break
		}
	}
	return d.bound(string(sb))
}

// bound truncates a summary to the configured byte budget, trimming back to
// a rune boundary so the judge never sees a split UTF-8 sequence.
func (d *Detector) bound(s string) string {
	max := d.Thresholds.SummaryMaxBytes
	if max <= 0 {
		max = 4096
	}
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
