package regression

import "context"

// Verdict is the structured result of a semantic comparison between a
// baseline summary and a current-session summary.
type Verdict struct {
	RegressionDetected bool   `json:"regression_detected"`
	Severity           string `json:"severity"`
	Title              string `json:"title"`
	Description        string `json:"description"`
	SuggestedAction    string `json:"suggested_action"`
}

// Judge is the injected semantic comparison capability, typically backed by
// a language model. Callers bound every Compare with a context timeout
// shorter than the surrounding job timeout.
type Judge interface {
	Compare(ctx context.Context, baselineSummary, currentSummary string) (Verdict, error)
}
