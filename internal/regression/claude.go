package regression

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

const judgePrompt = `You are comparing two summaries of an AI agent's behavior.
The first is the accepted baseline, the second is the current session.
Decide whether the current session regressed from the baseline.
Respond with a single JSON object and nothing else:
{"regression_detected": bool, "severity": "low"|"medium"|"high",
 "title": string, "description": string, "suggested_action": string}

BASELINE:
%s

CURRENT:
%s`

// CommandJudge runs a CLI model client (claude by default) in one-shot
// print mode and parses the JSON verdict from its output.
type CommandJudge struct {
	Command string
}

// Compare implements Judge. The caller's context bounds the subprocess.
func (j *CommandJudge) Compare(ctx context.Context, baselineSummary, currentSummary string) (Verdict, error) {
	command := j.Command
	if command == "" {
		command = "claude"
	}

	cmd := exec.CommandContext(ctx, command,
		"-p", fmt.Sprintf(judgePrompt, baselineSummary, currentSummary),
	)
	out, err := cmd.Output()
	if err != nil {
		return Verdict{}, fmt.Errorf("regression: judge command: %w", err)
	}
	return parseVerdict(string(out))
}

// parseVerdict extracts the first JSON object from model output, tolerating
// surrounding prose or code fences.
func parseVerdict(output string) (Verdict, error) {
	start := strings.Index(output, "{")
	end := strings.LastIndex(output, "}")
	if start == -1 || end <= start {
		return Verdict{}, fmt.Errorf("regression: no JSON object in judge output")
	}

	var v Verdict
	if err := json.Unmarshal([]byte(output[start:end+1]), &v); err != nil {
		return Verdict{}, fmt.Errorf("regression: parse verdict: %w", err)
	}
	switch v.Severity {
	case "low", "medium", "high":
	case "":
		v.Severity = "medium"
	default:
		return Verdict{}, fmt.Errorf("regression: invalid severity %q in verdict", v.Severity)
	}
	return v, nil
}
