// Package baseline stores reference sessions per agent and computes
// structured diffs between a session and its agent's active baseline.
package baseline

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bagula/platform/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Snapshot is the metric summary captured from a session graph, used both
// when saving a baseline and as the "current" side of a comparison.
type Snapshot struct {
	OutputSummary string
	ToolNames     []string
	AvgLatencyMS  float64
	TotalCostUSD  float64
	TotalTokens   int64
	TurnCount     int
}

// summaryResponses bounds how many agent responses feed the output summary.
const summaryResponses = 3

// BuildSnapshot summarises a stored session graph. Turns must be ordered by
// turn number with their calls preloaded.
func BuildSnapshot(session *models.Session, turns []models.Turn) Snapshot {
	snap := Snapshot{TurnCount: len(turns)}

	var latencies []float64
	seen := make(map[string]bool)
	var responses []string

	for _, turn := range turns {
		if turn.ResponseMessage != "" && len(responses) < summaryResponses {
			responses = append(responses, turn.ResponseMessage)
		}
		for _, mc := range turn.ModelCalls {
			snap.TotalCostUSD += mc.CostUSD
			snap.TotalTokens += mc.TotalTokens
			latencies = append(latencies, float64(mc.LatencyMS))
		}
		for _, tc := range turn.ToolCalls {
			if !seen[tc.ToolName] {
				seen[tc.ToolName] = true
				snap.ToolNames = append(snap.ToolNames, tc.ToolName)
			}
			latencies = append(latencies, float64(tc.LatencyMS))
		}
	}

	sort.Strings(snap.ToolNames)
	snap.OutputSummary = strings.Join(responses, "\n")
	if len(latencies) > 0 {
		var sum float64
		for _, l := range latencies {
			sum += l
		}
		snap.AvgLatencyMS = sum / float64(len(latencies))
	}
	return snap
}

// Save creates a baseline from a completed session and makes it the single
// active baseline for the agent. The deactivate-previous + activate-new swap
// runs in one transaction so concurrent saves for the same agent cannot
// leave two active baselines.
func Save(db *gorm.DB, agentName, sessionID string, tags []string) (*models.Baseline, error) {
	if agentName == "" {
		return nil, fmt.Errorf("baseline: agentName is required")
	}
	if sessionID == "" {
		return nil, fmt.Errorf("baseline: sessionID is required")
	}

	var session models.Session
	if err := db.Where("id = ? AND agent_name = ?", sessionID, agentName).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("baseline: session %s not found for agent %s: %w", sessionID, agentName, err)
		}
		return nil, fmt.Errorf("baseline: load session %s: %w", sessionID, err)
	}

	var turns []models.Turn
	if err := db.Preload("ModelCalls").Preload("ToolCalls").
		Where("session_id = ?", sessionID).Order("turn_number ASC").Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("baseline: load turns for %s: %w", sessionID, err)
	}

	snap := BuildSnapshot(&session, turns)
	toolNames, err := json.Marshal(snap.ToolNames)
	if err != nil {
		return nil, fmt.Errorf("baseline: marshal tool names: %w", err)
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("baseline: marshal tags: %w", err)
	}

	b := models.Baseline{
		ID:            uuid.NewString(),
		AgentName:     agentName,
		SessionID:     sessionID,
		Active:        true,
		AvgLatencyMS:  snap.AvgLatencyMS,
		TotalCostUSD:  snap.TotalCostUSD,
		TotalTokens:   snap.TotalTokens,
		TurnCount:     snap.TurnCount,
		ToolNames:     string(toolNames),
		OutputSummary: snap.OutputSummary,
		Tags:          string(tagsJSON),
		CreatedAt:     time.Now(),
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Baseline{}).
			Where("agent_name = ? AND active = ?", agentName, true).
			Update("active", false).Error; err != nil {
			return fmt.Errorf("baseline: deactivate previous for %s: %w", agentName, err)
		}
		if err := tx.Create(&b).Error; err != nil {
			return fmt.Errorf("baseline: create for %s: %w", agentName, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetActive returns the active baseline for an agent, or nil when none
// exists. A missing baseline is a normal state, not an error.
func GetActive(db *gorm.DB, agentName string) (*models.Baseline, error) {
	if agentName == "" {
		return nil, fmt.Errorf("baseline: agentName is required")
	}
	var b models.Baseline
	err := db.Where("agent_name = ? AND active = ?", agentName, true).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("baseline: get active for %s: %w", agentName, err)
	}
	return &b, nil
}

// History returns all baselines for an agent, newest first.
func History(db *gorm.DB, agentName string) ([]models.Baseline, error) {
	if agentName == "" {
		return nil, fmt.Errorf("baseline: agentName is required")
	}
	var out []models.Baseline
	if err := db.Where("agent_name = ?", agentName).
		Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("baseline: history for %s: %w", agentName, err)
	}
	return out, nil
}

// decodeTools parses the JSON-encoded tool name list from a baseline row.
// Malformed data degrades to an empty list.
func decodeTools(raw string) []string {
	if raw == "" {
		return nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil
	}
	return names
}
