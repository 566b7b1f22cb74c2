// Package analytics aggregates per-agent metrics over a time window and
// flags statistically anomalous sessions.
package analytics

import (
	"fmt"
	"time"

	"github.com/bagula/platform/internal/config"
	"github.com/bagula/platform/internal/metrics"
	"github.com/bagula/platform/internal/models"
	"gorm.io/gorm"
)

// Metrics is the windowed aggregate for one agent.
type Metrics struct {
	AgentName    string        `json:"agent_name"`
	Window       time.Duration `json:"-"`
	SessionCount int           `json:"session_count"`
	SuccessRate  float64       `json:"success_rate"`
	TotalCostUSD float64       `json:"total_cost_usd"`
	TotalTokens  int64         `json:"total_tokens"`
	Cost         metrics.Stats `json:"cost_usd"`
	LatencyMS    metrics.Stats `json:"latency_ms"`
	Tokens       metrics.Stats `json:"tokens"`
}

// Anomaly is one session whose metric deviates from the window mean by more
// than the configured number of standard deviations.
type Anomaly struct {
	SessionID  string  `json:"session_id"`
	Metric     string  `json:"metric"`
	Value      float64 `json:"value"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
	Deviations float64 `json:"deviations"`
}

// sessionRollup is one session's aggregated cost/token/latency figures.
type sessionRollup struct {
	id        string
	cost      float64
	tokens    float64
	latencyMS float64
	hasEnd    bool
}

// AgentMetrics aggregates an agent's sessions that started within the
// window. Success rate is computed over sessions that recorded an outcome.
func AgentMetrics(db *gorm.DB, agent string, window time.Duration) (*Metrics, error) {
	rollups, sessions, err := loadWindow(db, agent, window)
	if err != nil {
		return nil, err
	}

	m := &Metrics{AgentName: agent, Window: window, SessionCount: len(sessions)}

	outcomes, successes := 0, 0
	for _, s := range sessions {
		if s.OutcomeStatus == "" {
			continue
		}
		outcomes++
		if s.OutcomeStatus == models.OutcomeSuccess {
			successes++
		}
	}
	if outcomes > 0 {
		m.SuccessRate = float64(successes) / float64(outcomes)
	}

	var costs, tokens, latencies []float64
	for _, r := range rollups {
		costs = append(costs, r.cost)
		tokens = append(tokens, r.tokens)
		if r.hasEnd {
			latencies = append(latencies, r.latencyMS)
		}
		m.TotalCostUSD += r.cost
		m.TotalTokens += int64(r.tokens)
	}
	m.Cost = metrics.Statistics(costs)
	m.Tokens = metrics.Statistics(tokens)
	m.LatencyMS = metrics.Statistics(latencies)
	return m, nil
}

// DetectAnomalies flags sessions in the window whose cost, latency, or
// token totals sit more than cfg.StdDevs standard deviations from the
// window mean. Fewer than cfg.MinSessions sessions is insufficient data
// and yields no anomalies.
func DetectAnomalies(db *gorm.DB, agent string, window time.Duration, cfg config.AnomalyThresholds) ([]Anomaly, error) {
	rollups, _, err := loadWindow(db, agent, window)
	if err != nil {
		return nil, err
	}
	if len(rollups) < cfg.MinSessions {
		return nil, nil
	}

	var anomalies []Anomaly
	anomalies = append(anomalies, flagOutliers(rollups, "cost_usd", cfg.StdDevs, func(r sessionRollup) (float64, bool) {
		return r.cost, true
	})...)
	anomalies = append(anomalies, flagOutliers(rollups, "total_tokens", cfg.StdDevs, func(r sessionRollup) (float64, bool) {
		return r.tokens, true
	})...)
	anomalies = append(anomalies, flagOutliers(rollups, "latency_ms", cfg.StdDevs, func(r sessionRollup) (float64, bool) {
		return r.latencyMS, r.hasEnd
	})...)
	return anomalies, nil
}

// flagOutliers runs the mean/stddev test for one metric across the window.
func flagOutliers(rollups []sessionRollup, metric string, stdDevs float64, value func(sessionRollup) (float64, bool)) []Anomaly {
	var values []float64
	for _, r := range rollups {
		if v, ok := value(r); ok {
			values = append(values, v)
		}
	}
	stats := metrics.Statistics(values)
	if stats.StdDev == 0 {
		return nil
	}

	var out []Anomaly
	for _, r := range rollups {
		v, ok := value(r)
		if !ok {
			continue
		}
		deviations := (v - stats.Mean) / stats.StdDev
		if deviations < 0 {
			deviations = -deviations
		}
		if deviations > stdDevs {
			out = append(out, Anomaly{
				SessionID:  r.id,
				Metric:     metric,
				Value:      v,
				Mean:       stats.Mean,
				StdDev:     stats.StdDev,
				Deviations: deviations,
			})
		}
	}
	return out
}

// loadWindow returns per-session rollups and the raw sessions for an agent
// within the window.
func loadWindow(db *gorm.DB, agent string, window time.Duration) ([]sessionRollup, []models.Session, error) {
	cutoff := time.Now().Add(-window)

	var sessions []models.Session
	if err := db.Where("agent_name = ? AND start_time >= ?", agent, cutoff).
		Order("start_time ASC").Find(&sessions).Error; err != nil {
		return nil, nil, fmt.Errorf("analytics: load sessions for %s: %w", agent, err)
	}
	if len(sessions) == 0 {
		return nil, nil, nil
	}

	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}

	type row struct {
		SessionID string
		Cost      float64
		Tokens    float64
	}
	var rows []row
	if err := db.Model(&models.ModelCall{}).
		Select("session_id, SUM(cost_usd) AS cost, SUM(total_tokens) AS tokens").
		Where("session_id IN ?", ids).
		Group("session_id").
		Scan(&rows).Error; err != nil {
		return nil, nil, fmt.Errorf("analytics: aggregate model calls for %s: %w", agent, err)
	}
	byID := make(map[string]row, len(rows))
	for _, r := range rows {
		byID[r.SessionID] = r
	}

	rollups := make([]sessionRollup, 0, len(sessions))
	for _, s := range sessions {
		r := sessionRollup{id: s.ID, cost: byID[s.ID].Cost, tokens: byID[s.ID].Tokens}
		if s.EndTime != nil {
			r.hasEnd = true
			r.latencyMS = float64(s.EndTime.Sub(s.StartTime).Milliseconds())
		}
		rollups = append(rollups, r)
	}
	return rollups, sessions, nil
}
