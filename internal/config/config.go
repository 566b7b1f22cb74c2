// Package config provides YAML-based configuration loading for the Bagula
// analysis platform. All detector thresholds live here so detection policy
// is tunable without redeploying detector logic.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level platform configuration, loaded from bagula.yaml.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Workers  WorkersConfig  `yaml:"workers"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Judge    JudgeConfig    `yaml:"judge"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port    int      `yaml:"port"`
	APIKeys []string `yaml:"api_keys"`
}

// DatabaseConfig selects the backing store. Driver is "sqlite" for local
// deployments and tests, "mysql" for server deployments.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"` // sqlite file path
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// WorkersConfig controls the analyzer consumer pools. Regression runs at
// lower concurrency because each job is judge-bound.
type WorkersConfig struct {
	Concurrency           int           `yaml:"concurrency"`
	RegressionConcurrency int           `yaml:"regression_concurrency"`
	PollInterval          Duration      `yaml:"poll_interval"`
	JobTimeout            Duration      `yaml:"job_timeout"`
	MaxAttempts           int           `yaml:"max_attempts"`
	BackoffBase           Duration      `yaml:"backoff_base"`
	BackoffMax            Duration      `yaml:"backoff_max"`
	ReapAfter             Duration      `yaml:"reap_after"`
}

// AnalysisConfig groups the per-detector thresholds.
type AnalysisConfig struct {
	Cost        CostThresholds        `yaml:"cost"`
	Performance PerformanceThresholds `yaml:"performance"`
	Quality     QualityThresholds     `yaml:"quality"`
	Baseline    BaselineThresholds    `yaml:"baseline"`
	Regression  RegressionThresholds  `yaml:"regression"`
	Anomaly     AnomalyThresholds     `yaml:"anomaly"`
}

// CostThresholds tune the cost detector.
type CostThresholds struct {
	CallCostUSD        float64  `yaml:"call_cost_usd"`
	TokenCeiling       int64    `yaml:"token_ceiling"`
	RepeatCallLimit    int      `yaml:"repeat_call_limit"`
	PremiumModels      []string `yaml:"premium_models"`
	ShortOutputTokens  int64    `yaml:"short_output_tokens"`
	DowngradeSavingPct float64  `yaml:"downgrade_saving_pct"`
}

// PerformanceThresholds tune the performance detector.
type PerformanceThresholds struct {
	SlowToolMS        int64 `yaml:"slow_tool_ms"`
	TimeoutWarningMS  int64 `yaml:"timeout_warning_ms"`
	ExcessiveTurns    int   `yaml:"excessive_turns"`
	ParallelGapMS     int64 `yaml:"parallel_gap_ms"`
	AvgTurnDurationMS int64 `yaml:"avg_turn_duration_ms"`
}

// QualityThresholds tune the quality detector.
type QualityThresholds struct {
	FailureRate     float64       `yaml:"failure_rate"`
	MinToolCalls    int           `yaml:"min_tool_calls"`
	ToolFailureRate float64       `yaml:"tool_failure_rate"`
	RetryCount      int           `yaml:"retry_count"`
	RetryWindow     Duration      `yaml:"retry_window"`
}

// BaselineThresholds tune baseline comparison.
type BaselineThresholds struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MetricSwingPct      float64 `yaml:"metric_swing_pct"`
}

// RegressionThresholds tune the regression detector.
type RegressionThresholds struct {
	SummaryResponses int `yaml:"summary_responses"`
	SummaryMaxBytes  int `yaml:"summary_max_bytes"`
}

// AnomalyThresholds tune windowed anomaly detection.
type AnomalyThresholds struct {
	MinSessions int     `yaml:"min_sessions"`
	StdDevs     float64 `yaml:"std_devs"`
}

// JudgeConfig configures the injected regression judge.
type JudgeConfig struct {
	Command string        `yaml:"command"`
	Timeout Duration `yaml:"timeout"`
}

// NotifyConfig configures outbound opportunity notifications.
type NotifyConfig struct {
	MinSeverity    string `yaml:"min_severity"`
	SlackToken     string `yaml:"slack_token"`
	SlackChannel   string `yaml:"slack_channel"`
	DiscordToken   string `yaml:"discord_token"`
	DiscordChannel string `yaml:"discord_channel"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config with every default applied, used when no config
// file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "bagula.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "bagula"
	}

	if c.Workers.Concurrency == 0 {
		c.Workers.Concurrency = 4
	}
	if c.Workers.RegressionConcurrency == 0 {
		c.Workers.RegressionConcurrency = 1
	}
	if c.Workers.PollInterval == 0 {
		c.Workers.PollInterval = Duration(2 * time.Second)
	}
	if c.Workers.JobTimeout == 0 {
		c.Workers.JobTimeout = Duration(2 * time.Minute)
	}
	if c.Workers.MaxAttempts == 0 {
		c.Workers.MaxAttempts = 3
	}
	if c.Workers.BackoffBase == 0 {
		c.Workers.BackoffBase = Duration(5 * time.Second)
	}
	if c.Workers.BackoffMax == 0 {
		c.Workers.BackoffMax = Duration(5 * time.Minute)
	}
	if c.Workers.ReapAfter == 0 {
		c.Workers.ReapAfter = Duration(10 * time.Minute)
	}

	if c.Analysis.Cost.CallCostUSD == 0 {
		c.Analysis.Cost.CallCostUSD = 0.10
	}
	if c.Analysis.Cost.TokenCeiling == 0 {
		c.Analysis.Cost.TokenCeiling = 50_000
	}
	if c.Analysis.Cost.RepeatCallLimit == 0 {
		c.Analysis.Cost.RepeatCallLimit = 3
	}
	if len(c.Analysis.Cost.PremiumModels) == 0 {
		c.Analysis.Cost.PremiumModels = []string{"claude-opus", "gpt-5-pro", "o1"}
	}
	if c.Analysis.Cost.ShortOutputTokens == 0 {
		c.Analysis.Cost.ShortOutputTokens = 500
	}
	if c.Analysis.Cost.DowngradeSavingPct == 0 {
		c.Analysis.Cost.DowngradeSavingPct = 0.8
	}

	if c.Analysis.Performance.SlowToolMS == 0 {
		c.Analysis.Performance.SlowToolMS = 5_000
	}
	if c.Analysis.Performance.TimeoutWarningMS == 0 {
		c.Analysis.Performance.TimeoutWarningMS = 25_000
	}
	if c.Analysis.Performance.ExcessiveTurns == 0 {
		c.Analysis.Performance.ExcessiveTurns = 20
	}
	if c.Analysis.Performance.ParallelGapMS == 0 {
		c.Analysis.Performance.ParallelGapMS = 100
	}
	if c.Analysis.Performance.AvgTurnDurationMS == 0 {
		c.Analysis.Performance.AvgTurnDurationMS = 30_000
	}

	if c.Analysis.Quality.FailureRate == 0 {
		c.Analysis.Quality.FailureRate = 0.25
	}
	if c.Analysis.Quality.MinToolCalls == 0 {
		c.Analysis.Quality.MinToolCalls = 5
	}
	if c.Analysis.Quality.ToolFailureRate == 0 {
		c.Analysis.Quality.ToolFailureRate = 0.5
	}
	if c.Analysis.Quality.RetryCount == 0 {
		c.Analysis.Quality.RetryCount = 3
	}
	if c.Analysis.Quality.RetryWindow == 0 {
		c.Analysis.Quality.RetryWindow = Duration(30 * time.Second)
	}

	if c.Analysis.Baseline.SimilarityThreshold == 0 {
		c.Analysis.Baseline.SimilarityThreshold = 0.85
	}
	if c.Analysis.Baseline.MetricSwingPct == 0 {
		c.Analysis.Baseline.MetricSwingPct = 50
	}

	if c.Analysis.Regression.SummaryResponses == 0 {
		c.Analysis.Regression.SummaryResponses = 3
	}
	if c.Analysis.Regression.SummaryMaxBytes == 0 {
		c.Analysis.Regression.SummaryMaxBytes = 4096
	}

	if c.Analysis.Anomaly.MinSessions == 0 {
		c.Analysis.Anomaly.MinSessions = 5
	}
	if c.Analysis.Anomaly.StdDevs == 0 {
		c.Analysis.Anomaly.StdDevs = 2
	}

	if c.Judge.Command == "" {
		c.Judge.Command = "claude"
	}
	if c.Judge.Timeout == 0 {
		c.Judge.Timeout = Duration(60 * time.Second)
	}

	if c.Notify.MinSeverity == "" {
		c.Notify.MinSeverity = "high"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if c.Workers.Concurrency < 1 {
		errs = append(errs, "workers.concurrency must be at least 1")
	}
	if c.Workers.MaxAttempts < 1 {
		errs = append(errs, "workers.max_attempts must be at least 1")
	}
	if c.Analysis.Baseline.SimilarityThreshold < 0 || c.Analysis.Baseline.SimilarityThreshold > 1 {
		errs = append(errs, "analysis.baseline.similarity_threshold must be in [0,1]")
	}
	if c.Analysis.Quality.FailureRate < 0 || c.Analysis.Quality.FailureRate > 1 {
		errs = append(errs, "analysis.quality.failure_rate must be in [0,1]")
	}
	switch c.Notify.MinSeverity {
	case "low", "medium", "high":
	default:
		errs = append(errs, fmt.Sprintf("notify.min_severity %q is not a severity", c.Notify.MinSeverity))
	}
	if c.Judge.Timeout >= c.Workers.JobTimeout {
		errs = append(errs, "judge.timeout must be shorter than workers.job_timeout")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
