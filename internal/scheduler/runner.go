package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bagula/platform/internal/config"
	"github.com/bagula/platform/internal/detect"
	"github.com/bagula/platform/internal/models"
	"github.com/bagula/platform/internal/regression"
	"gorm.io/gorm"
)

// Runner drives the analyzer worker pools. The general pool serves cost,
// performance, and quality jobs; regression gets its own smaller pool
// because every job waits on the judge.
type Runner struct {
	DB         *gorm.DB
	Config     *config.Provider
	Regression *regression.Detector

	// Notify, when set, receives every persisted opportunity at or above
	// the configured minimum severity. Called outside the job transaction.
	Notify func(context.Context, models.Opportunity)

	// WorkerID prefixes the per-goroutine claim IDs. Defaults to "worker".
	WorkerID string
}

// Run starts the worker pools and the stale-job reaper, blocking until ctx
// is cancelled and every worker has drained.
func (r *Runner) Run(ctx context.Context) error {
	if r.DB == nil {
		return fmt.Errorf("scheduler: db is required")
	}
	if r.Config == nil {
		return fmt.Errorf("scheduler: config is required")
	}
	prefix := r.WorkerID
	if prefix == "" {
		prefix = "worker"
	}

	cfg := r.Config.Snapshot()
	general := []string{models.AnalyzerCost, models.AnalyzerPerformance, models.AnalyzerQuality}

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers.Concurrency; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.loop(ctx, id, general)
		}(fmt.Sprintf("%s-%d", prefix, i))
	}
	for i := 0; i < cfg.Workers.RegressionConcurrency; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.loop(ctx, id, []string{models.AnalyzerRegression})
		}(fmt.Sprintf("%s-regression-%d", prefix, i))
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.reapLoop(ctx)
	}()

	wg.Wait()
	return nil
}

// loop claims and runs jobs until ctx is cancelled, sleeping through empty
// polls.
func (r *Runner) loop(ctx context.Context, workerID string, analyzers []string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		cfg := r.Config.Snapshot()
		job, err := Claim(r.DB, workerID, analyzers)
		if err != nil {
			log.Printf("scheduler: %s claim error: %v", workerID, err)
			sleepWithContext(ctx, cfg.Workers.PollInterval.Std())
			continue
		}
		if job == nil {
			sleepWithContext(ctx, cfg.Workers.PollInterval.Std())
			continue
		}
		r.runJob(ctx, cfg, job)
	}
}

// runJob executes one claimed job end to end: analyze, persist results and
// completion atomically, then fan out notifications.
func (r *Runner) runJob(ctx context.Context, cfg *config.Config, job *models.AnalysisJob) {
	jobCtx, cancel := context.WithTimeout(ctx, cfg.Workers.JobTimeout.Std())
	defer cancel()

	policy := RetryPolicy{
		MaxAttempts: cfg.Workers.MaxAttempts,
		BackoffBase: cfg.Workers.BackoffBase.Std(),
		BackoffMax:  cfg.Workers.BackoffMax.Std(),
	}

	ops, err := r.analyze(jobCtx, cfg, job)
	if err != nil {
		log.Printf("scheduler: job %d (%s/%s) attempt %d: %v", job.ID, job.SessionID, job.Analyzer, job.Attempts, err)
		if failErr := Fail(r.DB, job, err, policy); failErr != nil {
			log.Printf("scheduler: record failure for job %d: %v", job.ID, failErr)
		}
		return
	}

	err = r.DB.Transaction(func(tx *gorm.DB) error {
		for i := range ops {
			if err := tx.Create(&ops[i]).Error; err != nil {
				return fmt.Errorf("scheduler: persist opportunity %s: %w", ops[i].ID, err)
			}
		}
		return Complete(tx, job.ID)
	})
	if err != nil {
		log.Printf("scheduler: job %d commit: %v", job.ID, err)
		if failErr := Fail(r.DB, job, err, policy); failErr != nil {
			log.Printf("scheduler: record failure for job %d: %v", job.ID, failErr)
		}
		return
	}

	if r.Notify == nil {
		return
	}
	for _, op := range ops {
		if severityRank(op.Severity) >= severityRank(cfg.Notify.MinSeverity) {
			r.Notify(ctx, op)
		}
	}
}

// analyze loads the session graph and dispatches to the job's analyzer.
func (r *Runner) analyze(ctx context.Context, cfg *config.Config, job *models.AnalysisJob) ([]models.Opportunity, error) {
	var session models.Session
	if err := r.DB.Where("id = ?", job.SessionID).First(&session).Error; err != nil {
		return nil, fmt.Errorf("scheduler: load session %s: %w", job.SessionID, err)
	}
	var turns []models.Turn
	if err := r.DB.Where("session_id = ?", job.SessionID).Order("turn_number ASC").Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("scheduler: load turns for %s: %w", job.SessionID, err)
	}
	var modelCalls []models.ModelCall
	if err := r.DB.Where("session_id = ?", job.SessionID).Order("start_time ASC").Find(&modelCalls).Error; err != nil {
		return nil, fmt.Errorf("scheduler: load model calls for %s: %w", job.SessionID, err)
	}
	var toolCalls []models.ToolCall
	if err := r.DB.Where("session_id = ?", job.SessionID).Order("start_time ASC").Find(&toolCalls).Error; err != nil {
		return nil, fmt.Errorf("scheduler: load tool calls for %s: %w", job.SessionID, err)
	}

	switch job.Analyzer {
	case models.AnalyzerCost:
		return detect.AnalyzeCost(&session, turns, modelCalls, toolCalls, cfg.Analysis.Cost), nil
	case models.AnalyzerPerformance:
		return detect.AnalyzePerformance(&session, turns, modelCalls, toolCalls, cfg.Analysis.Performance), nil
	case models.AnalyzerQuality:
		return detect.AnalyzeQuality(&session, turns, modelCalls, toolCalls, cfg.Analysis.Quality), nil
	case models.AnalyzerRegression:
		if r.Regression == nil {
			return nil, nil
		}
		// The baseline comparison reads calls off the turn structs.
		var graph []models.Turn
		if err := r.DB.Preload("ModelCalls").Preload("ToolCalls").
			Where("session_id = ?", job.SessionID).Order("turn_number ASC").Find(&graph).Error; err != nil {
			return nil, fmt.Errorf("scheduler: load session graph for %s: %w", job.SessionID, err)
		}
		return r.Regression.Analyze(ctx, r.DB, &session, graph)
	default:
		return nil, fmt.Errorf("scheduler: unknown analyzer %q", job.Analyzer)
	}
}

// reapLoop periodically recovers jobs orphaned by dead workers.
func (r *Runner) reapLoop(ctx context.Context) {
	for {
		cfg := r.Config.Snapshot()
		interval := cfg.Workers.ReapAfter.Std()
		if interval <= 0 {
			interval = 10 * time.Minute
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		reaped, err := ReapStale(r.DB, interval, cfg.Workers.MaxAttempts)
		if err != nil {
			log.Printf("scheduler: reap: %v", err)
			continue
		}
		if reaped > 0 {
			log.Printf("scheduler: reaped %d stale jobs", reaped)
		}
	}
}

func severityRank(s string) int {
	switch s {
	case models.SeverityHigh:
		return 3
	case models.SeverityMedium:
		return 2
	case models.SeverityLow:
		return 1
	}
	return 0
}

// sleepWithContext sleeps for duration d, returning early if ctx is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
