// Package scheduler is the durable analysis queue. Every ingested session
// fans out to one AnalysisJob per analyzer; workers claim jobs atomically,
// retry failures with exponential backoff, and park exhausted jobs in a
// dead-letter status for operators.
package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/bagula/platform/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errNoJob = errors.New("scheduler: no claimable job")

// Enqueue records one analysis job for a session. The (session, analyzer)
// unique index plus DO NOTHING makes this idempotent: re-enqueueing an
// already-scheduled or already-finished job is a silent no-op.
func Enqueue(db *gorm.DB, sessionID, agent, analyzer string) error {
	if sessionID == "" {
		return fmt.Errorf("scheduler: sessionID is required")
	}
	job := models.AnalysisJob{
		SessionID: sessionID,
		Analyzer:  analyzer,
		AgentName: agent,
		Status:    models.JobPending,
		NextRunAt: time.Now(),
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&job).Error; err != nil {
		return fmt.Errorf("scheduler: enqueue %s/%s: %w", sessionID, analyzer, err)
	}
	return nil
}

// EnqueueAll schedules every analyzer for a session.
func EnqueueAll(db *gorm.DB, sessionID, agent string) error {
	for _, analyzer := range models.AllAnalyzers() {
		if err := Enqueue(db, sessionID, agent, analyzer); err != nil {
			return err
		}
	}
	return nil
}

// Claim atomically takes the oldest runnable job for one of the given
// analyzers and assigns it to the worker. It returns (nil, nil) when the
// queue is empty. Uses SELECT ... FOR UPDATE SKIP LOCKED so concurrent
// workers never double-claim.
//
// Note: sqlite ignores SKIP LOCKED. Correctness is preserved via
// transaction serialization; just lower concurrency.
func Claim(db *gorm.DB, workerID string, analyzers []string) (*models.AnalysisJob, error) {
	if workerID == "" {
		return nil, fmt.Errorf("scheduler: workerID is required")
	}
	if len(analyzers) == 0 {
		return nil, fmt.Errorf("scheduler: at least one analyzer is required")
	}

	var claimed models.AnalysisJob

	err := db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("status = ? AND analyzer IN ? AND next_run_at <= ?",
			models.JobPending, analyzers, time.Now()).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Order("next_run_at ASC, id ASC").
			Limit(1).
			Find(&claimed)

		if result.Error != nil {
			return fmt.Errorf("scheduler: find pending job: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return errNoJob
		}

		if err := tx.Model(&models.AnalysisJob{}).Where("id = ?", claimed.ID).Updates(map[string]interface{}{
			"status":     models.JobRunning,
			"claimed_by": workerID,
			"attempts":   gorm.Expr("attempts + 1"),
		}).Error; err != nil {
			return fmt.Errorf("scheduler: claim job %d: %w", claimed.ID, err)
		}
		claimed.Status = models.JobRunning
		claimed.ClaimedBy = workerID
		claimed.Attempts++
		return nil
	})

	if errors.Is(err, errNoJob) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &claimed, nil
}

// Complete marks a job done. Callers run it inside the same transaction
// that persists the job's opportunities, so a crash between the two never
// loses results.
func Complete(tx *gorm.DB, jobID uint) error {
	now := time.Now()
	if err := tx.Model(&models.AnalysisJob{}).Where("id = ?", jobID).Updates(map[string]interface{}{
		"status":       models.JobDone,
		"completed_at": now,
	}).Error; err != nil {
		return fmt.Errorf("scheduler: complete job %d: %w", jobID, err)
	}
	return nil
}

// RetryPolicy controls failure handling for the queue.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// Backoff returns the delay before the next attempt: base doubled per prior
// attempt, capped at the policy maximum.
func (p RetryPolicy) Backoff(attempts int) time.Duration {
	base := p.BackoffBase
	if base <= 0 {
		base = 5 * time.Second
	}
	max := p.BackoffMax
	if max <= 0 {
		max = 5 * time.Minute
	}
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Fail records a job failure. Jobs with attempts left go back to pending
// with a backoff delay; exhausted jobs become a dead-letter record in
// status failed, keeping their last error for operators.
func Fail(db *gorm.DB, job *models.AnalysisJob, jobErr error, policy RetryPolicy) error {
	lastError := ""
	if jobErr != nil {
		lastError = jobErr.Error()
	}

	if policy.MaxAttempts > 0 && job.Attempts >= policy.MaxAttempts {
		now := time.Now()
		if err := db.Model(&models.AnalysisJob{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
			"status":       models.JobFailed,
			"last_error":   lastError,
			"completed_at": now,
		}).Error; err != nil {
			return fmt.Errorf("scheduler: dead-letter job %d: %w", job.ID, err)
		}
		return nil
	}

	next := time.Now().Add(policy.Backoff(job.Attempts))
	if err := db.Model(&models.AnalysisJob{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
		"status":      models.JobPending,
		"last_error":  lastError,
		"next_run_at": next,
		"claimed_by":  "",
	}).Error; err != nil {
		return fmt.Errorf("scheduler: retry job %d: %w", job.ID, err)
	}
	return nil
}

// ReapStale recovers jobs stuck in running after a worker died. Jobs with
// attempts left return to pending for immediate reclaim; exhausted jobs go
// straight to the dead-letter status.
func ReapStale(db *gorm.DB, olderThan time.Duration, maxAttempts int) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	dead := db.Model(&models.AnalysisJob{}).
		Where("status = ? AND updated_at < ? AND attempts >= ?", models.JobRunning, cutoff, maxAttempts).
		Updates(map[string]interface{}{
			"status":     models.JobFailed,
			"last_error": "worker lost: job exceeded its attempt budget while running",
		})
	if dead.Error != nil {
		return 0, fmt.Errorf("scheduler: reap exhausted jobs: %w", dead.Error)
	}

	requeued := db.Model(&models.AnalysisJob{}).
		Where("status = ? AND updated_at < ?", models.JobRunning, cutoff).
		Updates(map[string]interface{}{
			"status":      models.JobPending,
			"next_run_at": time.Now(),
			"claimed_by":  "",
			"last_error":  "worker lost: job requeued by reaper",
		})
	if requeued.Error != nil {
		return dead.RowsAffected, fmt.Errorf("scheduler: requeue stale jobs: %w", requeued.Error)
	}
	return dead.RowsAffected + requeued.RowsAffected, nil
}

// Counts returns the number of jobs per status, for the health endpoint and
// the CLI.
func Counts(db *gorm.DB) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, status := range []string{models.JobPending, models.JobRunning, models.JobDone, models.JobFailed} {
		var n int64
		if err := db.Model(&models.AnalysisJob{}).Where("status = ?", status).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("scheduler: count %s jobs: %w", status, err)
		}
		counts[status] = n
	}
	return counts, nil
}
