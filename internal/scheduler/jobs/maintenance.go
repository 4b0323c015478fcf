package jobs

import (
	"context"

	"github.com/swagat2001/systematic-sector-rotation/internal/backtest"
	"github.com/swagat2001/systematic-sector-rotation/pkg/logger"
)

// RunCleanupJob prunes old backtest runs so the runs table does not grow
// without bound.
type RunCleanupJob struct {
	repo *backtest.Repository
	keep int
	log  *logger.Logger
}

// NewRunCleanupJob creates a cleanup job retaining the newest keep runs.
func NewRunCleanupJob(repo *backtest.Repository, keep int, log *logger.Logger) *RunCleanupJob {
	return &RunCleanupJob{
		repo: repo,
		keep: keep,
		log:  log,
	}
}

// Name returns the job name.
func (j *RunCleanupJob) Name() string {
	return "run_cleanup"
}

// Schedule returns the cron schedule (2 AM every Sunday).
func (j *RunCleanupJob) Schedule() string {
	return "0 0 2 * * SUN"
}

// Run executes the cleanup.
func (j *RunCleanupJob) Run(ctx context.Context) error {
	j.log.Debug("Starting scheduled run cleanup")

	count, err := j.repo.PruneRuns(ctx, j.keep)
	if err != nil {
		return err
	}

	if count > 0 {
		j.log.WithField("removed", count).Info("Old backtest runs pruned")
	}

	return nil
}
