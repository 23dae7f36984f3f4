package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"book_harvester/internal/domain"
	"book_harvester/internal/harvest"
)

// jobTimeout bounds one scheduled harvest pass across all sources.
const jobTimeout = 30 * time.Minute

// Harvester runs one harvest job.
type Harvester interface {
	Run(ctx context.Context, opts harvest.RunOptions) (*domain.JobResult, error)
}

type Scheduler struct {
	harvester Harvester
	interval  time.Duration
	logger    *slog.Logger
}

func NewScheduler(harvester Harvester, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		harvester: harvester,
		interval:  interval,
		logger:    logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runJob(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runJob(ctx)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context) {
	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	_, err := s.harvester.Run(jobCtx, harvest.RunOptions{})
	if errors.Is(err, harvest.ErrJobInProgress) {
		// An operator-triggered job is still running; the ticker will come
		// back around.
		s.logger.Warn("scheduled harvest skipped, job already running")
		return
	}
	if err != nil {
		s.logger.Error("scheduled harvest failed", "error", err)
	}
}
