package workers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/queue"
)

// SweepScheduler enqueues a sync_all_users job on a fixed interval so missed
// reconciliations are repaired without an operator.
type SweepScheduler struct {
	jobQueue queue.Enqueuer
	interval time.Duration
	logger   *zap.Logger
}

// NewSweepScheduler creates a scheduler. A non-positive interval disables it.
func NewSweepScheduler(jobQueue queue.Enqueuer, interval time.Duration, logger *zap.Logger) *SweepScheduler {
	return &SweepScheduler{jobQueue: jobQueue, interval: interval, logger: logger}
}

// ScheduleSweep enqueues a single sweep job.
func (s *SweepScheduler) ScheduleSweep(ctx context.Context) error {
	job := queue.NewSweepJob()
	if err := s.jobQueue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue sweep job: %w", err)
	}
	s.logger.Info("scheduled_sweep_job",
		zap.String("job_id", job.ID.String()),
		zap.Time("expires_at", *job.NotAfter),
	)
	return nil
}

// Run schedules sweeps until ctx is cancelled.
func (s *SweepScheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("sweep_scheduler_disabled")
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.ScheduleSweep(ctx); err != nil {
				s.logger.Warn("failed_to_schedule_sweep", zap.Error(err))
			}
		}
	}
}
