package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// SchedulerStore is the subset of Store the scheduler needs.
type SchedulerStore interface {
	ClaimDueJobs(ctx context.Context, limit int) ([]string, error)
	DeferJob(ctx context.Context, jobID string) error
	ReapStaleLeases(ctx context.Context, leaseTimeout time.Duration) (int64, error)
	ReapStuckPending(ctx context.Context, staleness time.Duration) (int64, error)
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	LeaseTimeout time.Duration
}

// Scheduler moves due jobs onto the broker and reclaims jobs whose worker
// lease expired. Runs inside the worker service; multiple instances are safe
// because ClaimDueJobs skips locked rows.
type Scheduler struct {
	store     SchedulerStore
	publisher Publisher
	logger    *slog.Logger
	config    SchedulerConfig
}

// NewScheduler creates a new Scheduler instance
func NewScheduler(store SchedulerStore, publisher Publisher, config SchedulerConfig, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:     store,
		publisher: publisher,
		logger:    logger,
		config:    config,
	}
}

// Run executes scheduler sweeps until the context is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Queue scheduler started",
		slog.Duration("poll_interval", s.config.PollInterval),
		slog.Int("batch_size", s.config.BatchSize),
		slog.Duration("lease_timeout", s.config.LeaseTimeout),
	)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Queue scheduler stopped - context canceled")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one scheduler pass: reap stale leases and stuck PENDING
// rows, then publish due jobs.
func (s *Scheduler) Sweep(ctx context.Context) {
	reaped, err := s.store.ReapStaleLeases(ctx, s.config.LeaseTimeout)
	if err != nil {
		s.logger.Error("Failed to reap stale leases",
			slog.Any("error", err),
		)
	} else if reaped > 0 {
		s.logger.Warn("Rescheduled jobs with expired leases",
			slog.Int64("count", reaped),
		)
	}

	// A PENDING row this old has no broker message behind it (crash before
	// publish, or a lost defer); put it back on the schedule.
	stuck, err := s.store.ReapStuckPending(ctx, s.config.LeaseTimeout)
	if err != nil {
		s.logger.Error("Failed to reap stuck pending jobs",
			slog.Any("error", err),
		)
	} else if stuck > 0 {
		s.logger.Warn("Rescheduled pending jobs with no broker message",
			slog.Int64("count", stuck),
		)
	}

	ids, err := s.store.ClaimDueJobs(ctx, s.config.BatchSize)
	if err != nil {
		s.logger.Error("Failed to claim due jobs",
			slog.Any("error", err),
		)
		return
	}

	for _, jobID := range ids {
		msg, err := json.Marshal(JobMessage{JobID: jobID})
		if err != nil {
			s.logger.Error("Failed to marshal job message",
				slog.String("job_id", jobID),
				slog.Any("error", err),
			)
			continue
		}

		if err := s.publisher.Publish(ctx, msg, "application/json"); err != nil {
			s.logger.Error("Failed to publish due job, deferring",
				slog.String("job_id", jobID),
				slog.Any("error", err),
			)
			if deferErr := s.store.DeferJob(ctx, jobID); deferErr != nil {
				s.logger.Error("Failed to defer job after publish failure",
					slog.String("job_id", jobID),
					slog.Any("error", deferErr),
				)
			}
			continue
		}

		s.logger.Debug("Due job published",
			slog.String("job_id", jobID),
		)
	}
}
