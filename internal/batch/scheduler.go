package batch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Job is a batch that can be run repeatedly.
type Job interface {
	Run(ctx context.Context, trigger string) (Summary, error)
}

// Scheduler runs a Job periodically.
type Scheduler struct {
	job      Job
	interval time.Duration
	log      zerolog.Logger
}

// NewScheduler creates a new Scheduler. An interval <= 0 disables it.
func NewScheduler(job Job, interval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		job:      job,
		interval: interval,
		log:      log,
	}
}

// Run starts the schedule loop.
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	s.log.Info().Dur("interval", s.interval).Msg("croppings scheduler started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("croppings scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.job.Run(ctx, "scheduler")
	switch {
	case err == nil:
	case errors.Is(err, ErrRunInProgress):
		s.log.Info().Msg("previous run still in progress, skipping")
	case errors.Is(err, context.Canceled):
	default:
		s.log.Error().Err(err).Msg("scheduled run failed")
	}
}
