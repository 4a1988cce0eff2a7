// Package scheduler re-runs the update pipeline at a configured interval.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/docserve/internal/logfields"
)

// Scheduler wraps gocron for periodic pipeline runs.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// New creates a scheduler instance.
func New() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

// SchedulePipeline registers a periodic pipeline run. The run function is
// invoked with the scheduler's base context; overlapping runs are prevented
// by gocron's singleton mode since a slow batch must not stack up behind
// itself.
func (s *Scheduler) SchedulePipeline(ctx context.Context, interval time.Duration, run func(context.Context)) error {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { run(ctx) }),
		gocron.WithName("pipeline-update"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("create periodic pipeline job: %w", err)
	}

	slog.Info("Scheduled periodic pipeline",
		slog.String("job_id", job.ID().String()),
		slog.Duration("interval", interval))
	return nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	if err := s.scheduler.Shutdown(); err != nil {
		slog.Warn("Scheduler shutdown failed", logfields.Error(err))
		return err
	}
	return nil
}
