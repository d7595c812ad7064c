package usecase

import (
	"context"
	"log/slog"
	"time"

	"CatalogSync/internal/ports"
)

// Scheduler wires an interval driver with one pipeline job.
type Scheduler struct {
	name   string
	driver ports.Scheduler
	job    func(ctx context.Context)
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop a recurring job.
func NewScheduler(name string, driver ports.Scheduler, job func(ctx context.Context), logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{name: name, driver: driver, job: job, logger: logger}
}

// Start registers the job with the driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.job == nil {
		return nil
	}

	return s.driver.Start(ctx, func(trigger time.Time) {
		s.logger.Debug("job triggered", "job", s.name, "at", trigger)
		s.job(ctx)
	})
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
