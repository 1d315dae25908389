package usecase

import (
	"context"
	"log/slog"
	"time"

	"IntelDigest/internal/domain"
	"IntelDigest/internal/ports"
)

// Scheduler wires the time-based driver with the digest runner.
type Scheduler struct {
	driver ports.Scheduler
	runner *Runner
	specs  []domain.PipelineSpec
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring digest runs.
func NewScheduler(driver ports.Scheduler, runner *Runner, specs []domain.PipelineSpec, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, runner: runner, specs: specs, logger: logger}
}

// Start registers the runner with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.runner == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.logger.Info("scheduled run triggered", "at", trigger)
		if _, err := s.runner.RunAll(ctx, s.specs); err != nil {
			s.logger.Error("scheduled run finished with failures", "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
