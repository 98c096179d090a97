package usecase

import (
	"context"
	"log/slog"
	"time"

	"NewsBoard/internal/ports"
)

// Scheduler wires the ticker driver with surface refreshes: every tick leaves
// the current session and enters a fresh one.
type Scheduler struct {
	driver  ports.Scheduler
	surface *Surface
	logger  *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring refreshes.
func NewScheduler(driver ports.Scheduler, surface *Surface, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, surface: surface, logger: logger}
}

// Start registers the refresh job with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.surface == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.Refresh(ctx, trigger)
	}

	return s.driver.Start(ctx, job)
}

// Refresh runs one surface session and waits for its content gate.
func (s *Scheduler) Refresh(ctx context.Context, trigger time.Time) {
	session, err := s.surface.Enter(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("refresh surface", "error", err)
		}
		return
	}

	ready := session.Ready(ctx)
	if s.logger != nil {
		s.logger.Info("surface refreshed",
			"session", session.ID,
			"trigger", trigger.Format(time.RFC3339),
			"ready", ready)
	}
}

// Stop gracefully tears down the underlying scheduler and leaves the surface.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.surface != nil {
		defer s.surface.Leave()
	}
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
