package reload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/verdict/pkg/source"
)

// Scheduler reloads a manager on a cron schedule. Sources implementing
// source.Refresher are refreshed first, and the reload is skipped when
// nothing changed upstream.
type Scheduler struct {
	manager  *Manager
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler for m. schedule uses standard cron
// syntax or descriptors such as "@every 1m".
func NewScheduler(m *Manager, schedule string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		manager:  m,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "reload.scheduler"),
	}
}

// Start schedules reloads. An empty schedule is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("reload schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule reload: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("reload scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// RunOnce performs one scheduled refresh and reload.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if r, ok := s.manager.Source().(source.Refresher); ok {
		changed, err := r.Refresh(ctx)
		if err != nil {
			s.logger.Error("source refresh failed", "error", err)
			return
		}
		if !changed && s.manager.Current() != nil {
			s.logger.Debug("source unchanged, skipping reload")
			return
		}
	}
	// Errors are logged and reported to listeners by reload.
	_ = s.manager.reload(ctx, TriggerSchedule)
}

// Stop stops the scheduler and waits for a running reload to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("reload scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled reload time.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
