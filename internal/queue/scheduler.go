package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler triggers reconciliation passes on a cron schedule
type Scheduler struct {
	cron     *cron.Cron
	queue    *Queue
	schedule string
	logger   *zap.Logger
}

// NewScheduler creates a scheduler for a cron schedule (e.g. "@every 15m" or "*/10 * * * *").
// An empty schedule yields a scheduler that never fires.
func NewScheduler(q *Queue, schedule string, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{
		cron:     cron.New(),
		queue:    q,
		schedule: schedule,
		logger:   logger,
	}

	if schedule == "" {
		return s, nil
	}

	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins the scheduler
func (s *Scheduler) Start() {
	if s.schedule == "" {
		s.logger.Info("reconcile scheduler disabled")
		return
	}
	s.cron.Start()
	s.logger.Info("reconcile scheduler started", zap.String("schedule", s.schedule))
}

// Stop gracefully shuts down the scheduler, waiting for a running pass
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("reconcile scheduler stopped")
}

func (s *Scheduler) run() {
	report, err := s.queue.Reconcile(context.Background())
	if errors.Is(err, ErrReconcileInProgress) {
		s.logger.Debug("skipping scheduled reconcile, pass already running")
		return
	}
	if err != nil {
		s.logger.Error("scheduled reconcile failed", zap.Error(err))
		return
	}
	if len(report.Processed) > 0 || len(report.Failed) > 0 {
		s.logger.Info("scheduled reconcile",
			zap.Int("processed", len(report.Processed)),
			zap.Int("failed", len(report.Failed)),
			zap.Int("remaining", report.RemainingCount))
	}
}
