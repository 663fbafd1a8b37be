package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omriShneor/project_concierge/internal/booking"
)

// ErrReconcileInProgress is returned when a pass is already running
var ErrReconcileInProgress = errors.New("reconciliation already in progress")

const lastReconcileKey = "queue.last_reconcile"

// Policy decides how a pending appointment is treated when it is retried
type Policy string

const (
	// PolicyHonorOriginalSlot writes the original slot without re-checking
	// availability. The earlier request wins.
	PolicyHonorOriginalSlot Policy = "honor_original_slot"
	// PolicyRecheckAvailability leaves an item pending when its slot has
	// since been taken.
	PolicyRecheckAvailability Policy = "recheck_availability"
)

// ParsePolicy maps a configuration value to a Policy
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyHonorOriginalSlot:
		return PolicyHonorOriginalSlot, nil
	case PolicyRecheckAvailability:
		return PolicyRecheckAvailability, nil
	default:
		return "", fmt.Errorf("unknown reconcile policy %q", s)
	}
}

// Store is the durable backing of the queue
type Store interface {
	InsertPending(ctx context.Context, p booking.PendingAppointment) error
	ListPending(ctx context.Context) ([]booking.PendingAppointment, error)
	CountPending(ctx context.Context) (int, error)
	RecordPendingAttempt(ctx context.Context, id, lastError string) error
	CompletePending(ctx context.Context, rec booking.ProcessedAppointment) error
	CountProcessed(ctx context.Context) (int, error)
	ListProcessed(ctx context.Context, limit int) ([]booking.ProcessedAppointment, error)
	GetValue(ctx context.Context, key string) (string, bool, error)
	SetValue(ctx context.Context, key, value string) error
}

// EventWriter performs the external calendar write for a pending item
type EventWriter interface {
	WriteEvent(ctx context.Context, p booking.PendingAppointment) (*booking.Appointment, error)
	CheckAvailability(ctx context.Context, start, end time.Time) error
}

// Notifier is told about every newly queued appointment
type Notifier interface {
	NotifyPendingAppointment(ctx context.Context, p *booking.PendingAppointment)
}

// FailedItem is a pending appointment whose retry failed in a pass
type FailedItem struct {
	Pending booking.PendingAppointment `json:"pending"`
	Error   string                     `json:"error"`
}

// Report summarizes one reconciliation pass
type Report struct {
	Processed      []booking.ProcessedAppointment `json:"processed"`
	StillPending   []booking.PendingAppointment   `json:"still_pending"`
	Failed         []FailedItem                   `json:"failed"`
	RemainingCount int                            `json:"remaining_count"`
	StartedAt      time.Time                      `json:"started_at"`
	FinishedAt     time.Time                      `json:"finished_at"`
}

// Stats is a snapshot of queue sizes
type Stats struct {
	Pending         int        `json:"pending"`
	Processed       int        `json:"processed"`
	LastReconcileAt *time.Time `json:"last_reconcile_at,omitempty"`
}

// Queue holds bookings that could not be written to the calendar and
// retries them in reconciliation passes.
type Queue struct {
	store    Store
	writer   EventWriter
	policy   Policy
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time

	// mu is held for a whole reconciliation pass
	mu sync.Mutex
}

// New creates a queue
func New(store Store, writer EventWriter, policy Policy, logger *zap.Logger) *Queue {
	if policy == "" {
		policy = PolicyHonorOriginalSlot
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		store:  store,
		writer: writer,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// SetNotifier attaches a best-effort notifier for new pending appointments
func (q *Queue) SetNotifier(n Notifier) {
	q.notifier = n
}

// Policy returns the configured reconcile policy
func (q *Queue) Policy() Policy {
	return q.policy
}

// Enqueue persists req as a new pending appointment under id, or a fresh id
// when empty. The insert is the commit point.
func (q *Queue) Enqueue(ctx context.Context, id string, req booking.AppointmentRequest) (*booking.PendingAppointment, error) {
	if id == "" {
		id = uuid.NewString()
	}
	p := &booking.PendingAppointment{
		ID:         id,
		Request:    req,
		EnqueuedAt: q.now(),
	}

	if err := q.store.InsertPending(ctx, *p); err != nil {
		return nil, fmt.Errorf("failed to enqueue appointment: %w", err)
	}

	q.logger.Info("appointment queued for reconciliation",
		zap.String("pending_id", p.ID), zap.Time("start", req.Start))

	if q.notifier != nil {
		q.notifier.NotifyPendingAppointment(ctx, p)
	}
	return p, nil
}

// ListPending returns the queued appointments oldest first
func (q *Queue) ListPending(ctx context.Context) ([]booking.PendingAppointment, error) {
	return q.store.ListPending(ctx)
}

// ListProcessed returns the most recent entries of the processed log
func (q *Queue) ListProcessed(ctx context.Context, limit int) ([]booking.ProcessedAppointment, error) {
	return q.store.ListProcessed(ctx, limit)
}

// Reconcile retries every pending appointment once. The queue lock is held
// for the whole pass; items enqueued meanwhile wait for the next pass.
func (q *Queue) Reconcile(ctx context.Context) (*Report, error) {
	if !q.mu.TryLock() {
		return nil, ErrReconcileInProgress
	}
	defer q.mu.Unlock()

	report := &Report{StartedAt: q.now()}

	pending, err := q.store.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending appointments: %w", err)
	}

	for i, p := range pending {
		if ctx.Err() != nil {
			report.StillPending = append(report.StillPending, pending[i:]...)
			break
		}

		if err := q.retry(ctx, p, report); err != nil {
			q.recordFailure(ctx, p, err, report)
		}
	}

	report.RemainingCount, err = q.store.CountPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending appointments: %w", err)
	}
	report.FinishedAt = q.now()

	q.saveLastReconcile(ctx, report.FinishedAt)
	q.logger.Info("reconciliation finished",
		zap.Int("processed", len(report.Processed)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("remaining", report.RemainingCount))

	return report, nil
}

func (q *Queue) retry(ctx context.Context, p booking.PendingAppointment, report *Report) error {
	if q.policy == PolicyRecheckAvailability {
		if err := q.writer.CheckAvailability(ctx, p.Request.Start, p.Request.End); err != nil {
			return err
		}
	}

	appt, err := q.writer.WriteEvent(ctx, p)
	if err != nil {
		return err
	}

	rec := booking.ProcessedAppointment{
		PendingID:   p.ID,
		EventID:     appt.EventID,
		Link:        appt.Link,
		Request:     p.Request,
		EnqueuedAt:  p.EnqueuedAt,
		Attempts:    p.Attempts + 1,
		ProcessedAt: q.now(),
	}

	// If this fails the event already exists; the next pass sees it again
	// and the idempotent write turns into a no-op.
	if err := q.store.CompletePending(ctx, rec); err != nil {
		return fmt.Errorf("event %s written but not recorded: %w", appt.EventID, err)
	}

	q.logger.Info("pending appointment reconciled",
		zap.String("pending_id", p.ID), zap.String("event_id", appt.EventID))
	report.Processed = append(report.Processed, rec)
	return nil
}

func (q *Queue) recordFailure(ctx context.Context, p booking.PendingAppointment, cause error, report *Report) {
	q.logger.Warn("pending appointment still failing",
		zap.String("pending_id", p.ID), zap.Int("attempts", p.Attempts+1), zap.Error(cause))

	if err := q.store.RecordPendingAttempt(context.WithoutCancel(ctx), p.ID, cause.Error()); err != nil {
		q.logger.Error("failed to record attempt", zap.String("pending_id", p.ID), zap.Error(err))
	} else {
		p.Attempts++
		p.LastError = cause.Error()
	}

	report.Failed = append(report.Failed, FailedItem{Pending: p, Error: cause.Error()})
	report.StillPending = append(report.StillPending, p)
}

// Stats returns the queue sizes and the time of the last pass
func (q *Queue) Stats(ctx context.Context) (*Stats, error) {
	pending, err := q.store.CountPending(ctx)
	if err != nil {
		return nil, err
	}
	processed, err := q.store.CountProcessed(ctx)
	if err != nil {
		return nil, err
	}

	s := &Stats{Pending: pending, Processed: processed}
	if raw, ok, err := q.store.GetValue(ctx, lastReconcileKey); err == nil && ok {
		var at time.Time
		if json.Unmarshal([]byte(raw), &at) == nil {
			s.LastReconcileAt = &at
		}
	}
	return s, nil
}

func (q *Queue) saveLastReconcile(ctx context.Context, at time.Time) {
	raw, _ := json.Marshal(at)
	if err := q.store.SetValue(context.WithoutCancel(ctx), lastReconcileKey, string(raw)); err != nil {
		q.logger.Warn("failed to record reconcile time", zap.Error(err))
	}
}
