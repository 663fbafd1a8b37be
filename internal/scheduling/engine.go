package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omriShneor/project_concierge/internal/booking"
	"github.com/omriShneor/project_concierge/internal/gcal"
	"github.com/omriShneor/project_concierge/internal/timeutil"
)

// Calendar is the external calendar the engine reads and writes
type Calendar interface {
	FreeBusy(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]booking.BusyInterval, error)
	InsertEvent(ctx context.Context, calendarID string, input gcal.EventInput) (*gcal.CreatedEvent, error)
}

// Enqueuer durably stores bookings the calendar could not take
type Enqueuer interface {
	Enqueue(ctx context.Context, id string, req booking.AppointmentRequest) (*booking.PendingAppointment, error)
}

// Config holds the business rules for slot generation and booking
type Config struct {
	Location          *time.Location
	BusinessStart     string // "HH:MM"
	BusinessEnd       string // "HH:MM"
	SlotDuration      time.Duration
	MaxSlots          int
	MaxAlternatives   int
	MinDescriptionLen int
	CalendarID        string
}

// Status is the outcome of a booking attempt
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusConflict  Status = "conflict"
	StatusFallback  Status = "fallback"
)

// BookingResult is returned by CreateAppointment
type BookingResult struct {
	Status       Status                      `json:"status"`
	Appointment  *booking.Appointment        `json:"appointment,omitempty"`
	Alternatives []booking.TimeSlot          `json:"alternatives,omitempty"`
	Pending      *booking.PendingAppointment `json:"pending,omitempty"`
}

// Availability is the list of open slots on a day
type Availability struct {
	Date     string             `json:"date"`
	Slots    []booking.TimeSlot `json:"slots"`
	Degraded bool               `json:"degraded"`
}

// Engine generates slots, checks availability and books appointments
type Engine struct {
	cfg      Config
	startMin int
	endMin   int
	calendar Calendar
	queue    Enqueuer
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine validates cfg and creates an engine. The queue is attached
// later with SetEnqueuer since the queue itself writes through the engine.
func NewEngine(calendar Calendar, cfg Config, logger *zap.Logger) (*Engine, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SlotDuration <= 0 {
		cfg.SlotDuration = 30 * time.Minute
	}
	if cfg.MaxSlots <= 0 {
		cfg.MaxSlots = 9
	}
	if cfg.MaxAlternatives <= 0 {
		cfg.MaxAlternatives = 3
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	startH, startM, err := timeutil.ParseClock(cfg.BusinessStart)
	if err != nil {
		return nil, fmt.Errorf("invalid business start: %w", err)
	}
	endH, endM, err := timeutil.ParseClock(cfg.BusinessEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid business end: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		startMin: startH*60 + startM,
		endMin:   endH*60 + endM,
		calendar: calendar,
		logger:   logger,
		now:      time.Now,
	}
	if e.endMin-e.startMin < int(cfg.SlotDuration/time.Minute) {
		return nil, fmt.Errorf("business window %s-%s shorter than one slot", cfg.BusinessStart, cfg.BusinessEnd)
	}
	return e, nil
}

// SetEnqueuer attaches the fallback queue
func (e *Engine) SetEnqueuer(q Enqueuer) {
	e.queue = q
}

// Location returns the business timezone
func (e *Engine) Location() *time.Location {
	return e.cfg.Location
}

// SlotDuration returns the fixed appointment length
func (e *Engine) SlotDuration() time.Duration {
	return e.cfg.SlotDuration
}

// GenerateSlots returns every slot of the business window on date's calendar day
func (e *Engine) GenerateSlots(date time.Time) []booking.TimeSlot {
	y, m, d := date.In(e.cfg.Location).Date()
	step := int(e.cfg.SlotDuration / time.Minute)

	var slots []booking.TimeSlot
	for offset := e.startMin; offset+step <= e.endMin; offset += step {
		start := time.Date(y, m, d, 0, offset, 0, 0, e.cfg.Location)
		slots = append(slots, booking.TimeSlot{Start: start, End: start.Add(e.cfg.SlotDuration)})
	}
	return slots
}

// ListAvailableSlots returns free slots on date. When the calendar cannot be
// read it returns the static window with Degraded set instead of failing.
func (e *Engine) ListAvailableSlots(ctx context.Context, date time.Time) (*Availability, error) {
	slots := e.upcoming(e.GenerateSlots(date))
	out := &Availability{Date: date.In(e.cfg.Location).Format(timeutil.DateLayout)}

	busy, err := e.busyOn(ctx, date)
	if err != nil {
		e.logger.Warn("calendar unavailable, serving static slots",
			zap.String("date", out.Date), zap.Error(err))
		out.Slots = capSlots(slots, e.cfg.MaxSlots)
		out.Degraded = true
		return out, nil
	}

	out.Slots = capSlots(freeSlots(slots, busy), e.cfg.MaxSlots)
	return out, nil
}

// CheckAvailability returns booking.ErrAvailabilityConflict when [start, end)
// overlaps a busy interval.
func (e *Engine) CheckAvailability(ctx context.Context, start, end time.Time) error {
	busy, err := e.busyOn(ctx, start)
	if err != nil {
		return err
	}
	if overlapsAny(booking.TimeSlot{Start: start, End: end}, busy) {
		return booking.ErrAvailabilityConflict
	}
	return nil
}

// CreateAppointment validates req, re-checks availability and writes the
// event. Calendar failures divert the request to the fallback queue; only a
// failure to enqueue is returned as an error. The queued entry keeps the key
// of the first write so a retry lands on the same event.
func (e *Engine) CreateAppointment(ctx context.Context, req booking.AppointmentRequest) (*BookingResult, error) {
	req = e.normalize(req)
	if err := e.validate(req); err != nil {
		return nil, err
	}

	key := uuid.NewString()
	busy, err := e.busyOn(ctx, req.Start)
	if err != nil {
		return e.fallback(ctx, key, req, err)
	}

	requested := booking.TimeSlot{Start: req.Start, End: req.End}
	if overlapsAny(requested, busy) {
		free := freeSlots(e.upcoming(e.GenerateSlots(req.Start)), busy)
		alts := rankAlternatives(free, req.Start, e.cfg.MaxAlternatives)
		e.logger.Info("requested slot is busy",
			zap.Time("start", req.Start), zap.Int("alternatives", len(alts)))
		return &BookingResult{Status: StatusConflict, Alternatives: alts}, nil
	}

	appt, err := e.write(ctx, key, req)
	if err != nil {
		return e.fallback(ctx, key, req, err)
	}
	return &BookingResult{Status: StatusConfirmed, Appointment: appt}, nil
}

// WriteEvent writes a pending appointment without re-checking availability.
// The pending ID determines the external event ID so retries never duplicate.
func (e *Engine) WriteEvent(ctx context.Context, p booking.PendingAppointment) (*booking.Appointment, error) {
	return e.write(ctx, p.ID, p.Request)
}

func (e *Engine) write(ctx context.Context, key string, req booking.AppointmentRequest) (*booking.Appointment, error) {
	created, err := e.calendar.InsertEvent(ctx, e.cfg.CalendarID, gcal.EventInput{
		ID:          gcal.EventIDFor(key),
		Summary:     req.Title,
		Description: eventDescription(req),
		StartTime:   req.Start,
		EndTime:     req.End,
		Attendees:   req.ValidAttendees(),
	})
	if err != nil {
		return nil, err
	}

	return &booking.Appointment{
		EventID:   created.ID,
		Link:      created.Link,
		Request:   req,
		CreatedAt: e.now(),
	}, nil
}

func (e *Engine) fallback(ctx context.Context, key string, req booking.AppointmentRequest, cause error) (*BookingResult, error) {
	e.logger.Warn("calendar write unavailable, queueing appointment", zap.Error(cause))

	if e.queue == nil {
		return nil, fmt.Errorf("no fallback queue configured: %w", cause)
	}

	// The request may be gone, the queued booking must not be
	pending, err := e.queue.Enqueue(context.WithoutCancel(ctx), key, req)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue appointment after calendar error (%v): %w", cause, err)
	}
	return &BookingResult{Status: StatusFallback, Pending: pending}, nil
}

func (e *Engine) busyOn(ctx context.Context, day time.Time) ([]booking.BusyInterval, error) {
	y, m, d := day.In(e.cfg.Location).Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, e.cfg.Location)
	dayEnd := time.Date(y, m, d, 23, 59, 59, 0, e.cfg.Location)
	return e.calendar.FreeBusy(ctx, e.cfg.CalendarID, dayStart, dayEnd)
}

func (e *Engine) normalize(req booking.AppointmentRequest) booking.AppointmentRequest {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.ServiceType = strings.TrimSpace(req.ServiceType)
	if valid := req.ValidAttendees(); len(valid) > 0 {
		req.Attendees = valid
	}
	return req
}

func (e *Engine) validate(req booking.AppointmentRequest) error {
	err := req.Validate(e.cfg.MinDescriptionLen)
	if req.Start.IsZero() {
		return err
	}

	var extra []booking.FieldError
	switch {
	case req.Start.Before(e.now()):
		extra = append(extra, booking.FieldError{Field: "start", Reason: "must be in the future"})
	case !e.isSlotStart(req.Start):
		extra = append(extra, booking.FieldError{Field: "start", Reason: fmt.Sprintf(
			"must be on a %d-minute slot between %s and %s",
			int(e.cfg.SlotDuration/time.Minute), e.cfg.BusinessStart, e.cfg.BusinessEnd)})
	case req.End.After(e.windowEnd(req.Start)):
		extra = append(extra, booking.FieldError{Field: "end", Reason: "must not be after " + e.cfg.BusinessEnd})
	}
	if len(extra) == 0 {
		return err
	}

	var vErr *booking.ValidationError
	if !errors.As(err, &vErr) {
		vErr = &booking.ValidationError{}
	}
	vErr.Fields = append(vErr.Fields, extra...)
	return vErr
}

// isSlotStart reports whether t is the start of one of the day's slots in
// the business timezone
func (e *Engine) isSlotStart(t time.Time) bool {
	for _, s := range e.GenerateSlots(t) {
		if s.Start.Equal(t) {
			return true
		}
	}
	return false
}

func (e *Engine) windowEnd(day time.Time) time.Time {
	y, m, d := day.In(e.cfg.Location).Date()
	return time.Date(y, m, d, 0, e.endMin, 0, 0, e.cfg.Location)
}

// upcoming drops slots that already started
func (e *Engine) upcoming(slots []booking.TimeSlot) []booking.TimeSlot {
	now := e.now()
	out := slots[:0:0]
	for _, s := range slots {
		if !s.Start.Before(now) {
			out = append(out, s)
		}
	}
	return out
}

func eventDescription(req booking.AppointmentRequest) string {
	if req.ServiceType == "" {
		return req.Description
	}
	return fmt.Sprintf("Service: %s\n\n%s", req.ServiceType, req.Description)
}
