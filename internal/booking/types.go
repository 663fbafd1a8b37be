package booking

import (
	"errors"
	"time"
)

// ErrAvailabilityConflict is returned when a requested slot overlaps a busy interval.
var ErrAvailabilityConflict = errors.New("requested slot is no longer available")

// TimeSlot is a fixed-duration candidate appointment interval.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps uses half-open interval intersection.
func (s TimeSlot) Overlaps(b BusyInterval) bool {
	return s.Start.Before(b.End) && s.End.After(b.Start)
}

// BusyInterval is an externally-sourced range already occupied on the calendar.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ContactInfo is the qualifying data collected from a visitor.
type ContactInfo struct {
	Name       string `json:"name" validate:"required,min=2,notplaceholder"`
	Email      string `json:"email" validate:"required,contactemail"`
	Company    string `json:"company" validate:"required,min=2,notplaceholder"`
	Role       string `json:"role" validate:"required,min=2,notplaceholder"`
	Objectives string `json:"objectives" validate:"required,min=5,notplaceholder"`
	Challenges string `json:"challenges" validate:"required,min=5,notplaceholder"`
	Message    string `json:"message,omitempty"`
}

// AppointmentRequest is a booking the visitor asked for.
type AppointmentRequest struct {
	Title       string    `json:"title" validate:"required,nottitleplaceholder"`
	Start       time.Time `json:"start" validate:"required"`
	End         time.Time `json:"end" validate:"required"`
	Attendees   []string  `json:"attendees" validate:"required,min=1"`
	Description string    `json:"description"`
	ServiceType string    `json:"service_type"`
}

// Appointment is a request that was written to the external calendar.
type Appointment struct {
	EventID   string             `json:"event_id"`
	Link      string             `json:"link,omitempty"`
	Request   AppointmentRequest `json:"request"`
	CreatedAt time.Time          `json:"created_at"`
}

// PendingAppointment is a request that could not be written immediately.
// ID doubles as the idempotency key for the external event.
type PendingAppointment struct {
	ID         string             `json:"id"`
	Request    AppointmentRequest `json:"request"`
	EnqueuedAt time.Time          `json:"enqueued_at"`
	Attempts   int                `json:"attempts"`
	LastError  string             `json:"last_error,omitempty"`
}

// ProcessedAppointment is an entry of the processed log.
type ProcessedAppointment struct {
	PendingID   string             `json:"pending_id"`
	EventID     string             `json:"event_id"`
	Link        string             `json:"link,omitempty"`
	Request     AppointmentRequest `json:"request"`
	EnqueuedAt  time.Time          `json:"enqueued_at"`
	Attempts    int                `json:"attempts"`
	ProcessedAt time.Time          `json:"processed_at"`
}
