package testutil

import (
	"time"

	"github.com/omriShneor/project_concierge/internal/timeutil"
)

// FutureDay returns midnight a week from now in Location, so slots on it
// are never in the past.
func FutureDay() time.Time {
	y, m, d := time.Now().In(Location).AddDate(0, 0, 7).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, Location)
}

// At returns clock time hh:mm on day
func At(day time.Time, hh, mm int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hh, mm, 0, 0, Location)
}

// AppointmentBuilder builds create_appointment arguments, used both as
// tool input and as the body of POST /api/appointments
type AppointmentBuilder struct {
	day         time.Time
	clock       string
	email       string
	name        string
	company     string
	description string
}

// NewAppointmentBuilder creates a builder with a complete, valid request
// for 10:00 on FutureDay
func NewAppointmentBuilder() *AppointmentBuilder {
	return &AppointmentBuilder{
		day:         FutureDay(),
		clock:       "10:00",
		email:       "ana@acme.com",
		name:        "Ana Souza",
		company:     "Acme",
		description: "Wants to restructure the sales pipeline before Q3",
	}
}

// At sets the clock time ("HH:MM")
func (b *AppointmentBuilder) At(clock string) *AppointmentBuilder {
	b.clock = clock
	return b
}

// WithEmail sets the attendee email
func (b *AppointmentBuilder) WithEmail(email string) *AppointmentBuilder {
	b.email = email
	return b
}

// WithDescription sets the free-text context
func (b *AppointmentBuilder) WithDescription(description string) *AppointmentBuilder {
	b.description = description
	return b
}

// Build returns the arguments as a JSON-ready map
func (b *AppointmentBuilder) Build() map[string]any {
	args := map[string]any{
		"date":        b.day.Format(timeutil.DateLayout),
		"time":        b.clock,
		"email":       b.email,
		"name":        b.name,
		"company":     b.company,
		"description": b.description,
	}
	return args
}

// ContactInput returns complete collect_contact_info arguments
func ContactInput() map[string]any {
	return map[string]any{
		"name":       "Ana Souza",
		"email":      "ana@acme.com",
		"company":    "Acme",
		"role":       "Head of Sales",
		"objectives": "Grow enterprise revenue",
		"challenges": "Long sales cycles",
	}
}
