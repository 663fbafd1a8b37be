package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/omriShneor/project_concierge/internal/booking"
)

const (
	emailReminderMinutes = 24 * 60
	popupReminderMinutes = 30
)

// EventInput represents the input for creating a calendar event
type EventInput struct {
	// ID is the client-chosen event id; retries with the same ID never duplicate
	ID          string
	Summary     string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Attendees   []string // Email addresses of attendees
}

// CreatedEvent is the outcome of an insert
type CreatedEvent struct {
	ID   string
	Link string
	// AlreadyExisted is set when a previous attempt had written the event
	AlreadyExisted bool
}

// EventIDFor maps an arbitrary key (such as a UUID) onto the base32hex
// alphabet Google accepts for client-supplied event ids.
func EventIDFor(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(key) {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'v') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FreeBusy returns the busy intervals of calendarID between timeMin and timeMax
func (c *Client) FreeBusy(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]booking.BusyInterval, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if calendarID == "" {
		calendarID = "primary"
	}

	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: timeMin.Format(time.RFC3339),
		TimeMax: timeMax.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to query free/busy: %w", err)
	}

	cal, ok := resp.Calendars[calendarID]
	if !ok && len(resp.Calendars) == 1 {
		for _, only := range resp.Calendars {
			cal, ok = only, true
		}
	}
	if !ok {
		return nil, fmt.Errorf("free/busy response missing calendar %s", calendarID)
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("free/busy error for %s: %s", calendarID, cal.Errors[0].Reason)
	}

	busy := make([]booking.BusyInterval, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		start, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("failed to parse busy start: %w", err)
		}
		end, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("failed to parse busy end: %w", err)
		}
		busy = append(busy, booking.BusyInterval{Start: start, End: end})
	}

	return busy, nil
}

// InsertEvent creates an event with attendee notifications and default reminders.
// If an event with input.ID already exists it is returned instead.
func (c *Client) InsertEvent(ctx context.Context, calendarID string, input EventInput) (*CreatedEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if calendarID == "" {
		calendarID = "primary"
	}

	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	// RFC3339 format includes timezone offset, so Google Calendar can infer the timezone
	event := &calendar.Event{
		Id:          input.ID,
		Summary:     input.Summary,
		Description: input.Description,
		Start: &calendar.EventDateTime{
			DateTime: input.StartTime.Format(time.RFC3339),
		},
		End: &calendar.EventDateTime{
			DateTime: input.EndTime.Format(time.RFC3339),
		},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "email", Minutes: emailReminderMinutes},
				{Method: "popup", Minutes: popupReminderMinutes},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}

	if len(input.Attendees) > 0 {
		attendees := make([]*calendar.EventAttendee, len(input.Attendees))
		for i, email := range input.Attendees {
			attendees[i] = &calendar.EventAttendee{Email: email}
		}
		event.Attendees = attendees
	}

	// SendUpdates sends notifications to attendees
	created, err := svc.Events.Insert(calendarID, event).SendUpdates("all").Context(ctx).Do()
	if err == nil {
		return &CreatedEvent{ID: created.Id, Link: created.HtmlLink}, nil
	}

	var gErr *googleapi.Error
	if input.ID == "" || !errors.As(err, &gErr) || gErr.Code != http.StatusConflict {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	existing, getErr := svc.Events.Get(calendarID, input.ID).Context(ctx).Do()
	if getErr != nil {
		return nil, fmt.Errorf("event %s exists but could not be fetched: %w", input.ID, getErr)
	}

	c.logger.Info("event already existed, treating insert as done", zap.String("event_id", existing.Id))
	return &CreatedEvent{ID: existing.Id, Link: existing.HtmlLink, AlreadyExisted: true}, nil
}
