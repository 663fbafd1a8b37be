package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/omriShneor/project_concierge/internal/agent"
	"github.com/omriShneor/project_concierge/internal/booking"
	"github.com/omriShneor/project_concierge/internal/gcal"
	"github.com/omriShneor/project_concierge/internal/notify"
)

// ErrCalendarDown is returned by FakeCalendar while it is unavailable
var ErrCalendarDown = errors.New("calendar unavailable")

// FakeCalendarEvent is an event stored by FakeCalendar
type FakeCalendarEvent struct {
	ID         string
	CalendarID string
	Input      gcal.EventInput
}

// FakeCalendar simulates Google Calendar for end-to-end tests. Inserted
// events block their interval, and inserting an existing ID returns the
// stored event like the real client does on a 409.
type FakeCalendar struct {
	mu        sync.Mutex
	available bool
	busy      []booking.BusyInterval
	events    map[string]FakeCalendarEvent
	order     []string
	inserts   int
}

// NewFakeCalendar creates an available, empty calendar
func NewFakeCalendar() *FakeCalendar {
	return &FakeCalendar{
		available: true,
		events:    make(map[string]FakeCalendarEvent),
	}
}

// SetAvailable toggles whether calls succeed
func (c *FakeCalendar) SetAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.available = available
}

// AddBusy blocks [start, end) without creating an event
func (c *FakeCalendar) AddBusy(start, end time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = append(c.busy, booking.BusyInterval{Start: start, End: end})
}

// FreeBusy implements scheduling.Calendar
func (c *FakeCalendar) FreeBusy(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]booking.BusyInterval, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.available {
		return nil, ErrCalendarDown
	}

	window := booking.TimeSlot{Start: timeMin, End: timeMax}
	var out []booking.BusyInterval
	for _, b := range c.busy {
		if window.Overlaps(b) {
			out = append(out, b)
		}
	}
	for _, id := range c.order {
		in := c.events[id].Input
		b := booking.BusyInterval{Start: in.StartTime, End: in.EndTime}
		if window.Overlaps(b) {
			out = append(out, b)
		}
	}
	return out, nil
}

// InsertEvent implements scheduling.Calendar
func (c *FakeCalendar) InsertEvent(ctx context.Context, calendarID string, input gcal.EventInput) (*gcal.CreatedEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.available {
		return nil, ErrCalendarDown
	}
	c.inserts++

	id := input.ID
	if id == "" {
		id = fmt.Sprintf("evt%d", c.inserts)
	}
	if _, ok := c.events[id]; ok {
		return &gcal.CreatedEvent{ID: id, Link: eventLink(id), AlreadyExisted: true}, nil
	}

	c.events[id] = FakeCalendarEvent{ID: id, CalendarID: calendarID, Input: input}
	c.order = append(c.order, id)
	return &gcal.CreatedEvent{ID: id, Link: eventLink(id)}, nil
}

// Events returns the stored events in insertion order
func (c *FakeCalendar) Events() []FakeCalendarEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]FakeCalendarEvent, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.events[id])
	}
	return out
}

func eventLink(id string) string {
	return "https://calendar.google.com/event?eid=" + id
}

// ScriptedModel replays canned model responses in order. When the script
// runs out every further call fails, which the concierge treats as a model outage.
type ScriptedModel struct {
	mu        sync.Mutex
	responses []*agent.APIResponse
	calls     [][]agent.Message
}

// NewScriptedModel creates a model that answers with responses in order
func NewScriptedModel(responses ...*agent.APIResponse) *ScriptedModel {
	return &ScriptedModel{responses: responses}
}

// Call implements agent.ModelClient
func (m *ScriptedModel) Call(ctx context.Context, messages []agent.Message, opts agent.CallOptions) (*agent.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, append([]agent.Message(nil), messages...))
	if len(m.responses) == 0 {
		return nil, &agent.APIError{StatusCode: 503, Type: "overloaded_error", Message: "script exhausted"}
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

// Calls returns the conversation sent on every call so far
func (m *ScriptedModel) Calls() [][]agent.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]agent.Message(nil), m.calls...)
}

// ToolUse builds a response that invokes a single tool
func ToolUse(id, name string, input map[string]any) *agent.APIResponse {
	return &agent.APIResponse{
		StopReason: "tool_use",
		Content:    []agent.ContentBlock{agent.ToolUseBlock{Type: "tool_use", ID: id, Name: name, Input: input}},
	}
}

// Text builds a plain text response
func Text(s string) *agent.APIResponse {
	return &agent.APIResponse{
		StopReason: "end_turn",
		Content:    []agent.ContentBlock{agent.TextBlock{Type: "text", Text: s}},
	}
}

// SentEmail is a message captured by RecordingNotifier
type SentEmail struct {
	Recipient string
	Subject   string
	HTML      string
}

// RecordingNotifier captures outgoing email instead of sending it
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []SentEmail
}

// Send implements notify.Notifier
func (n *RecordingNotifier) Send(ctx context.Context, msg notify.Message, recipient string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, SentEmail{Recipient: recipient, Subject: msg.Subject, HTML: msg.HTML})
	return nil
}

func (n *RecordingNotifier) Name() string { return "recording" }

func (n *RecordingNotifier) IsConfigured() bool { return true }

// Sent returns the captured messages in order
func (n *RecordingNotifier) Sent() []SentEmail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]SentEmail(nil), n.sent...)
}
