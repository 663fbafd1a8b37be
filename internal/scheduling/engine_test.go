package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/omriShneor/project_concierge/internal/booking"
	"github.com/omriShneor/project_concierge/internal/gcal"
	"github.com/omriShneor/project_concierge/internal/mocks"
)

var brt = time.FixedZone("BRT", -3*60*60)

func at(day, hour, minute int) time.Time {
	return time.Date(2025, 4, day, hour, minute, 0, 0, brt)
}

func newTestEngine(t *testing.T, cal Calendar, now time.Time) *Engine {
	t.Helper()
	e, err := NewEngine(cal, Config{
		Location:          brt,
		BusinessStart:     "09:00",
		BusinessEnd:       "17:00",
		SlotDuration:      30 * time.Minute,
		MaxSlots:          9,
		MaxAlternatives:   3,
		MinDescriptionLen: 20,
		CalendarID:        "primary",
	}, nil)
	require.NoError(t, err)
	e.now = func() time.Time { return now }
	return e
}

func bookingRequest(start time.Time) booking.AppointmentRequest {
	return booking.AppointmentRequest{
		Title:       "Consultation - Ana (Acme)",
		Start:       start,
		End:         start.Add(30 * time.Minute),
		Attendees:   []string{"ana@acme.com"},
		Description: "Wants to grow inbound leads; conversion is low.",
		ServiceType: "Initial free consultation",
	}
}

func starts(slots []booking.TimeSlot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Start.In(brt).Format("15:04")
	}
	return out
}

func TestGenerateSlots(t *testing.T) {
	e := newTestEngine(t, &mocks.MockCalendar{}, at(9, 12, 0))
	slots := e.GenerateSlots(at(10, 15, 45))

	require.Len(t, slots, 16)
	assert.Equal(t, "09:00", slots[0].Start.Format("15:04"))
	assert.Equal(t, "16:30", slots[len(slots)-1].Start.Format("15:04"))

	for i, s := range slots {
		assert.Equal(t, 30*time.Minute, s.End.Sub(s.Start))
		assert.False(t, s.Start.Before(at(10, 9, 0)))
		assert.False(t, s.End.After(at(10, 17, 0)))
		if i > 0 {
			// contiguous and non-overlapping
			assert.True(t, slots[i-1].End.Equal(s.Start))
		}
	}
}

func TestNewEngineRejectsBadWindow(t *testing.T) {
	_, err := NewEngine(&mocks.MockCalendar{}, Config{BusinessStart: "nine", BusinessEnd: "17:00"}, nil)
	assert.Error(t, err)

	_, err = NewEngine(&mocks.MockCalendar{}, Config{BusinessStart: "17:00", BusinessEnd: "09:00"}, nil)
	assert.Error(t, err)
}

func TestListAvailableSlots(t *testing.T) {
	ctx := context.Background()

	t.Run("busy intervals are excluded", func(t *testing.T) {
		cal := &mocks.MockCalendar{}
		cal.On("FreeBusy", mock.Anything, "primary", at(10, 0, 0), mock.Anything).Return([]booking.BusyInterval{
			{Start: at(10, 9, 0), End: at(10, 9, 30)},
			{Start: at(10, 14, 0), End: at(10, 15, 0)},
		}, nil)
		e := newTestEngine(t, cal, at(9, 12, 0))

		avail, err := e.ListAvailableSlots(ctx, at(10, 0, 0))
		require.NoError(t, err)
		assert.Equal(t, "2025-04-10", avail.Date)
		assert.False(t, avail.Degraded)
		assert.Equal(t, []string{"09:30", "10:00", "10:30", "11:00", "11:30", "12:00", "12:30", "13:00", "13:30"}, starts(avail.Slots))
		cal.AssertExpectations(t)
	})

	t.Run("no returned slot overlaps a busy interval", func(t *testing.T) {
		busy := []booking.BusyInterval{
			{Start: at(10, 8, 0), End: at(10, 10, 15)},
			{Start: at(10, 11, 40), End: at(10, 11, 50)},
			{Start: at(10, 13, 0), End: at(10, 13, 30)},
		}
		cal := &mocks.MockCalendar{}
		cal.On("FreeBusy", mock.Anything, "primary", mock.Anything, mock.Anything).Return(busy, nil)
		e := newTestEngine(t, cal, at(9, 12, 0))

		avail, err := e.ListAvailableSlots(ctx, at(10, 0, 0))
		require.NoError(t, err)
		assert.LessOrEqual(t, len(avail.Slots), 9)
		for _, s := range avail.Slots {
			for _, b := range busy {
				assert.False(t, s.Overlaps(b), "slot %s overlaps busy %s", s.Start, b.Start)
			}
		}
		assert.Equal(t, "10:30", avail.Slots[0].Start.Format("15:04"))
	})

	t.Run("calendar failure degrades to static slots", func(t *testing.T) {
		cal := &mocks.MockCalendar{}
		cal.On("FreeBusy", mock.Anything, "primary", mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: timeout"))
		e := newTestEngine(t, cal, at(9, 12, 0))

		avail, err := e.ListAvailableSlots(ctx, at(10, 0, 0))
		require.NoError(t, err)
		assert.True(t, avail.Degraded)
		assert.Len(t, avail.Slots, 9)
		assert.Equal(t, "09:00", avail.Slots[0].Start.Format("15:04"))
	})

	t.Run("slots that already started are skipped", func(t *testing.T) {
		cal := &mocks.MockCalendar{}
		cal.On("FreeBusy", mock.Anything, "primary", mock.Anything, mock.Anything).Return([]booking.BusyInterval{}, nil)
		e := newTestEngine(t, cal, at(10, 11, 10))

		avail, err := e.ListAvailableSlots(ctx, at(10, 0, 0))
		require.NoError(t, err)
		assert.Equal(t, "11:30", avail.Slots[0].Start.Format("15:04"))
	})
}

func TestCreateAppointment(t *testing.T) {
	ctx := context.Background()
	now := at(9, 12, 0)

	t.Run("conflict returns nearest alternatives", func(t *testing.T) {
		cal := &mocks.MockCalendar{}
		cal.On("FreeBusy", mock.Anything, "primary", mock.Anything, mock.Anything).Return([]booking.BusyInterval{
			{Start: at(10, 9, 0), End: at(10, 9, 30)},
		}, nil)
		e := newTestEngine(t, cal, now)

		res, err := e.CreateAppointment(ctx, bookingRequest(at(10, 9, 0)))
		require.NoError(t, err)
		assert.Equal(t, StatusConflict, res.Status)
		assert.Nil(t, res.Appointment)
		assert.Equal(t, []string{"09:30", "10:00", "10:30"}, starts(res.Alternatives))
		cal.AssertNotCalled(t, "InsertEvent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("alternative ties prefer earlier", func(t *testing.T) {
		cal := &mocks.MockCalendar{}
		cal.On("FreeBusy", mock.Anything, "primary", mock.Anything, mock.Anything).Return([]booking.BusyInterval{
			{Start: at(10, 12, 0), End: at(10, 13, 0)},
		}, nil)
		e := newTestEngine(t, cal, now)

		res, err := e.CreateAppointment(ctx, bookingRequest(at(10, 12, 30)))
		require.NoError(t, err)
		assert.Equal(t, StatusConflict, res.Status)
		assert.Equal(t, []string{"13:00", "11:30", "13:30"}, starts(res.Alternatives))
	})

	t.Run("free slot is written to the calendar", func(t *testing.T) {
		cal := &mocks.MockCalendar{}
		cal.On("FreeBusy", mock.Anything, "primary", mock.Anything, mock.Anything).Return([]booking.BusyInterval{
			{Start: at(10, 9, 0), End: at(10, 9, 30)},
		}, nil)
		cal.On("InsertEvent", mock.Anything, "primary", mock.MatchedBy(func(in gcal.EventInput) bool {
			return in.ID != "" && in.Summary == "Consultation - Ana (Acme)" &&
				in.StartTime.Equal(at(10, 10, 0)) && len(in.Attendees) == 1
		})).Return(&gcal.CreatedEvent{ID: "evt1", Link: "https://calendar.example/evt1"}, nil)
		e := newTestEngine(t, cal, now)

		res, err := e.CreateAppointment(ctx, bookingRequest(at(10, 10, 0)))
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, res.Status)
		require.NotNil(t, res.Appointment)
		assert.Equal(t, "evt1", res.Appointment.EventID)
		assert.Equal(t, "https://calendar.example/evt1", res.Appointment.Link)
		cal.AssertExpectations(t)
	})

	t.Run("write failure falls back to the queue", func(t *testing.T) {
		cal := &mocks.MockCalendar{}
		cal.On("FreeBusy", mock.Anything, "primary", mock.Anything, mock.Anything).Return([]booking.BusyInterval{}, nil)
		cal.On("InsertEvent", mock.Anything, "primary", mock.Anything).Return(nil, errors.New("connection reset by peer"))

		pending := &booking.PendingAppointment{ID: "p1", Request: bookingRequest(at(10, 10, 0))}
		q := &mocks.MockEnqueuer{}
		q.On("Enqueue", mock.Anything, mock.Anything, mock.Anything).Return(pending, nil)

		e := newTestEngine(t, cal, now)
		e.SetEnqueuer(q)

		res, err := e.CreateAppointment(ctx, bookingRequest(at(10, 10, 0)))
		require.NoError(t, err)
		assert.Equal(t, StatusFallback, res.Status)
		assert.Equal(t, pending, res.Pending)
		q.AssertExpectations(t)
	})

	t.Run("timed out write is queued under the same event id", func(t *testing.T) {
		var written string
		cal := &mocks.MockCalendar{}
		cal.On("FreeBusy", mock.Anything, "primary", mock.Anything, mock.Anything).Return([]booking.BusyInterval{}, nil)
		cal.On("InsertEvent", mock.Anything, "primary", mock.Anything).
			Run(func(args mock.Arguments) { written = args.Get(2).(gcal.EventInput).ID }).
			Return(nil, context.DeadlineExceeded)

		var queued string
		q := &mocks.MockEnqueuer{}
		q.On("Enqueue", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
			Run(func(args mock.Arguments) { queued = args.String(1) }).
			Return(&booking.PendingAppointment{ID: "p3"}, nil)

		e := newTestEngine(t, cal, now)
		e.SetEnqueuer(q)

		res, err := e.CreateAppointment(ctx, bookingRequest(at(10, 10, 0)))
		require.NoError(t, err)
		assert.Equal(t, StatusFallback, res.Status)
		require.NotEmpty(t, queued)
		assert.Equal(t, gcal.EventIDFor(queued), written)
	})

	t.Run("enqueue survives request cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		cal := &mocks.MockCalendar{}
		cal.On("FreeBusy", mock.Anything, "primary", mock.Anything, mock.Anything).Return(nil, context.Canceled)

		q := &mocks.MockEnqueuer{}
		q.On("Enqueue", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }), mock.Anything, mock.Anything).
			Return(&booking.PendingAppointment{ID: "p2"}, nil)

		e := newTestEngine(t, cal, now)
		e.SetEnqueuer(q)

		res, err := e.CreateAppointment(cctx, bookingRequest(at(10, 10, 0)))
		require.NoError(t, err)
		assert.Equal(t, StatusFallback, res.Status)
		q.AssertExpectations(t)
	})

	t.Run("enqueue failure is an error", func(t *testing.T) {
		cal := &mocks.MockCalendar{}
		cal.On("FreeBusy", mock.Anything, "primary", mock.Anything, mock.Anything).Return(nil, errors.New("unreachable"))
		q := &mocks.MockEnqueuer{}
		q.On("Enqueue", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("disk full"))

		e := newTestEngine(t, cal, now)
		e.SetEnqueuer(q)

		_, err := e.CreateAppointment(ctx, bookingRequest(at(10, 10, 0)))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})

	t.Run("invalid request touches nothing", func(t *testing.T) {
		cal := &mocks.MockCalendar{}
		e := newTestEngine(t, cal, now)

		req := bookingRequest(at(10, 10, 0))
		req.Description = "call me"
		_, err := e.CreateAppointment(ctx, req)
		require.Error(t, err)
		assert.True(t, booking.IsValidationError(err))
		cal.AssertNotCalled(t, "FreeBusy", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("past start is rejected", func(t *testing.T) {
		e := newTestEngine(t, &mocks.MockCalendar{}, now)
		_, err := e.CreateAppointment(ctx, bookingRequest(at(8, 10, 0)))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "start must be in the future")
	})

	t.Run("outside business hours or off the grid is rejected", func(t *testing.T) {
		late := bookingRequest(at(10, 16, 30))
		late.End = at(10, 17, 30)

		cases := map[string]struct {
			req   booking.AppointmentRequest
			field string
		}{
			"late evening":       {req: bookingRequest(at(10, 22, 0)), field: "start"},
			"early morning":      {req: bookingRequest(at(10, 3, 0)), field: "start"},
			"misaligned":         {req: bookingRequest(at(10, 9, 10)), field: "start"},
			"last slot overruns": {req: bookingRequest(at(10, 16, 45)), field: "start"},
			"starts at close":    {req: bookingRequest(at(10, 17, 0)), field: "start"},
			"ends after close":   {req: late, field: "end"},
		}
		for name, tc := range cases {
			t.Run(name, func(t *testing.T) {
				cal := &mocks.MockCalendar{}
				e := newTestEngine(t, cal, now)

				_, err := e.CreateAppointment(ctx, tc.req)
				require.Error(t, err)

				var vErr *booking.ValidationError
				require.ErrorAs(t, err, &vErr)
				require.Len(t, vErr.Fields, 1)
				assert.Equal(t, tc.field, vErr.Fields[0].Field)
				cal.AssertNotCalled(t, "FreeBusy", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
				cal.AssertNotCalled(t, "InsertEvent", mock.Anything, mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("last slot of the day is accepted", func(t *testing.T) {
		cal := &mocks.MockCalendar{}
		cal.On("FreeBusy", mock.Anything, "primary", mock.Anything, mock.Anything).Return([]booking.BusyInterval{}, nil)
		cal.On("InsertEvent", mock.Anything, "primary", mock.Anything).Return(&gcal.CreatedEvent{ID: "evt4"}, nil)
		e := newTestEngine(t, cal, now)

		res, err := e.CreateAppointment(ctx, bookingRequest(at(10, 16, 30)))
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, res.Status)
	})

	t.Run("start in another zone is checked in business time", func(t *testing.T) {
		cal := &mocks.MockCalendar{}
		e := newTestEngine(t, cal, now)

		// 08:00 UTC is 05:00 BRT
		_, err := e.CreateAppointment(ctx, bookingRequest(time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC)))
		require.Error(t, err)
		assert.True(t, booking.IsValidationError(err))
		cal.AssertNotCalled(t, "FreeBusy", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestWriteEventUsesPendingID(t *testing.T) {
	cal := &mocks.MockCalendar{}
	cal.On("InsertEvent", mock.Anything, "primary", mock.MatchedBy(func(in gcal.EventInput) bool {
		return in.ID == "3f2c9a1e7b4d4c2a9e1f0a1b2c3d4e5f"
	})).Return(&gcal.CreatedEvent{ID: "3f2c9a1e7b4d4c2a9e1f0a1b2c3d4e5f"}, nil)

	e := newTestEngine(t, cal, at(9, 12, 0))
	appt, err := e.WriteEvent(context.Background(), booking.PendingAppointment{
		ID:      "3f2c9a1e-7b4d-4c2a-9e1f-0a1b2c3d4e5f",
		Request: bookingRequest(at(10, 9, 0)),
	})
	require.NoError(t, err)
	assert.Equal(t, "3f2c9a1e7b4d4c2a9e1f0a1b2c3d4e5f", appt.EventID)
	cal.AssertNotCalled(t, "FreeBusy", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckAvailability(t *testing.T) {
	cal := &mocks.MockCalendar{}
	cal.On("FreeBusy", mock.Anything, "primary", mock.Anything, mock.Anything).Return([]booking.BusyInterval{
		{Start: at(10, 9, 0), End: at(10, 9, 30)},
	}, nil)
	e := newTestEngine(t, cal, at(9, 12, 0))

	assert.ErrorIs(t, e.CheckAvailability(context.Background(), at(10, 9, 0), at(10, 9, 30)), booking.ErrAvailabilityConflict)
	assert.NoError(t, e.CheckAvailability(context.Background(), at(10, 9, 30), at(10, 10, 0)))
}
