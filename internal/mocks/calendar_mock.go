package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/omriShneor/project_concierge/internal/booking"
	"github.com/omriShneor/project_concierge/internal/gcal"
)

// MockCalendar is a mock implementation of the calendar client
type MockCalendar struct {
	mock.Mock
}

func (m *MockCalendar) FreeBusy(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]booking.BusyInterval, error) {
	args := m.Called(ctx, calendarID, timeMin, timeMax)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]booking.BusyInterval), args.Error(1)
}

func (m *MockCalendar) InsertEvent(ctx context.Context, calendarID string, input gcal.EventInput) (*gcal.CreatedEvent, error) {
	args := m.Called(ctx, calendarID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gcal.CreatedEvent), args.Error(1)
}

// MockEnqueuer is a mock implementation of the pending-appointment queue
type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) Enqueue(ctx context.Context, id string, req booking.AppointmentRequest) (*booking.PendingAppointment, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.PendingAppointment), args.Error(1)
}
