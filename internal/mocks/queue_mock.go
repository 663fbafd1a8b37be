package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/omriShneor/project_concierge/internal/booking"
)

// MockEventWriter is a mock implementation of the reconciliation writer
type MockEventWriter struct {
	mock.Mock
}

func (m *MockEventWriter) WriteEvent(ctx context.Context, p booking.PendingAppointment) (*booking.Appointment, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Appointment), args.Error(1)
}

func (m *MockEventWriter) CheckAvailability(ctx context.Context, start, end time.Time) error {
	args := m.Called(ctx, start, end)
	return args.Error(0)
}
