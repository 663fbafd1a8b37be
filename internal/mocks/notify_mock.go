package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/omriShneor/project_concierge/internal/booking"
)

// MockNotifyService is a mock implementation of the notification service
type MockNotifyService struct {
	mock.Mock
}

func (m *MockNotifyService) NotifyContactCaptured(ctx context.Context, c booking.ContactInfo) {
	m.Called(ctx, c)
}

func (m *MockNotifyService) NotifyPendingAppointment(ctx context.Context, p *booking.PendingAppointment) {
	m.Called(ctx, p)
}
