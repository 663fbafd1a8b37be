package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/omriShneor/project_concierge/internal/booking"
)

// Service sends owner notifications. Errors are logged but never fail the
// operation that triggered them.
type Service struct {
	emailNotifier Notifier
	ownerEmail    string
	location      *time.Location
	logger        *zap.Logger
}

// NewService creates a notification service
func NewService(emailNotifier Notifier, ownerEmail string, location *time.Location, logger *zap.Logger) *Service {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		emailNotifier: emailNotifier,
		ownerEmail:    ownerEmail,
		location:      location,
		logger:        logger,
	}
}

// NotifyContactCaptured tells the owner about a new qualified lead
func (s *Service) NotifyContactCaptured(ctx context.Context, c booking.ContactInfo) {
	s.send(ctx, contactMessage(c), zap.String("kind", "contact"), zap.String("company", c.Company))
}

// NotifyPendingAppointment tells the owner a booking is waiting for the calendar
func (s *Service) NotifyPendingAppointment(ctx context.Context, p *booking.PendingAppointment) {
	s.send(ctx, pendingMessage(p, s.location), zap.String("kind", "pending"), zap.String("pending_id", p.ID))
}

func (s *Service) send(ctx context.Context, msg Message, fields ...zap.Field) {
	if !s.IsEmailAvailable() {
		s.logger.Debug("notification skipped, email not configured", fields...)
		return
	}

	if err := s.emailNotifier.Send(ctx, msg, s.ownerEmail); err != nil {
		s.logger.Warn("notification failed", append(fields, zap.String("notifier", s.emailNotifier.Name()), zap.Error(err))...)
		return
	}
	s.logger.Info("notification sent", append(fields, zap.String("notifier", s.emailNotifier.Name()))...)
}

// IsEmailAvailable returns true if email notifications can be used
func (s *Service) IsEmailAvailable() bool {
	return s.emailNotifier != nil && s.emailNotifier.IsConfigured() && s.ownerEmail != ""
}
