package notify

import (
	"context"
)

// Message is a rendered notification
type Message struct {
	Subject string
	HTML    string
}

// Notifier delivers a message to a specific recipient
type Notifier interface {
	// Send sends the message to the specified recipient
	Send(ctx context.Context, msg Message, recipient string) error
	// Name returns the notifier type name (for logging)
	Name() string
	// IsConfigured returns true if the notifier has server-side config
	IsConfigured() bool
}
