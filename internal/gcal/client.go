package gcal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const defaultTimeout = 10 * time.Second

// TokenProvider supplies access tokens for calendar requests
type TokenProvider interface {
	TokenSource(ctx context.Context) oauth2.TokenSource
}

// ClientConfig holds calendar client settings
type ClientConfig struct {
	// Timeout bounds every calendar request
	Timeout time.Duration
	// Endpoint overrides the API base URL
	Endpoint string
}

// Client wraps the Google Calendar API client
type Client struct {
	tokens   TokenProvider
	timeout  time.Duration
	endpoint string
	logger   *zap.Logger
}

// NewClient creates a new Google Calendar client
func NewClient(tokens TokenProvider, cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		tokens:   tokens,
		timeout:  cfg.Timeout,
		endpoint: cfg.Endpoint,
		logger:   logger,
	}
}

// service builds a Calendar service bound to ctx. Tokens are fetched lazily
// per request so a refresh is picked up without rebuilding the client.
func (c *Client) service(ctx context.Context) (*calendar.Service, error) {
	httpClient := oauth2.NewClient(ctx, c.tokens.TokenSource(ctx))

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return service, nil
}
