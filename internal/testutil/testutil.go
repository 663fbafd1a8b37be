package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omriShneor/project_concierge/internal/concierge"
	"github.com/omriShneor/project_concierge/internal/database"
	"github.com/omriShneor/project_concierge/internal/notify"
	"github.com/omriShneor/project_concierge/internal/queue"
	"github.com/omriShneor/project_concierge/internal/scheduling"
	"github.com/omriShneor/project_concierge/internal/server"
	"github.com/omriShneor/project_concierge/internal/token"
)

// Business rules shared by end-to-end tests
const (
	BusinessStart     = "09:00"
	BusinessEnd       = "17:00"
	MinDescriptionLen = 20
)

// Location is the business timezone used by end-to-end tests
var Location = time.FixedZone("BRT", -3*60*60)

// TestServer wraps a fully wired server for E2E testing
type TestServer struct {
	Server     *server.Server
	DB         *database.DB
	HTTPServer *httptest.Server
	Engine     *scheduling.Engine
	Queue      *queue.Queue
	Tokens     *token.Manager
	t          *testing.T

	// Fakes at the process boundary
	Calendar *FakeCalendar
	Model    *ScriptedModel
	Email    *RecordingNotifier
}

// TestServerOption configures a test server
type TestServerOption func(*TestServer)

// WithModel replaces the default model, which has no scripted responses
func WithModel(m *ScriptedModel) TestServerOption {
	return func(ts *TestServer) {
		ts.Model = m
	}
}

// NewTestServer creates a fully configured test server for E2E testing.
// Only the calendar, the language model and the email provider are faked.
func NewTestServer(t *testing.T, opts ...TestServerOption) *TestServer {
	t.Helper()

	db := database.NewTestDB(t)

	ts := &TestServer{
		DB:       db,
		Calendar: NewFakeCalendar(),
		Model:    NewScriptedModel(),
		Email:    &RecordingNotifier{},
		t:        t,
	}

	// Apply options before wiring
	for _, opt := range opts {
		opt(ts)
	}

	engine, err := scheduling.NewEngine(ts.Calendar, scheduling.Config{
		Location:          Location,
		BusinessStart:     BusinessStart,
		BusinessEnd:       BusinessEnd,
		SlotDuration:      30 * time.Minute,
		MinDescriptionLen: MinDescriptionLen,
	}, nil)
	require.NoError(t, err, "failed to create engine")
	ts.Engine = engine

	ts.Queue = queue.New(db, engine, queue.PolicyHonorOriginalSlot, nil)
	engine.SetEnqueuer(ts.Queue)

	notifyService := notify.NewService(ts.Email, "owner@example.com", Location, nil)
	ts.Queue.SetNotifier(notifyService)

	ts.Tokens = token.NewManager(db, staticRefresher{}, 2*time.Minute, nil)
	require.NoError(t, ts.Tokens.Load(context.Background()))

	orchestrator := concierge.NewOrchestrator(ts.Model, engine, db, notifyService, concierge.Config{
		Location:          Location,
		BusinessStart:     BusinessStart,
		BusinessEnd:       BusinessEnd,
		MinDescriptionLen: MinDescriptionLen,
	}, nil)

	ts.Server = server.New(server.ServerConfig{
		DB:             db,
		Concierge:      orchestrator,
		Scheduler:      engine,
		Queue:          ts.Queue,
		Tokens:         ts.Tokens,
		Location:       Location,
		ChatRatePerMin: 600,
	})

	ts.HTTPServer = httptest.NewServer(ts.Server.Handler())
	t.Cleanup(ts.HTTPServer.Close)

	return ts
}

// BaseURL returns the test server's base URL
func (ts *TestServer) BaseURL() string {
	return ts.HTTPServer.URL
}

// Client returns an HTTP client for the test server
func (ts *TestServer) Client() *http.Client {
	return ts.HTTPServer.Client()
}

// staticRefresher hands out an hour-long token for any refresh token
type staticRefresher struct{}

func (staticRefresher) Refresh(ctx context.Context, refreshToken string) (*token.Credential, error) {
	return &token.Credential{AccessToken: "access-" + refreshToken, Expiry: time.Now().Add(time.Hour)}, nil
}
