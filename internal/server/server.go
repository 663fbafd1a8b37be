package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/omriShneor/project_concierge/internal/agent"
	"github.com/omriShneor/project_concierge/internal/booking"
	"github.com/omriShneor/project_concierge/internal/concierge"
	"github.com/omriShneor/project_concierge/internal/database"
	"github.com/omriShneor/project_concierge/internal/queue"
	"github.com/omriShneor/project_concierge/internal/scheduling"
	"github.com/omriShneor/project_concierge/internal/token"
)

// Concierge answers chat messages
type Concierge interface {
	Handle(ctx context.Context, history []agent.Message) (*concierge.Reply, error)
}

// Scheduler is the scheduling engine used by the booking endpoints
type Scheduler interface {
	ListAvailableSlots(ctx context.Context, date time.Time) (*scheduling.Availability, error)
	CreateAppointment(ctx context.Context, req booking.AppointmentRequest) (*scheduling.BookingResult, error)
}

// PendingQueue is the fallback queue used by the operational endpoints
type PendingQueue interface {
	Reconcile(ctx context.Context) (*queue.Report, error)
	ListPending(ctx context.Context) ([]booking.PendingAppointment, error)
	Stats(ctx context.Context) (*queue.Stats, error)
}

// Tokens is the calendar credential manager
type Tokens interface {
	Status() token.Status
	ForceRefresh(ctx context.Context) (*token.Credential, error)
}

type Server struct {
	db         *database.DB
	concierge  Concierge
	scheduler  Scheduler
	queue      PendingQueue
	tokens     Tokens
	location   *time.Location
	slotLen    time.Duration
	service    string
	limiter    *ipRateLimiter
	trustProxy bool
	httpSrv    *http.Server
	port       int
	logger     *zap.Logger
	now        func() time.Time
}

// ServerConfig holds everything the server needs
type ServerConfig struct {
	DB             *database.DB
	Concierge      Concierge
	Scheduler      Scheduler
	Queue          PendingQueue
	Tokens         Tokens
	Location       *time.Location
	SlotDuration   time.Duration
	ServiceType    string
	Port           int
	ChatRatePerMin int
	TrustProxy     bool
	Logger         *zap.Logger
}

func New(cfg ServerConfig) *Server {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SlotDuration <= 0 {
		cfg.SlotDuration = 30 * time.Minute
	}
	if cfg.ChatRatePerMin <= 0 {
		cfg.ChatRatePerMin = 30
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Server{
		db:         cfg.DB,
		concierge:  cfg.Concierge,
		scheduler:  cfg.Scheduler,
		queue:      cfg.Queue,
		tokens:     cfg.Tokens,
		location:   cfg.Location,
		slotLen:    cfg.SlotDuration,
		service:    cfg.ServiceType,
		limiter:    newIPRateLimiter(cfg.ChatRatePerMin),
		trustProxy: cfg.TrustProxy,
		port:       cfg.Port,
		logger:     cfg.Logger,
		now:        time.Now,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.corsMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // chat may run several model and calendar calls
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", s.handleHealthCheck)

	// Chat API
	mux.Handle("POST /api/chat", s.rateLimit(http.HandlerFunc(s.handleChat)))

	// Scheduling API
	mux.HandleFunc("GET /api/slots", s.handleListSlots)
	mux.HandleFunc("POST /api/appointments", s.handleCreateAppointment)

	// Fallback queue API
	mux.HandleFunc("GET /api/appointments/reconcile", s.handleReconcile)
	mux.HandleFunc("GET /api/appointments/pending", s.handleListPending)

	// Calendar credential API
	mux.HandleFunc("GET /api/token/status", s.handleTokenStatus)
	mux.HandleFunc("POST /api/token/refresh", s.handleTokenRefresh)
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.Int("port", s.port))
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler returns the server's HTTP handler for testing purposes
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// corsMiddleware adds CORS headers so the chat widget can call the API from the site
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
