package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/omriShneor/project_concierge/internal/agent"
	"github.com/omriShneor/project_concierge/internal/concierge"
	"github.com/omriShneor/project_concierge/internal/config"
	"github.com/omriShneor/project_concierge/internal/database"
	"github.com/omriShneor/project_concierge/internal/gcal"
	"github.com/omriShneor/project_concierge/internal/logging"
	"github.com/omriShneor/project_concierge/internal/notify"
	"github.com/omriShneor/project_concierge/internal/queue"
	"github.com/omriShneor/project_concierge/internal/scheduling"
	"github.com/omriShneor/project_concierge/internal/server"
	"github.com/omriShneor/project_concierge/internal/timeutil"
	"github.com/omriShneor/project_concierge/internal/token"
)

func main() {
	cfg := config.LoadFromEnv()

	logger, err := logging.New(cfg.IsProduction())
	if err != nil {
		fatal("creating logger", err)
	}
	defer logger.Sync()

	loc, fellBack := timeutil.ResolveLocation(cfg.Timezone)
	if fellBack {
		logger.Warn("unknown timezone, using UTC", zap.String("timezone", cfg.Timezone))
	}

	// Phase 1: Core infrastructure
	db, err := database.New(cfg.DBPath, cfg.EncryptionKey, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()

	// Phase 2: Calendar access
	tokens, err := initTokens(ctx, db, cfg, logger)
	if err != nil {
		logger.Fatal("failed to load calendar credential", zap.Error(err))
	}
	calendarClient := gcal.NewClient(tokens, gcal.ClientConfig{Timeout: cfg.CalendarTimeout}, logger)

	// Phase 3: Scheduling and the fallback queue
	engine, err := scheduling.NewEngine(calendarClient, scheduling.Config{
		Location:          loc,
		BusinessStart:     cfg.BusinessStart,
		BusinessEnd:       cfg.BusinessEnd,
		SlotDuration:      cfg.SlotDuration,
		MaxSlots:          cfg.MaxSlotsListed,
		MaxAlternatives:   cfg.MaxAlternatives,
		MinDescriptionLen: cfg.MinDescriptionLen,
		CalendarID:        cfg.CalendarID,
	}, logger)
	if err != nil {
		logger.Fatal("invalid scheduling configuration", zap.Error(err))
	}

	policy, err := queue.ParsePolicy(cfg.ReconcilePolicy)
	if err != nil {
		logger.Fatal("invalid reconcile policy", zap.Error(err))
	}
	pendingQueue := queue.New(db, engine, policy, logger)
	engine.SetEnqueuer(pendingQueue)

	notifyService := initNotifyService(cfg, loc, logger)
	pendingQueue.SetNotifier(notifyService)

	reconciler, err := queue.NewScheduler(pendingQueue, cfg.ReconcileSchedule, logger)
	if err != nil {
		logger.Fatal("invalid reconcile schedule", zap.Error(err))
	}
	reconciler.Start()

	// Phase 4: Conversation
	if cfg.AnthropicAPIKey == "" {
		logger.Warn("ANTHROPIC_API_KEY not set, chat will answer with canned replies")
	}
	model := agent.NewAPIClient(agent.Config{
		APIKey:      cfg.AnthropicAPIKey,
		Model:       cfg.ClaudeModel,
		Temperature: cfg.ClaudeTemperature,
		Timeout:     cfg.ModelTimeout,
		MaxAttempts: cfg.ModelMaxAttempts,
	}, logger)

	orchestrator := concierge.NewOrchestrator(model, engine, db, notifyService, concierge.Config{
		Location:          loc,
		BusinessStart:     cfg.BusinessStart,
		BusinessEnd:       cfg.BusinessEnd,
		SlotDuration:      cfg.SlotDuration,
		MinDescriptionLen: cfg.MinDescriptionLen,
		ServiceType:       cfg.DefaultServiceType,
	}, logger)

	// Phase 5: HTTP
	srv := server.New(server.ServerConfig{
		DB:             db,
		Concierge:      orchestrator,
		Scheduler:      engine,
		Queue:          pendingQueue,
		Tokens:         tokens,
		Location:       loc,
		SlotDuration:   cfg.SlotDuration,
		ServiceType:    cfg.DefaultServiceType,
		Port:           cfg.HTTPPort,
		ChatRatePerMin: cfg.ChatRatePerMin,
		TrustProxy:     cfg.TrustProxy,
		Logger:         logger,
	})
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	waitForShutdown(srv, reconciler, logger)
}

func initTokens(ctx context.Context, db *database.DB, cfg *config.Config, logger *zap.Logger) (*token.Manager, error) {
	oauthConfig, err := gcal.LoadOAuthConfig(cfg.GoogleCredentialsFile, cfg.GoogleCredentialsJSON)
	if err != nil {
		// Bookings still succeed through the fallback queue
		logger.Warn("Google credentials not loaded, calendar writes will be queued", zap.Error(err))
		oauthConfig = &oauth2.Config{}
	}

	mgr := token.NewManager(db, token.NewOAuthRefresher(oauthConfig), cfg.TokenSafetyMargin, logger)
	if err := mgr.Load(ctx); err != nil {
		return nil, err
	}
	if cfg.GoogleRefreshToken != "" {
		if err := mgr.Seed(ctx, cfg.GoogleRefreshToken); err != nil {
			return nil, fmt.Errorf("failed to seed refresh token: %w", err)
		}
	}

	if st := mgr.Status(); !st.HasRefreshToken {
		logger.Warn("no calendar refresh token, set GOOGLE_REFRESH_TOKEN")
	}
	return mgr, nil
}

func initNotifyService(cfg *config.Config, loc *time.Location, logger *zap.Logger) *notify.Service {
	var emailNotifier notify.Notifier
	if resendNotifier := notify.NewResendNotifier(cfg.ResendAPIKey, cfg.EmailFrom); resendNotifier != nil {
		emailNotifier = resendNotifier
	}

	svc := notify.NewService(emailNotifier, cfg.OwnerEmail, loc, logger)
	if svc.IsEmailAvailable() {
		logger.Info("email notification service configured (Resend)")
	} else {
		logger.Info("email notifications disabled, set RESEND_API_KEY and CONCIERGE_OWNER_EMAIL")
	}
	return svc
}

func fatal(context string, err error) {
	fmt.Fprintf(os.Stderr, "Error %s: %v\n", context, err)
	os.Exit(1)
}

func waitForShutdown(srv *server.Server, reconciler *queue.Scheduler, logger *zap.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	reconciler.Stop()
}
