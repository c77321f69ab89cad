package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outreach_portal_backend/internal/actionqueue"
	queuedomain "outreach_portal_backend/internal/actionqueue/domain"
	"outreach_portal_backend/internal/campaigns"
	"outreach_portal_backend/internal/delivery"
	"outreach_portal_backend/internal/events"
	apphttp "outreach_portal_backend/internal/http"
	"outreach_portal_backend/internal/http/router"
	"outreach_portal_backend/internal/leadpool"
	"outreach_portal_backend/internal/resources"
	"outreach_portal_backend/platform/config"
	"outreach_portal_backend/platform/db"
	"outreach_portal_backend/platform/logger"
	"outreach_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, cfg.MigrationsDir)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	leadpoolModule := leadpool.NewModule(pool, eventBus, val, log)

	resourcesModule, err := resources.NewModule(pool, eventBus, val, cfg, cfg.GetSchedulingLocation(), log)
	if err != nil {
		log.Error("failed to initialize resources module", "error", err)
		panic("failed to initialize resources module: " + err.Error())
	}

	providers := newProviderRegistry(cfg, log)
	queueModule := actionqueue.NewModule(pool, leadpoolModule.Lifecycle(), resourcesModule.Service(), providers, cfg, eventBus, val, log)

	campaignsModule := campaigns.NewModule(pool, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadpoolModule,
			resourcesModule,
			queueModule,
			campaignsModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// newProviderRegistry assembles the outbound channel providers. Non-email
// channels run against stubs until their transports are integrated.
func newProviderRegistry(cfg *config.Config, log *logger.Logger) *delivery.Registry {
	return delivery.NewRegistry(
		delivery.NewSMTPProvider(cfg),
		delivery.NewStubProvider(queuedomain.ChannelLinkedIn, log),
		delivery.NewStubProvider(queuedomain.ChannelSMS, log),
		delivery.NewStubProvider(queuedomain.ChannelVoice, log),
	)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
