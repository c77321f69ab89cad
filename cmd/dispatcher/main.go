package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outreach_portal_backend/internal/actionqueue"
	queuedomain "outreach_portal_backend/internal/actionqueue/domain"
	"outreach_portal_backend/internal/delivery"
	"outreach_portal_backend/internal/events"
	"outreach_portal_backend/internal/leadpool"
	"outreach_portal_backend/internal/resources"
	"outreach_portal_backend/internal/scheduler"
	"outreach_portal_backend/platform/config"
	"outreach_portal_backend/platform/db"
	"outreach_portal_backend/platform/logger"
	"outreach_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting dispatcher", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	// Module wiring without HTTP handlers: the dispatcher needs the lead gate,
	// the resource pool, and the queue engine.
	leadpoolModule := leadpool.NewModule(pool, eventBus, val, log)

	resourcesModule, err := resources.NewModule(pool, eventBus, val, cfg, cfg.GetSchedulingLocation(), log)
	if err != nil {
		log.Error("failed to initialize resources module", "error", err)
		panic("failed to initialize resources module: " + err.Error())
	}

	providers := delivery.NewRegistry(
		delivery.NewSMTPProvider(cfg),
		delivery.NewStubProvider(queuedomain.ChannelLinkedIn, log),
		delivery.NewStubProvider(queuedomain.ChannelSMS, log),
		delivery.NewStubProvider(queuedomain.ChannelVoice, log),
	)
	queueModule := actionqueue.NewModule(pool, leadpoolModule.Lifecycle(), resourcesModule.Service(), providers, cfg, eventBus, val, log)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	worker, err := scheduler.NewWorker(cfg, queueModule.Dispatcher(), resourcesModule.Service(), leadpoolModule.Scoring(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	poller := scheduler.NewActionPoller(queueModule.Dispatcher(), client, cfg, log)
	maintenance := scheduler.NewMaintenance(client, cfg, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})
	g.Go(func() error {
		maintenance.Run(gctx)
		return nil
	})
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("dispatcher stopped", "error", err)
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
