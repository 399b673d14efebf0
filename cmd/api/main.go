package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"leadmachine_backend/internal/companies"
	"leadmachine_backend/internal/email"
	"leadmachine_backend/internal/events"
	apphttp "leadmachine_backend/internal/http"
	"leadmachine_backend/internal/http/router"
	"leadmachine_backend/internal/leads"
	"leadmachine_backend/internal/leads/scoring"
	"leadmachine_backend/internal/outreach"
	"leadmachine_backend/internal/outreach/ratelimit"
	"leadmachine_backend/internal/outreach/schedule"
	outreachsvc "leadmachine_backend/internal/outreach/service"
	"leadmachine_backend/internal/scheduler"
	"leadmachine_backend/internal/tracking"
	"leadmachine_backend/platform/config"
	"leadmachine_backend/platform/db"
	"leadmachine_backend/platform/logger"
	"leadmachine_backend/platform/validator"
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
		return db.RunMigrations(ctx, cfg, "migrations")
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

	// Task queue client: dedup batches, scoring, scheduled sends
	queueClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task queue client", "error", err)
		panic("failed to initialize task queue client: " + err.Error())
	}
	defer queueClient.Close()

	redisOpt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("failed to parse redis url", "error", err)
		panic("failed to parse redis url: " + err.Error())
	}
	redisClient := redis.NewClient(redisOpt)
	defer redisClient.Close()

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	weights, err := scoring.Load(cfg.GetScoringWeightsFile())
	if err != nil {
		log.Error("failed to load scoring weights", "error", err)
		panic("failed to load scoring weights: " + err.Error())
	}
	scorer := scoring.New(weights)

	calendar, err := schedule.New(cfg.GetBusinessTimezone(), cfg.GetBusinessStartHour(), cfg.GetBusinessEndHour())
	if err != nil {
		log.Error("failed to build business calendar", "error", err)
		panic("failed to build business calendar: " + err.Error())
	}
	businessLoc, err := time.LoadLocation(cfg.GetBusinessTimezone())
	if err != nil {
		panic("failed to load business timezone: " + err.Error())
	}
	sendBudget := ratelimit.NewDailyLimiter(redisClient, cfg.GetDailySendLimit(), businessLoc)

	var deliverer outreachsvc.Deliverer
	if cfg.IsEmailEnabled() {
		deliverer = email.NewSMTPDeliverer(cfg, cfg, log)
		log.Info("smtp delivery enabled", "host", cfg.GetSMTPHost())
	} else {
		deliverer = email.NewLogDeliverer(log)
		log.Warn("email delivery disabled; sends will be logged only")
	}

	companiesModule := companies.NewModule(pool, queueClient, eventBus, cfg, val, log)
	leadsModule := leads.NewModule(pool, companiesModule.Service(), scorer, queueClient, eventBus, val, log)
	outreachModule := outreach.NewModule(pool, leadsModule.Service(), companiesModule.Service(), deliverer, queueClient, sendBudget, calendar, cfg, eventBus, val, log)
	outreachModule.RegisterEventHandlers(eventBus)
	trackingModule := tracking.NewModule(pool, outreachModule.Service(), leadsModule.Service(), cfg, eventBus, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			companiesModule,
			leadsModule,
			outreachModule,
			trackingModule,
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
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
