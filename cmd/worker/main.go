// The worker binary runs the background side of the pipeline: observation
// deduplication, lead scoring, scheduled email sends and the inbound reply
// poller. It shares the composition root shape with cmd/api but serves no
// HTTP routes.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"leadmachine_backend/internal/companies"
	"leadmachine_backend/internal/email"
	"leadmachine_backend/internal/events"
	"leadmachine_backend/internal/inbound"
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

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	pool, err = db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	queueClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task queue client", "error", err)
		panic("failed to initialize task queue client: " + err.Error())
	}
	defer queueClient.Close()

	redisOpt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		panic("failed to parse redis url: " + err.Error())
	}
	redisClient := redis.NewClient(redisOpt)
	defer redisClient.Close()

	val := validator.New()

	weights, err := scoring.Load(cfg.GetScoringWeightsFile())
	if err != nil {
		panic("failed to load scoring weights: " + err.Error())
	}
	scorer := scoring.New(weights)

	calendar, err := schedule.New(cfg.GetBusinessTimezone(), cfg.GetBusinessStartHour(), cfg.GetBusinessEndHour())
	if err != nil {
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
	} else {
		deliverer = email.NewLogDeliverer(log)
		log.Warn("email delivery disabled; sends will be logged only")
	}

	companiesModule := companies.NewModule(pool, queueClient, eventBus, cfg, val, log)
	leadsModule := leads.NewModule(pool, companiesModule.Service(), scorer, queueClient, eventBus, val, log)
	outreachModule := outreach.NewModule(pool, leadsModule.Service(), companiesModule.Service(), deliverer, queueClient, sendBudget, calendar, cfg, eventBus, val, log)
	outreachModule.RegisterEventHandlers(eventBus)
	trackingModule := tracking.NewModule(pool, outreachModule.Service(), leadsModule.Service(), cfg, eventBus, val, log)

	worker, err := scheduler.NewWorker(cfg, companiesModule.Service(), leadsModule.Service(), outreachModule.Service(), queueClient, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	// Sweep at startup and on an interval: claims whose worker died are
	// released, then every due send the queue lost is re-queued, so neither
	// a crash nor a dropped task can strand an email.
	sweep := func() {
		if _, err := outreachModule.Service().ReclaimStale(ctx, 30*time.Minute); err != nil {
			log.Error("stale claim reclaim failed", "error", err)
		}
		if requeued, err := outreachModule.Service().RequeueDue(ctx, 500); err != nil {
			log.Error("requeue of due sends failed", "error", err)
		} else if requeued > 0 {
			log.Info("due sends requeued", "count", requeued)
		}
	}
	sweep()
	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep()
			}
		}
	}()

	if cfg.IsIMAPEnabled() {
		poller := inbound.New(cfg, trackingModule.Service(), log)
		go func() {
			if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("inbound poller stopped", "error", err)
			}
		}()
	} else {
		log.Warn("IMAP not configured; reply detection relies on the webhook only")
	}

	worker.Run(ctx)
	eventBus.Wait()
	log.Info("worker stopped")
}
