// Package outreach schedules and delivers rate-limited email sequences.
package outreach

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"leadmachine_backend/internal/events"
	apphttp "leadmachine_backend/internal/http"
	"leadmachine_backend/internal/outreach/handler"
	"leadmachine_backend/internal/outreach/repository"
	"leadmachine_backend/internal/outreach/schedule"
	"leadmachine_backend/internal/outreach/service"
	"leadmachine_backend/platform/logger"
	"leadmachine_backend/platform/validator"
)

// Module bundles the outreach feature: sequence planning, send admission,
// and delivery callbacks.
type Module struct {
	handler *handler.Handler
	service *service.Service
	log     *logger.Logger
}

// Compile-time check that Module implements apphttp.Module.
var _ apphttp.Module = (*Module)(nil)

// NewModule wires the outreach module together.
func NewModule(pool *pgxpool.Pool, leads service.LeadDirectory, companies service.CompanyDirectory, deliverer service.Deliverer, scheduler service.SendScheduler, budget service.SendBudget, calendar *schedule.Calendar, cfg service.Config, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, leads, companies, deliverer, scheduler, budget, calendar, cfg, bus, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		log:     log,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string { return "outreach" }

// Service exposes the outreach service for cross-module wiring.
func (m *Module) Service() *service.Service { return m.service }

// RegisterRoutes mounts the outreach endpoints.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	leads := ctx.V1.Group("/leads")
	{
		leads.POST("/:id/sequence", m.handler.ActivateSequence)
		leads.GET("/:id/emails", m.handler.ListByLead)
	}

	emails := ctx.V1.Group("/emails")
	{
		emails.GET("/:id", m.handler.GetByID)
		emails.POST("/:id/bounce", m.handler.Bounce)
	}

	ctx.V1.GET("/outreach/status", m.handler.Status)
}

// RegisterEventHandlers subscribes the module to the domain events that
// drive it: qualification starts a sequence, a reply cancels what is left.
func (m *Module) RegisterEventHandlers(bus events.Bus) {
	bus.Subscribe("leads.qualified", events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		qualified, ok := e.(events.LeadQualified)
		if !ok {
			return nil
		}
		if _, err := m.service.ActivateSequence(ctx, qualified.LeadID); err != nil {
			m.log.Error("failed to activate sequence", "lead_id", qualified.LeadID, "error", err.Error())
			return err
		}
		return nil
	}))

	bus.Subscribe("tracking.reply.received", events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		reply, ok := e.(events.ReplyReceived)
		if !ok {
			return nil
		}
		if _, err := m.service.CancelPendingForLead(ctx, reply.LeadID, "reply received"); err != nil {
			m.log.Error("failed to cancel pending sends", "lead_id", reply.LeadID, "error", err.Error())
			return err
		}
		return nil
	}))
}
