// Package leads manages contacts through scoring and qualification.
package leads

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"leadmachine_backend/internal/events"
	apphttp "leadmachine_backend/internal/http"
	"leadmachine_backend/internal/leads/handler"
	"leadmachine_backend/internal/leads/repository"
	"leadmachine_backend/internal/leads/scoring"
	"leadmachine_backend/internal/leads/service"
	"leadmachine_backend/platform/logger"
	"leadmachine_backend/platform/validator"
)

// Module bundles the leads feature: enrichment intake, scoring and
// qualification.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// Compile-time check that Module implements apphttp.Module.
var _ apphttp.Module = (*Module)(nil)

// NewModule wires the leads module together.
func NewModule(pool *pgxpool.Pool, companies service.CompanyDirectory, scorer *scoring.Scorer, enqueuer service.ScoreEnqueuer, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, companies, scorer, enqueuer, bus, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string { return "leads" }

// Service exposes the leads service for cross-module wiring.
func (m *Module) Service() *service.Service { return m.service }

// RegisterRoutes mounts the leads endpoints.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	companies := ctx.V1.Group("/companies")
	{
		companies.POST("/:id/enrichment/begin", m.handler.BeginEnrichment)
		companies.POST("/:id/contacts", ctx.IntakeRateLimiter.RateLimit(), m.handler.IngestContacts)
	}

	leads := ctx.V1.Group("/leads")
	{
		leads.GET("", m.handler.List)
		leads.GET("/:id", m.handler.GetByID)
		leads.POST("/:id/score", m.handler.Score)
	}
}
