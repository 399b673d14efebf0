package companies

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"leadmachine_backend/internal/companies/handler"
	"leadmachine_backend/internal/companies/repository"
	"leadmachine_backend/internal/companies/service"
	"leadmachine_backend/internal/events"
	apphttp "leadmachine_backend/internal/http"
	"leadmachine_backend/platform/logger"
	"leadmachine_backend/platform/validator"
)

// Module bundles the companies feature: scrape intake, deduplication,
// company lifecycle, and scrape job tracking.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// Compile-time check that Module implements apphttp.Module.
var _ apphttp.Module = (*Module)(nil)

// NewModule wires the companies module together.
func NewModule(pool *pgxpool.Pool, enqueuer service.BatchEnqueuer, bus events.Bus, cfg service.DedupConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, repo, enqueuer, bus, cfg, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string { return "companies" }

// Service exposes the companies service for cross-module wiring.
func (m *Module) Service() *service.Service { return m.service }

// RegisterRoutes mounts the companies endpoints.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	companies := ctx.V1.Group("/companies")
	{
		companies.POST("/observations", ctx.IntakeRateLimiter.RateLimit(), m.handler.SubmitObservations)
		companies.GET("", m.handler.List)
		companies.GET("/:id", m.handler.GetByID)
		companies.POST("/:id/resolve-review", m.handler.ResolveReview)
		companies.POST("/:id/retry-enrichment", m.handler.RetryEnrichment)
	}

	jobs := ctx.V1.Group("/scrape-jobs")
	{
		jobs.GET("", m.handler.ListJobs)
		jobs.GET("/:id", m.handler.GetJob)
	}
}
