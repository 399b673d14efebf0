package tracking

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"leadmachine_backend/internal/events"
	apphttp "leadmachine_backend/internal/http"
	"leadmachine_backend/internal/tracking/handler"
	"leadmachine_backend/internal/tracking/repository"
	"leadmachine_backend/internal/tracking/service"
	"leadmachine_backend/platform/logger"
	"leadmachine_backend/platform/validator"
)

// Module bundles the tracking feature: open and click beacons, reply
// processing, and engagement stats.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// Compile-time check that Module implements apphttp.Module.
var _ apphttp.Module = (*Module)(nil)

// NewModule wires the tracking module together.
func NewModule(
	pool *pgxpool.Pool,
	emails service.EmailDirectory,
	leads service.LeadResolver,
	cfg service.Config,
	bus events.Bus,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, emails, leads, cfg, bus, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string { return "tracking" }

// Service exposes the tracking service for the inbound mail poller.
func (m *Module) Service() *service.Service { return m.service }

// RegisterRoutes mounts the tracking endpoints. The beacon routes live at
// the engine root: email clients fetch them directly, so the paths must stay
// short and outside the versioned API.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	t := ctx.Engine.Group("/t")
	{
		t.GET("/o/:id", m.handler.Open)
		t.GET("/c/:id", m.handler.Click)
	}

	trackingAPI := ctx.V1.Group("/tracking")
	{
		trackingAPI.POST("/replies", m.handler.ReceiveReply)
		trackingAPI.GET("/stats", m.handler.Stats)
		trackingAPI.GET("/unmatched-replies", m.handler.UnmatchedReplies)
	}
	ctx.V1.GET("/leads/:id/engagement", m.handler.Engagement)
	ctx.V1.GET("/emails/:id/events", m.handler.EmailEvents)
}
