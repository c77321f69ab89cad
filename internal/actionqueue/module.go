// Package actionqueue provides the durable action queue bounded context
// module: rate limited, retryable outreach action dispatch.
package actionqueue

import (
	"outreach_portal_backend/internal/actionqueue/handler"
	"outreach_portal_backend/internal/actionqueue/repository"
	"outreach_portal_backend/internal/actionqueue/service"
	"outreach_portal_backend/internal/delivery"
	"outreach_portal_backend/internal/events"
	apphttp "outreach_portal_backend/internal/http"
	"outreach_portal_backend/platform/config"
	"outreach_portal_backend/platform/logger"
	"outreach_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the action queue bounded context module implementing http.Module.
type Module struct {
	handler    *handler.Handler
	svc        *service.Service
	dispatcher *service.Dispatcher
}

// NewModule creates and initializes the action queue module. The lead gate and
// resource pool come from the sibling modules; providers carry the outbound
// channel implementations.
func NewModule(pool *pgxpool.Pool, leads service.LeadGate, resources service.ResourcePool, providers *delivery.Registry, cfg config.DispatchConfig, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log)
	dispatcher := service.NewDispatcher(repo, leads, resources, providers, cfg, eventBus, log)
	h := handler.New(svc, val)

	return &Module{handler: h, svc: svc, dispatcher: dispatcher}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "actionqueue"
}

// RegisterRoutes mounts queue routes on the shared router groups.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/actions"))
}

// Dispatcher exposes the dispatch engine for the worker process.
func (m *Module) Dispatcher() *service.Dispatcher {
	return m.dispatcher
}
