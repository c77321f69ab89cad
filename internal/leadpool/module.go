// Package leadpool provides the shared lead pool bounded context module.
// This file defines the module that encapsulates all lead pool setup and
// route registration.
package leadpool

import (
	"outreach_portal_backend/internal/events"
	apphttp "outreach_portal_backend/internal/http"
	"outreach_portal_backend/internal/leadpool/handler"
	"outreach_portal_backend/internal/leadpool/repository"
	"outreach_portal_backend/internal/leadpool/scoring"
	"outreach_portal_backend/internal/leadpool/service"
	"outreach_portal_backend/platform/logger"
	"outreach_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the lead pool bounded context module implementing http.Module.
type Module struct {
	handler   *handler.Handler
	lifecycle *service.Service
	scoring   *scoring.Service
}

// NewModule creates and initializes the lead pool module with all its dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)

	lifecycleSvc := service.New(repo, eventBus, log)
	scoringSvc := scoring.New(repo, log)

	h := handler.New(lifecycleSvc, scoringSvc, val)

	return &Module{
		handler:   h,
		lifecycle: lifecycleSvc,
		scoring:   scoringSvc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leadpool"
}

// RegisterRoutes mounts lead pool routes on the shared router groups.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
	m.handler.RegisterAdminRoutes(ctx.Admin.Group("/leads"))
}

// Lifecycle exposes the lifecycle service for other modules (dispatch gate).
func (m *Module) Lifecycle() *service.Service {
	return m.lifecycle
}

// Scoring exposes the scoring service for scheduled rescoring jobs.
func (m *Module) Scoring() *scoring.Service {
	return m.scoring
}
