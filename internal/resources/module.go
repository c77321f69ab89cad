// Package resources provides the shared resource allocation bounded context
// module: sending domains, phone numbers, and social seats pooled across
// tenants with warm-up ramps and deliverability health tracking.
package resources

import (
	"time"

	"outreach_portal_backend/internal/events"
	apphttp "outreach_portal_backend/internal/http"
	"outreach_portal_backend/internal/resources/handler"
	"outreach_portal_backend/internal/resources/repository"
	"outreach_portal_backend/internal/resources/service"
	"outreach_portal_backend/internal/resources/warmup"
	"outreach_portal_backend/platform/config"
	"outreach_portal_backend/platform/logger"
	"outreach_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the resources bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	svc     *service.Service
}

// NewModule creates and initializes the resources module with all its
// dependencies. The warm-up policy is loaded from cfg when a path is set,
// otherwise the built-in ramps apply.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, cfg config.WarmupConfig, loc *time.Location, log *logger.Logger) (*Module, error) {
	policy := warmup.Default()
	if path := cfg.GetWarmupPolicyPath(); path != "" {
		loaded, err := warmup.Load(path)
		if err != nil {
			return nil, err
		}
		policy = loaded
	}

	repo := repository.New(pool)
	svc := service.New(repo, policy, loc, eventBus, log)
	h := handler.New(svc, val)

	return &Module{handler: h, svc: svc}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "resources"
}

// RegisterRoutes mounts resource routes on the shared router groups.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/resources"))
	m.handler.RegisterAdminRoutes(ctx.Admin.Group("/resources"))
}

// Service exposes the resources service for the dispatcher (effective
// limits, send events, health recompute).
func (m *Module) Service() *service.Service {
	return m.svc
}
