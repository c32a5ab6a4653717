// Package leads provides the lead funnel bounded context module.
// This file defines the module that encapsulates all leads setup and route registration.
package leads

import (
	"leadfunnel_backend/internal/events"
	apphttp "leadfunnel_backend/internal/http"
	"leadfunnel_backend/internal/leads/handler"
	"leadfunnel_backend/internal/leads/ports"
	"leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/internal/leads/service"
	"leadfunnel_backend/internal/scheduler"
	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, enqueuer scheduler.TaskEnqueuer, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, enqueuer, eventBus, ports.AllowAuthenticated{}, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the leads service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the lead store for modules sharing the same aggregate.
func (m *Module) Repository() repository.Store {
	return m.repo
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterPublicRoutes(ctx.Public.Group("/leads"))
	m.handler.RegisterOwnerRoutes(ctx.Protected)
	m.handler.RegisterAdminRoutes(ctx.Admin)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
