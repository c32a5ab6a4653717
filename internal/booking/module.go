// Package booking provides the slot booking bounded context module.
package booking

import (
	"leadfunnel_backend/internal/booking/handler"
	"leadfunnel_backend/internal/booking/service"
	"leadfunnel_backend/internal/events"
	apphttp "leadfunnel_backend/internal/http"
	"leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/internal/scheduler"
	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/validator"
)

// Module is the booking bounded context module implementing http.Module.
// It shares the lead store with the leads module: a booking is a lifecycle
// transition of the same aggregate.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the booking module.
func NewModule(store repository.Store, eventBus events.Bus, enqueuer scheduler.TaskEnqueuer, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(store, enqueuer, eventBus, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "booking"
}

// Service returns the booking service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts booking routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterLeadRoutes(ctx.Public.Group("/leads"))
	m.handler.RegisterSlotRoutes(ctx.V1.Group("/booking"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
