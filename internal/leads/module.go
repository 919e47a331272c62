// Package leads provides the lead intake domain module.
package leads

import (
	apphttp "prospect_intake_backend/internal/http"
	"prospect_intake_backend/internal/leads/handler"
	"prospect_intake_backend/internal/leads/repository"
	"prospect_intake_backend/internal/leads/service"
	"prospect_intake_backend/platform/events"
	"prospect_intake_backend/platform/logger"
	"prospect_intake_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the leads domain module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the leads module with all dependencies wired. The task
// starter is injected because it is shared with the worker process.
func NewModule(pool *pgxpool.Pool, records service.RecordStore, tasks service.TaskStarter, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, records, tasks, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes. The form endpoint sits on
// the public, rate-limited group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Public)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
