// Package requests provides the Request Record domain module: the durable
// audit trail for every form submission.
package requests

import (
	apphttp "prospect_intake_backend/internal/http"
	"prospect_intake_backend/internal/requests/handler"
	"prospect_intake_backend/internal/requests/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the requests domain module.
type Module struct {
	handler    *handler.Handler
	repository *repository.Repository
}

// NewModule creates the requests module.
func NewModule(pool *pgxpool.Pool) *Module {
	repo := repository.New(pool)
	return &Module{
		handler:    handler.New(repo),
		repository: repo,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "requests"
}

// Repository returns the record store for other modules and the worker.
func (m *Module) Repository() *repository.Repository {
	return m.repository
}

// RegisterRoutes mounts the read API on the operator group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Operator.Group("/requests"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
