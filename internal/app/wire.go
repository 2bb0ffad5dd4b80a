package app

import (
	"log/slog"

	"github.com/attaboy/backoffice/internal/guard"
	"github.com/attaboy/backoffice/internal/handler"
	adminhandler "github.com/attaboy/backoffice/internal/handler/admin"
	"github.com/attaboy/backoffice/internal/infra"
	"github.com/attaboy/backoffice/internal/service"
	"github.com/go-chi/chi/v5"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	// DB backs the health check; nil skips the ping.
	DB        infra.Pinger
	Logger    *slog.Logger
	RebateSvc *service.RebateService
	// DecisionLimiter throttles submit and cancel per operator; nil disables it.
	DecisionLimiter *guard.RateLimiter
	EventsEnabled   bool
	CORSOrigin      string
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger
	origin := deps.CORSOrigin
	if origin == "" {
		origin = "*"
	}

	rebateAdmin := adminhandler.NewRebateAdminHandler(deps.RebateSvc, deps.DecisionLimiter)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(origin))
	r.Use(handler.JSONContentType)

	r.Get("/health", handler.HealthHandler(deps.DB, deps.EventsEnabled))

	r.Route("/admin/rebates", func(r chi.Router) {
		r.Use(handler.RequireOperator)
		rebateAdmin.Routes(r)
	})

	return r
}
