package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/andino-pos/andino-pos/internal/alerts"
	"github.com/andino-pos/andino-pos/internal/catalog"
	"github.com/andino-pos/andino-pos/internal/dashboard"
	"github.com/andino-pos/andino-pos/internal/expenses"
	"github.com/andino-pos/andino-pos/internal/forecast"
	"github.com/andino-pos/andino-pos/internal/observability"
	"github.com/andino-pos/andino-pos/internal/platform/httpx"
	"github.com/andino-pos/andino-pos/internal/sales"
	"github.com/andino-pos/andino-pos/internal/stock"
	"github.com/andino-pos/andino-pos/jobs"
)

// RouterConfig aggregates everything the HTTP surface mounts.
type RouterConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	Catalog   *catalog.Handler
	Sales     *sales.Handler
	Stock     *stock.Handler
	Alerts    *alerts.Handler
	Forecast  *forecast.Handler
	Expenses  *expenses.Handler
	Dashboard *dashboard.Handler
	Jobs      *jobs.Handler

	// Ready reports backend health for /healthz. nil means always healthy.
	Ready func(ctx context.Context) error
}

// NewRouter assembles the API router. Identity is resolved once for the
// /api subtree; /healthz and /metrics stay outside it for probes and
// scrapers.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: cfg.Logger, Config: cfg.Config, Metrics: cfg.Metrics}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready(req.Context()); err != nil {
				cfg.Logger.Warn("health check failed", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(IdentityMiddleware(cfg.Logger))

		if cfg.Catalog != nil {
			api.Route("/products", cfg.Catalog.MountRoutes)
		}
		if cfg.Sales != nil {
			api.Route("/sales", cfg.Sales.MountRoutes)
		}
		if cfg.Stock != nil {
			api.Route("/inventory", cfg.Stock.MountRoutes)
		}
		api.Route("/alerts", func(sub chi.Router) {
			if cfg.Alerts != nil {
				cfg.Alerts.MountRoutes(sub)
			}
			if cfg.Forecast != nil {
				cfg.Forecast.MountRoutes(sub)
			}
		})
		if cfg.Expenses != nil {
			api.Route("/expenses", cfg.Expenses.MountRoutes)
		}
		if cfg.Dashboard != nil {
			api.Route("/dashboard", cfg.Dashboard.MountRoutes)
		}
		if cfg.Jobs != nil {
			api.Route("/jobs", cfg.Jobs.MountRoutes)
		}
	})

	return r
}
