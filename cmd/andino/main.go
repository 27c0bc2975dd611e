package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/andino-pos/andino-pos/internal/alerts"
	"github.com/andino-pos/andino-pos/internal/app"
	"github.com/andino-pos/andino-pos/internal/catalog"
	"github.com/andino-pos/andino-pos/internal/dashboard"
	"github.com/andino-pos/andino-pos/internal/expenses"
	"github.com/andino-pos/andino-pos/internal/forecast"
	"github.com/andino-pos/andino-pos/internal/observability"
	"github.com/andino-pos/andino-pos/internal/platform/cache"
	"github.com/andino-pos/andino-pos/internal/platform/db"
	"github.com/andino-pos/andino-pos/internal/sales"
	"github.com/andino-pos/andino-pos/internal/shared"
	"github.com/andino-pos/andino-pos/internal/stock"
	"github.com/andino-pos/andino-pos/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, caches disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	catalogRepo := catalog.NewRepository(pool)
	catalogHandler := catalog.NewHandler(logger, catalogRepo)

	alertRepo := alerts.NewRepository(pool)
	alertEngine := alerts.NewEngine(alertRepo, logger, metrics, alerts.EngineConfig{
		DedupeLowStock: cfg.AlertDedupeLowStock,
	})
	alertHandler := alerts.NewHandler(logger, alertEngine, auditLogger)

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(logger, stockRepo)
	stockHandler := stock.NewHandler(logger, stockService, auditLogger)

	saleRepo := sales.NewRepository(pool, cfg.SaleLockTimeout)
	saleService := sales.NewService(logger, saleRepo, metrics, sales.ServiceConfig{
		ReceiptRetries: cfg.SaleReceiptRetries,
		DedupeLowStock: cfg.AlertDedupeLowStock,
	})
	saleHandler := sales.NewHandler(logger, saleService, saleRepo, auditLogger)

	forecastRepo := forecast.NewRepository(pool)
	forecastService := forecast.NewService(logger, forecastRepo, alertEngine, redisClient, cfg.ForecastCacheTTL)
	forecastHandler := forecast.NewHandler(logger, forecastService)

	expenseRepo := expenses.NewRepository(pool)
	expenseService := expenses.NewService(logger, expenseRepo)
	expenseHandler := expenses.NewHandler(logger, expenseService)

	dashboardRepo := dashboard.NewRepository(pool)
	dashboardService := dashboard.NewService(logger, dashboardRepo, redisClient, cfg.DashboardCacheTTL)
	dashboardHandler := dashboard.NewHandler(logger, dashboardService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterConfig{
		Logger:    logger,
		Config:    cfg,
		Metrics:   metrics,
		Catalog:   catalogHandler,
		Sales:     saleHandler,
		Stock:     stockHandler,
		Alerts:    alertHandler,
		Forecast:  forecastHandler,
		Expenses:  expenseHandler,
		Dashboard: dashboardHandler,
		Jobs:      jobHandler,
		Ready: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
