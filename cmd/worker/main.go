package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/andino-pos/andino-pos/internal/alerts"
	"github.com/andino-pos/andino-pos/internal/app"
	"github.com/andino-pos/andino-pos/internal/forecast"
	jobmetrics "github.com/andino-pos/andino-pos/internal/jobs"
	"github.com/andino-pos/andino-pos/internal/observability"
	"github.com/andino-pos/andino-pos/internal/platform/cache"
	"github.com/andino-pos/andino-pos/internal/platform/db"
	"github.com/andino-pos/andino-pos/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Warn("redis unavailable, forecast snapshots disabled", slog.Any("error", err))
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
	trackers := jobmetrics.NewMetrics(nil)

	alertRepo := alerts.NewRepository(pool)
	alertEngine := alerts.NewEngine(alertRepo, logger, metrics, alerts.EngineConfig{
		DedupeLowStock: cfg.AlertDedupeLowStock,
	})

	forecastRepo := forecast.NewRepository(pool)
	forecastService := forecast.NewService(logger, forecastRepo, alertEngine, redisClient, cfg.ForecastCacheTTL)

	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init asynq client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCashRiskRecalc, Handler: jobs.NewCashRiskRecalcHandler(logger, trackers, forecastService)},
			{Type: jobs.TaskCashRiskFanout, Handler: jobs.NewCashRiskFanoutHandler(logger, trackers, forecastRepo, client)},
		},
		Cron: []jobs.CronRegistration{
			// Nightly fan-out keeps every tenant's cash-risk alert current even
			// when no one hits the recalculate endpoint.
			{Spec: "0 3 * * *", Task: jobs.NewCashRiskFanoutTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
