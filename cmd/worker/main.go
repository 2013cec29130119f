package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-utility/internal/app"
	"github.com/odyssey-erp/odyssey-utility/internal/observability"
	"github.com/odyssey-erp/odyssey-utility/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-utility/internal/reports"
	"github.com/odyssey-erp/odyssey-utility/jobs"
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

	location, err := cfg.Location()
	if err != nil {
		logger.Error("resolve report timezone", slog.Any("error", err))
		os.Exit(1)
	}

	store, err := app.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("open data backend", slog.String("backend", cfg.DataBackend), slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	redisOpts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	redisClient, err := cache.New(ctx, redisOpts)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}
	reportService := reports.NewService(store.Source, reports.NewCache(redisClient, cfg.ReportCacheTTL),
		reports.WithRates(store.Rates),
		reports.WithRecorder(metrics),
		reports.WithLogger(logger),
		reports.WithLocation(location),
	)

	warmupJob := jobs.NewReportsWarmupJob(reportService, logger, metrics.Jobs())
	bumpJob := jobs.NewCacheBumpJob(reportService, logger, metrics.Jobs())

	warmupTask, err := jobs.NewWarmupTask()
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts.AsynqOpt(),
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReportsWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskReportsCacheBump, Handler: bumpJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: jobs.WarmupCronSpec, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
		Location: location,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("warmup_cron", jobs.WarmupCronSpec))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
