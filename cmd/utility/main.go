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
	"golang.org/x/text/language"

	"github.com/odyssey-erp/odyssey-utility/internal/app"
	"github.com/odyssey-erp/odyssey-utility/internal/auth"
	"github.com/odyssey-erp/odyssey-utility/internal/observability"
	"github.com/odyssey-erp/odyssey-utility/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-utility/internal/reports"
	"github.com/odyssey-erp/odyssey-utility/internal/reports/export"
	reportshttp "github.com/odyssey-erp/odyssey-utility/internal/reports/http"
	"github.com/odyssey-erp/odyssey-utility/internal/shared"
	"github.com/odyssey-erp/odyssey-utility/jobs"
	"github.com/odyssey-erp/odyssey-utility/report"
)

const sessionCookie = "utility_session"

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
	slog.SetDefault(logger)

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

	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	if err := reportCache.ListenForInvalidation(ctx, cfg.ReportInvalidateSub); err != nil {
		logger.Warn("subscribe invalidation channel", slog.String("channel", cfg.ReportInvalidateSub), slog.Any("error", err))
	}
	reportService := reports.NewService(store.Source, reportCache,
		reports.WithRates(store.Rates),
		reports.WithRecorder(metrics),
		reports.WithLogger(logger),
		reports.WithLocation(location),
	)

	var (
		renderHandler *report.Handler
		pdfService    reportshttp.PDFService
	)
	if cfg.GotenbergURL != "" {
		client := report.NewClient(cfg.GotenbergURL, report.WithLandscape())
		renderHandler = report.NewHandler(client, logger)
		pdfService = export.NewPDFRenderer(client, language.English)
	} else {
		logger.Warn("GOTENBERG_URL empty, PDF export disabled")
	}

	sessionManager := shared.NewSessionManager(redisClient, sessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	authHandler := auth.NewHandler(logger, auth.NewService(store.Users), sessionManager)
	reportsHandler := reportshttp.NewHandler(logger, reportService, pdfService)

	inspector := asynq.NewInspector(redisOpts.AsynqOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		AuthHandler:    authHandler,
		ReportsHandler: reportsHandler,
		RenderHandler:  renderHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("backend", cfg.DataBackend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
