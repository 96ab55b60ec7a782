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
	"github.com/joho/godotenv"

	"github.com/churnboard/churnboard/internal/analytics"
	"github.com/churnboard/churnboard/internal/analytics/export"
	analytichttp "github.com/churnboard/churnboard/internal/analytics/http"
	"github.com/churnboard/churnboard/internal/app"
	"github.com/churnboard/churnboard/internal/churnapi"
	"github.com/churnboard/churnboard/internal/dashboard"
	"github.com/churnboard/churnboard/internal/observability"
	"github.com/churnboard/churnboard/internal/platform/cache"
	"github.com/churnboard/churnboard/internal/shared"
	"github.com/churnboard/churnboard/internal/view"
	"github.com/churnboard/churnboard/jobs"
	"github.com/churnboard/churnboard/report"
)

const boardIdleTTL = 30 * time.Minute

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisOpts, err := cache.Options(cfg.RedisAddr)
	if err != nil {
		logger.Error("redis options", slog.Any("error", err))
		os.Exit(1)
	}
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "churnboard_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	apiClient := churnapi.NewClient(cfg.ChurnAPIBaseURL, cfg.ChurnAPITimeout,
		churnapi.WithLogger(logger.With(slog.String("component", "churnapi"))),
		churnapi.WithObserver(metrics),
	)

	analyticsCache := analytics.NewCache(redisClient, cfg.CacheTTL)
	if err := analyticsCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("subscribe cache invalidation", slog.Any("error", err))
	}
	analyticsService := analytics.NewService(apiClient, analyticsCache, cfg.SegmentDimensions)
	analyticsService.SetLoadTimeout(cfg.ChurnAPITimeout)

	flows := dashboard.New(analyticsService, dashboard.SVGCharts{}, logger.With(slog.String("component", "dashboard")))

	reportClient := report.NewClient(cfg.GotenbergURL)
	reportHandler := report.NewHandler(reportClient, logger)
	var pdfService analytichttp.PDFService
	if reportClient.Configured() {
		pdfService = &export.PDFExporter{Renderer: reportClient}
	}

	jobClient, err := jobs.NewClient(jobs.RedisOpts(redisOpts))
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(jobs.RedisOpts(redisOpts))
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	analyticsHandler := analytichttp.NewHandler(
		logger,
		analyticsService,
		flows,
		dashboard.NewBoards(boardIdleTTL),
		templates,
		csrfManager,
		pdfService,
		jobClient,
		cfg.DefaultSegment,
	)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AnalyticsHandler: analyticsHandler,
		ReportHandler:    reportHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("churn_api", apiClient.BaseURL()))
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
