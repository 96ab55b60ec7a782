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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/churnboard/churnboard/internal/analytics"
	"github.com/churnboard/churnboard/internal/app"
	"github.com/churnboard/churnboard/internal/churnapi"
	jobmetrics "github.com/churnboard/churnboard/internal/jobs"
	"github.com/churnboard/churnboard/internal/platform/cache"
	"github.com/churnboard/churnboard/jobs"
)

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

	apiClient := churnapi.NewClient(cfg.ChurnAPIBaseURL, cfg.ChurnAPITimeout,
		churnapi.WithLogger(logger.With(slog.String("component", "churnapi"))),
	)
	analyticsService := analytics.NewService(apiClient, analytics.NewCache(redisClient, cfg.CacheTTL), cfg.SegmentDimensions)
	analyticsService.SetLoadTimeout(cfg.ChurnAPITimeout)

	warmupJob := jobs.NewCacheWarmupJob(analyticsService, logger, jobmetrics.NewMetrics(nil))
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:  jobs.RedisOpts(redisOpts),
		Logger:     logger,
		Warmup:     warmupJob,
		WarmupCron: cfg.WarmupCron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.WorkerMetricsAddr,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("starting worker", slog.String("warmup_cron", cfg.WarmupCron), slog.String("metrics_addr", cfg.WorkerMetricsAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
