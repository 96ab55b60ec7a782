package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/churnboard/churnboard/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const warmupTimeout = 2 * time.Minute

// CacheRefresher is the analytics side of a warm-up run.
type CacheRefresher interface {
	Refresh(ctx context.Context) (int, error)
	Invalidate(ctx context.Context) error
}

// CacheWarmupJob reloads the churn summary and segment breakdowns so page
// loads hit a warm cache.
type CacheWarmupJob struct {
	Analytics CacheRefresher
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewCacheWarmupJob wires dependencies for the warm-up handler.
func NewCacheWarmupJob(analytics CacheRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *CacheWarmupJob {
	return &CacheWarmupJob{
		Analytics: analytics,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskCacheWarmup tasks.
func (j *CacheWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload CacheWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	return j.Run(ctx, payload)
}

// Run performs one warm-up outside of the queue.
func (j *CacheWarmupJob) Run(ctx context.Context, payload CacheWarmupPayload) (resultErr error) {
	if j == nil || j.Analytics == nil {
		return errors.New("cache warmup: handler not configured")
	}

	tracker := j.metrics().Track(TaskCacheWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("reason", payload.Reason))
	start := j.now()
	logger.Info("starting cache warmup")

	ctx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()

	if payload.Invalidate {
		if err := j.Analytics.Invalidate(ctx); err != nil {
			logger.Error("invalidate cache", slog.Any("error", err))
			return err
		}
	}

	warmed, err := j.Analytics.Refresh(ctx)
	j.metrics().AddWarmed(warmed)
	if err != nil {
		logger.Error("refresh cache", slog.Int("warmed", warmed), slog.Any("error", err))
		return err
	}

	logger.Info("completed cache warmup", slog.Int("entries", warmed), slog.Duration("duration", j.now().Sub(start)))
	return nil
}

func (j *CacheWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("task", TaskCacheWarmup))
	}
	return slog.Default().With(slog.String("task", TaskCacheWarmup))
}

func (j *CacheWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CacheWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
