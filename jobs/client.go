package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client enqueues warm-ups on behalf of the dashboard.
type Client struct {
	client *asynq.Client
}

// NewClient constructs a Client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	if redisOpts.Addr == "" {
		return nil, errors.New("jobs: redis address required")
	}
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// EnqueueCacheWarmup queues an immediate warm-up. A warm-up already queued
// within the uniqueness window counts as success.
func (c *Client) EnqueueCacheWarmup(ctx context.Context) error {
	task, err := NewCacheWarmupTask(CacheWarmupPayload{Reason: "manual", Invalidate: true})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, WarmupOptions()...)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// WarmupOptions are the enqueue options shared by manual and cron warm-ups.
func WarmupOptions() []asynq.Option {
	return []asynq.Option{
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(3),
		asynq.Timeout(warmupTimeout),
		asynq.Unique(time.Minute),
	}
}

// RedisOpts converts go-redis options into the asynq connection config.
func RedisOpts(opts *redis.Options) asynq.RedisClientOpt {
	if opts == nil {
		return asynq.RedisClientOpt{}
	}
	return asynq.RedisClientOpt{
		Network:   opts.Network,
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}
}
