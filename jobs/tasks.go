package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCacheWarmup refreshes every cached analytics payload.
	TaskCacheWarmup = "analytics:cache_warmup"
)

// CacheWarmupPayload describes a warm-up request.
type CacheWarmupPayload struct {
	Reason     string `json:"reason,omitempty"`
	Invalidate bool   `json:"invalidate,omitempty"`
}

// NewCacheWarmupTask constructs an Asynq task.
func NewCacheWarmupTask(payload CacheWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheWarmup, data), nil
}
