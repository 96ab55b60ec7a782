package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hibiken/asynq"

	"github.com/churnboard/churnboard/jobs"
)

// triggers builds the task churnctl enqueues for each supported task type.
var triggers = map[string]func() (*asynq.Task, error){
	jobs.TaskCacheWarmup: func() (*asynq.Task, error) {
		return jobs.NewCacheWarmupTask(jobs.CacheWarmupPayload{Reason: "churnctl", Invalidate: true})
	},
}

// errAlreadyQueued reports a trigger absorbed by the task's uniqueness window.
var errAlreadyQueued = errors.New("an identical task is already queued")

// JobsCLI enqueues and inspects asynq tasks from the command line.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI connects to the queue at opts.
func NewJobsCLI(opts asynq.RedisClientOpt) *JobsCLI {
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases both connections.
func (c *JobsCLI) Close() error {
	return errors.Join(c.inspector.Close(), c.client.Close())
}

// Trigger enqueues task with its default churnctl payload.
func (c *JobsCLI) Trigger(ctx context.Context, task string) (*asynq.TaskInfo, error) {
	build, ok := triggers[task]
	if !ok {
		return nil, fmt.Errorf("unsupported job %q (supported: %v)", task, supportedTasks())
	}
	t, err := build()
	if err != nil {
		return nil, err
	}
	info, err := c.client.EnqueueContext(ctx, t, jobs.WarmupOptions()...)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil, errAlreadyQueued
	}
	return info, err
}

// Stats reports the default queue counters.
func (c *JobsCLI) Stats() (jobs.QueueStatus, error) {
	return jobs.ReadQueueStatus(c.inspector, jobs.QueueDefault)
}

func supportedTasks() []string {
	names := make([]string, 0, len(triggers))
	for name := range triggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
