// Package preload schedules and runs cache warm-up jobs on the asynq queue.
package preload

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"landadmin/internal/platform/config"
)

// TaskType is the asynq task name for a cache preload.
const TaskType = "cache:preload"

const (
	maxRetry    = 3
	taskTimeout = 2 * time.Minute
)

// Payload is serialized into the task so the worker knows how many recent
// transfers to warm.
type Payload struct {
	Limit int `json:"limit"`
}

// NewTask builds the preload task for limit.
func NewTask(limit int) (*asynq.Task, error) {
	data, err := json.Marshal(Payload{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TaskType, data), nil
}

// RedisOpt maps the queue configuration onto asynq's connection options.
func RedisOpt(cfg config.Queue) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// Client enqueues preload tasks.
type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.Queue) *Client {
	return &Client{client: asynq.NewClient(RedisOpt(cfg))}
}

// EnqueuePreload schedules a preload of the limit most recent transfers.
func (c *Client) EnqueuePreload(ctx context.Context, limit int) error {
	task, err := NewTask(limit)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task, asynq.MaxRetry(maxRetry), asynq.Timeout(taskTimeout)); err != nil {
		return fmt.Errorf("enqueue preload task: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
