package preload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	platformredis "landadmin/internal/platform/redis"
)

// LockKey serializes preloads across workers.
const LockKey = "lock:land_transfer:preload"

// Preloader warms the transfer cache.
type Preloader interface {
	Preload(ctx context.Context, limit int) (int, error)
}

// Locker runs fn while holding a distributed lock.
type Locker interface {
	WithLock(ctx context.Context, key string, opts platformredis.LockOptions, fn func(context.Context) error) error
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	preloader Preloader
	locker    Locker
	logger    *slog.Logger
}

// NewProcessor constructs a worker processor. A nil locker runs preloads
// without coordination.
func NewProcessor(preloader Preloader, locker Locker, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{preloader: preloader, locker: locker, logger: logger}
}

// Handler registers the preload task handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskType, p.HandlePreload)
	return mux
}

// HandlePreload decodes the payload and runs one preload under the lock.
// A preload already in progress elsewhere makes this one a no-op.
func (p *Processor) HandlePreload(ctx context.Context, task *asynq.Task) error {
	var payload Payload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Limit < 1 {
		return fmt.Errorf("invalid preload limit %d: %w", payload.Limit, asynq.SkipRetry)
	}

	run := func(ctx context.Context) error {
		n, err := p.preloader.Preload(ctx, payload.Limit)
		if err != nil {
			return err
		}
		p.logger.InfoContext(ctx, "preload task finished", "count", n, "limit", payload.Limit)
		return nil
	}
	if p.locker == nil {
		return run(ctx)
	}

	err := p.locker.WithLock(ctx, LockKey, platformredis.DefaultLockOptions(), run)
	if errors.Is(err, platformredis.ErrLockHeld) {
		p.logger.InfoContext(ctx, "preload already running, skipping")
		return nil
	}
	if err != nil {
		p.logger.ErrorContext(ctx, "preload task failed", "error", err)
	}
	return err
}
