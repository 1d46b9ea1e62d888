package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
)

// ErrLockHeld is returned by WithLock when another holder owns the key.
var ErrLockHeld = errors.New("lock is held by another process")

// LockOptions configures a single WithLock call.
type LockOptions struct {
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

// DefaultLockOptions suits short jobs such as cache preloading: one attempt,
// expiry long enough to cover the job.
func DefaultLockOptions() LockOptions {
	return LockOptions{
		Expiry:     2 * time.Minute,
		Tries:      1,
		RetryDelay: 100 * time.Millisecond,
	}
}

// Locker hands out Redlock mutexes backed by the cache Redis.
type Locker struct {
	rs *redsync.Redsync
}

// NewLocker builds a Locker on c.
func NewLocker(c *Client) *Locker {
	return &Locker{rs: redsync.New(goredis.NewPool(c.Client))}
}

// WithLock runs fn while holding key. It returns ErrLockHeld without running
// fn when the lock cannot be acquired.
func (l *Locker) WithLock(ctx context.Context, key string, opts LockOptions, fn func(context.Context) error) error {
	if key == "" {
		return errors.New("lock key cannot be empty")
	}
	mutex := l.rs.NewMutex(key,
		redsync.WithExpiry(opts.Expiry),
		redsync.WithTries(opts.Tries),
		redsync.WithRetryDelay(opts.RetryDelay),
	)
	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
			return ErrLockHeld
		}
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	defer func() {
		// Released with a fresh context so a cancelled job still frees the key.
		_, _ = mutex.UnlockContext(context.WithoutCancel(ctx))
	}()
	return fn(ctx)
}
