package tx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "landadmin/pkg/domain-errors"
)

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *counter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func (c *counter) Snapshot() func() {
	c.mu.Lock()
	saved := c.n
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.n = saved
		c.mu.Unlock()
	}
}

func TestMemoryRunner_CommitsOnSuccess(t *testing.T) {
	c := &counter{}
	r := NewMemoryRunner(c)

	require.NoError(t, r.RunInTx(context.Background(), func(ctx context.Context) error {
		c.inc()
		c.inc()
		return nil
	}))
	assert.Equal(t, 2, c.value())
}

func TestMemoryRunner_RestoresEveryParticipantOnError(t *testing.T) {
	a, b := &counter{n: 1}, &counter{n: 10}
	r := NewMemoryRunner(a, b)
	boom := errors.New("boom")

	err := r.RunInTx(context.Background(), func(ctx context.Context) error {
		a.inc()
		b.inc()
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, a.value())
	assert.Equal(t, 10, b.value())
}

func TestMemoryRunner_CancelledContext(t *testing.T) {
	r := NewMemoryRunner()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := r.RunInTx(ctx, func(context.Context) error { called = true; return nil })
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	assert.False(t, called)
}

func TestMemoryRunner_AppliesDefaultDeadline(t *testing.T) {
	r := NewMemoryRunner()
	require.NoError(t, r.RunInTx(context.Background(), func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(DefaultTimeout), deadline, time.Second)
		return nil
	}))
}

func TestMemoryRunner_Serializes(t *testing.T) {
	c := &counter{}
	r := NewMemoryRunner(c)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.RunInTx(context.Background(), func(context.Context) error {
				c.inc()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, c.value())
}
