package async

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/storefront/pkg/observability"
)

func TestPool_RunsTasks(t *testing.T) {
	pool := NewPool("test", 3, 16, time.Second, nil)

	var count atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(func(ctx context.Context) error {
			count.Add(1)
			return nil
		}))
	}

	require.NoError(t, pool.Shutdown(context.Background()))
	assert.Equal(t, int32(10), count.Load())
}

func TestPool_TaskHasOwnDeadline(t *testing.T) {
	pool := NewPool("test", 1, 1, time.Second, nil)

	var taskErr error
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		taskErr = ctx.Err()
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	}))

	require.NoError(t, pool.Shutdown(context.Background()))
	assert.NoError(t, taskErr)
}

func TestPool_LogsTaskErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.DebugLevel, &buf)
	pool := NewPool("audit-db", 1, 1, time.Second, logger)

	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		return errors.New("insert failed")
	}))
	require.NoError(t, pool.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "Background task failed")
	assert.Contains(t, buf.String(), "insert failed")
	assert.Contains(t, buf.String(), "audit-db")
}

func TestPool_RecoversPanics(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.DebugLevel, &buf)
	pool := NewPool("test", 1, 4, time.Second, logger)

	var after atomic.Bool
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		panic("boom")
	}))
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		after.Store(true)
		return nil
	}))
	require.NoError(t, pool.Shutdown(context.Background()))

	assert.True(t, after.Load(), "worker should survive a panicking task")
	assert.Contains(t, buf.String(), "PANIC recovered")
}

func TestPool_QueueFull(t *testing.T) {
	pool := NewPool("test", 1, 1, time.Second, nil)

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	require.NoError(t, pool.Submit(func(ctx context.Context) error { return nil }))
	assert.ErrorIs(t, pool.Submit(func(ctx context.Context) error { return nil }), ErrQueueFull)

	close(release)
	require.NoError(t, pool.Shutdown(context.Background()))
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewPool("test", 1, 1, time.Second, nil)
	require.NoError(t, pool.Shutdown(context.Background()))
	require.NoError(t, pool.Shutdown(context.Background()))

	assert.ErrorIs(t, pool.Submit(func(ctx context.Context) error { return nil }), ErrPoolClosed)
}

func TestPool_ShutdownTimeout(t *testing.T) {
	pool := NewPool("slow", 1, 1, time.Second, nil)

	release := make(chan struct{})
	defer close(release)
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := pool.Shutdown(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "slow")
}

func TestPool_ConcurrentSubmitAndShutdown(t *testing.T) {
	pool := NewPool("test", 2, 8, time.Second, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pool.Submit(func(ctx context.Context) error { return nil })
			if err != nil {
				assert.True(t, errors.Is(err, ErrPoolClosed) || errors.Is(err, ErrQueueFull))
			}
		}()
	}
	require.NoError(t, pool.Shutdown(context.Background()))
	wg.Wait()
}
