package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/storefront/pkg/async"
)

// AsyncLogger hands events to a worker pool and writes them to next in the
// background. Log only fails when the pool refuses the event.
type AsyncLogger struct {
	next         Logger
	pool         *async.Pool
	closeTimeout time.Duration
}

// NewAsyncLogger wraps next. Close drains pool for at most closeTimeout
// before closing next.
func NewAsyncLogger(next Logger, pool *async.Pool, closeTimeout time.Duration) (*AsyncLogger, error) {
	if next == nil {
		return nil, errors.New("audit sink is required")
	}
	if pool == nil {
		return nil, errors.New("worker pool is required")
	}
	if closeTimeout <= 0 {
		closeTimeout = 10 * time.Second
	}
	return &AsyncLogger{next: next, pool: pool, closeTimeout: closeTimeout}, nil
}

// Log queues a deep copy of event, so the caller may reuse it
func (l *AsyncLogger) Log(ctx context.Context, event *AuditEvent) error {
	copied := event.Clone()
	return l.pool.Submit(func(ctx context.Context) error {
		return l.next.Log(ctx, copied)
	})
}

// Close waits for queued events, then closes the wrapped sink. If the pool
// does not drain within closeTimeout, events still queued are dropped and
// the wrapped sink is left open, since workers may still be writing to it.
func (l *AsyncLogger) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), l.closeTimeout)
	defer cancel()

	if err := l.pool.Shutdown(ctx); err != nil {
		return fmt.Errorf("audit events dropped: %w", err)
	}
	return l.next.Close()
}
