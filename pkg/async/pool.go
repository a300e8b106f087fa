package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/platinummonkey/storefront/pkg/observability"
)

var (
	// ErrPoolClosed is returned by Submit after Shutdown has started
	ErrPoolClosed = errors.New("worker pool closed")

	// ErrQueueFull is returned by Submit when every queue slot is taken
	ErrQueueFull = errors.New("worker pool queue full")
)

// Task is a unit of background work
type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed number of workers
type Pool struct {
	name    string
	timeout time.Duration
	logger  *observability.Logger

	mu     sync.RWMutex
	closed bool
	tasks  chan Task
	done   chan struct{}
}

// NewPool starts workers goroutines reading from a queue of queueSize
// tasks. Each task runs with its own timeout.
func NewPool(name string, workers, queueSize int, timeout time.Duration, logger *observability.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	p := &Pool{
		name:    name,
		timeout: timeout,
		logger:  logger.WithField("pool", name),
		tasks:   make(chan Task, queueSize),
		done:    make(chan struct{}),
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(id)
		}(i)
	}
	go func() {
		wg.Wait()
		close(p.done)
	}()

	return p
}

// Submit queues task without blocking
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks and waits for the queue to drain or ctx
// to end, whichever comes first. It is safe to call more than once.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s pool shutdown: %w", p.name, ctx.Err())
	}
}

func (p *Pool) worker(id int) {
	for task := range p.tasks {
		p.execute(id, task)
	}
}

func (p *Pool) execute(id int, task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	defer observability.RecoverPanic(p.logger.WithField("worker", id), p.name)

	if err := task(ctx); err != nil {
		p.logger.WithError(err).Warn("Background task failed")
	}
}
