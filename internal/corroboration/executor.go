package corroboration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrShuttingDown is returned by submissions made after Shutdown started.
var ErrShuttingDown = errors.New("executor shutting down")

// Executor runs detached tasks on a bounded number of goroutines. Submitting never blocks:
// tasks beyond the limit wait for a free slot in their own goroutine.
type Executor struct {
	slots   chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	pending atomic.Int64
	log     *slog.Logger
}

// NewExecutor creates an executor running at most workers tasks at once.
func NewExecutor(workers int, logger *slog.Logger) *Executor {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{
		slots: make(chan struct{}, workers),
		log:   logger.With("component", "executor"),
	}
}

// Submit schedules task and returns immediately. The task gets a context that is not tied
// to any request and is never cancelled.
func (e *Executor) Submit(task func(ctx context.Context)) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrShuttingDown
	}
	e.wg.Add(1)
	e.mu.Unlock()

	e.pending.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.pending.Add(-1)

		e.slots <- struct{}{}
		defer func() { <-e.slots }()

		defer func() {
			if r := recover(); r != nil {
				e.log.Error("task panicked", slog.Any("panic", r))
			}
		}()

		task(context.Background())
	}()
	return nil
}

// Pending returns the number of submitted tasks that have not finished.
func (e *Executor) Pending() int64 {
	return e.pending.Load()
}

// Shutdown stops accepting tasks and waits for submitted ones until ctx is done.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		e.log.Warn("shutdown timed out", slog.Int64("pending", e.Pending()))
		return ctx.Err()
	}
}
