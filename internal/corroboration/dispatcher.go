package corroboration

import (
	"context"

	"github.com/shDupont/merculy/internal/models"
)

// Dispatcher starts corroboration for a persisted article without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, a models.Article) error
}

// LocalDispatcher runs the worker in-process on an Executor.
type LocalDispatcher struct {
	exec   *Executor
	worker *Worker
}

// NewLocalDispatcher builds a dispatcher backed by exec.
func NewLocalDispatcher(exec *Executor, worker *Worker) *LocalDispatcher {
	return &LocalDispatcher{exec: exec, worker: worker}
}

// Dispatch submits the article; the request context is not propagated.
func (d *LocalDispatcher) Dispatch(_ context.Context, a models.Article) error {
	return d.exec.Submit(func(ctx context.Context) {
		d.worker.Run(ctx, a)
	})
}
