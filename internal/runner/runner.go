// Package runner defines the boundary to whatever executes the task
// list, plus a local worker-pool implementation for running inside a
// single PBS allocation. Distributed runners stay external; they only
// need to satisfy TaskRunner.
package runner

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/example/stackctl/internal/stacking"
	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
)

// TaskFunc processes a single task.
type TaskFunc func(ctx context.Context, task stacking.Task) error

// TaskRunner consumes a task list. Stop must be safe to call on every
// exit path, including after Run returns an error.
type TaskRunner interface {
	Run(ctx context.Context, tasks []stacking.Task, fn TaskFunc) error
	Stop() error
}

// Local fans the task list across an in-process worker pool.
type Local struct {
	Workers int
	Log     logr.Logger

	stopOnce sync.Once
}

// NewLocal returns a Local runner; workers <= 0 means one worker per
// CPU in the allocation.
func NewLocal(workers int, log logr.Logger) *Local {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Local{Workers: workers, Log: log}
}

// Run processes every task, failing fast on the first error.
func (l *Local) Run(ctx context.Context, tasks []stacking.Task, fn TaskFunc) error {
	if fn == nil {
		return fmt.Errorf("task func is nil")
	}
	l.Log.Info("running tasks", "count", len(tasks), "workers", l.Workers)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.Workers)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, task); err != nil {
				l.Log.Error(err, "task failed", "cell", task.Cell.String())
				return err
			}
			l.Log.V(1).Info("task complete", "cell", task.Cell.String())
			return nil
		})
	}
	return g.Wait()
}

// Stop is idempotent; the local pool holds no external resources, so
// it only records the shutdown.
func (l *Local) Stop() error {
	l.stopOnce.Do(func() {
		l.Log.Info("runner stopped")
	})
	return nil
}
