// Package dispatch runs fire-and-forget background tasks. Each submission
// gets its own goroutine and an awaitable Task handle; callers that only
// need fire-and-forget simply drop the handle.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shineum/mail-relay/internal/metrics"
)

// ErrClosed is returned by Submit once the dispatcher stops accepting work.
var ErrClosed = errors.New("dispatch: dispatcher is closed")

// Func is a unit of background work.
type Func func(ctx context.Context) error

// Task is the handle for one submitted Func.
type Task struct {
	ID   string
	Name string

	done chan struct{}
	err  error
}

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx is done, returning the task's
// error or ctx.Err().
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type taskIDKey struct{}

// TaskID returns the id of the task running with ctx, if any.
func TaskID(ctx context.Context) string {
	id, _ := ctx.Value(taskIDKey{}).(string)
	return id
}

// Dispatcher tracks in-flight tasks so shutdown can drain them.
type Dispatcher struct {
	logger *slog.Logger
	base   context.Context

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a Dispatcher. Tasks run on a context detached from any
// request; they are bounded only by their own timeouts.
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger: logger,
		base:   context.Background(),
	}
}

// Submit starts fn in the background and returns immediately.
func (d *Dispatcher) Submit(name string, fn Func) (*Task, error) {
	if fn == nil {
		return nil, fmt.Errorf("dispatch: nil task %q", name)
	}

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return nil, ErrClosed
	}
	d.wg.Add(1)
	d.mu.RUnlock()

	task := &Task{
		ID:   uuid.NewString(),
		Name: name,
		done: make(chan struct{}),
	}

	go d.run(task, fn)

	return task, nil
}

func (d *Dispatcher) run(task *Task, fn Func) {
	defer d.wg.Done()
	defer close(task.done)

	metrics.TasksInFlight.Inc()
	defer metrics.TasksInFlight.Dec()

	ctx := context.WithValue(d.base, taskIDKey{}, task.ID)
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			task.err = fmt.Errorf("dispatch: task %s panicked: %v", task.Name, r)
			d.logger.Error("background_task_panicked",
				"task_id", task.ID,
				"task", task.Name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	task.err = fn(ctx)
	if task.err != nil {
		// The task itself reports its failure; this is only a trace.
		d.logger.Debug("background_task_failed",
			"task_id", task.ID,
			"task", task.Name,
			"duration_ms", time.Since(started).Milliseconds(),
			"error", task.err,
		)
		return
	}
	d.logger.Debug("background_task_completed",
		"task_id", task.ID,
		"task", task.Name,
		"duration_ms", time.Since(started).Milliseconds(),
	)
}

// Close stops accepting new tasks. Running tasks are unaffected.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

// Shutdown closes the dispatcher and waits for in-flight tasks until ctx is
// done. Tasks still running at that point are abandoned, not cancelled.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.Close()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("background_tasks_drained")
		return nil
	case <-ctx.Done():
		d.logger.Warn("background_tasks_abandoned", "error", ctx.Err())
		return ctx.Err()
	}
}
