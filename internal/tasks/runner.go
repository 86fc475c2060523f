// Package tasks runs fire-and-forget work off the request path while keeping
// it observable: callers may await a task, register a failure callback, and
// every failure is logged and counted.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/metrics"
)

// ErrShuttingDown is returned by Go after Shutdown has been called.
var ErrShuttingDown = errors.New("task runner is shutting down")

// FailureFunc is called once when a task fails.
type FailureFunc func(name string, err error)

// Task is a handle to submitted work.
type Task struct {
	name string
	done chan struct{}
	err  error
}

// Name returns the task name used in logs and metrics.
func (t *Task) Name() string { return t.name }

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Option configures a single submission.
type Option func(*taskOptions)

type taskOptions struct {
	timeout   time.Duration
	onFailure []FailureFunc
}

// WithTimeout overrides the runner's default timeout for one task.
func WithTimeout(d time.Duration) Option {
	return func(o *taskOptions) { o.timeout = d }
}

// WithFailureCallback registers fn to run if the task fails.
func WithFailureCallback(fn FailureFunc) Option {
	return func(o *taskOptions) { o.onFailure = append(o.onFailure, fn) }
}

// Runner starts tasks and tracks them until Shutdown.
type Runner struct {
	logger         *zap.Logger
	defaultTimeout time.Duration

	mu       sync.Mutex
	closed   bool
	inFlight sync.WaitGroup
}

// NewRunner creates a runner. A non-positive timeout means 2 minutes.
func NewRunner(logger *zap.Logger, defaultTimeout time.Duration) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultTimeout <= 0 {
		defaultTimeout = 2 * time.Minute
	}
	return &Runner{logger: logger, defaultTimeout: defaultTimeout}
}

// Go runs fn on its own goroutine. The task context keeps the values of
// parent but not its cancellation, so work outlives the request that started it.
func (r *Runner) Go(parent context.Context, name string, fn func(ctx context.Context) error, opts ...Option) *Task {
	o := taskOptions{timeout: r.defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	task := &Task{name: name, done: make(chan struct{})}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		task.err = ErrShuttingDown
		close(task.done)
		r.fail(task, o.onFailure)
		return task
	}
	r.inFlight.Add(1)
	r.mu.Unlock()

	metrics.BackgroundTasksInFlight.Inc()
	go func() {
		defer r.inFlight.Done()
		defer metrics.BackgroundTasksInFlight.Dec()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), o.timeout)
		defer cancel()

		start := time.Now()
		task.err = r.run(ctx, fn)
		close(task.done)

		if task.err != nil {
			r.fail(task, o.onFailure)
			return
		}
		r.logger.Debug("background_task_completed",
			zap.String("task", name),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	return task
}

func (r *Runner) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()
	return fn(ctx)
}

func (r *Runner) fail(task *Task, callbacks []FailureFunc) {
	metrics.BackgroundTaskFailures.WithLabelValues(task.name).Inc()
	r.logger.Error("background_task_failed",
		zap.String("task", task.name),
		zap.Error(task.err),
	)
	for _, cb := range callbacks {
		cb(task.name, task.err)
	}
}

// Shutdown stops accepting tasks and waits for running ones until ctx ends.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background tasks: %w", ctx.Err())
	}
}
