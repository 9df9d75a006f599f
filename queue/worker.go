// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package queue runs durable tasks on a bounded worker pool.
//
// Delivery is at least once. A task is leased from a storage.TaskQueue,
// executed under a hard deadline and then acknowledged, rescheduled with
// exponential backoff, or abandoned once its retry budget is spent. A
// task whose worker dies becomes due again when its lease expires, so
// handlers must be idempotent.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/storage"
)

// Handler executes one task. Returning nil acknowledges the task.
// Errors marked with Permanent are acknowledged without retry.
type Handler func(ctx context.Context, task *core.Task) error

// Hooks observe the retry decisions made for a task kind. Either may be nil.
type Hooks struct {
	// Retrying is called before a failed task is rescheduled.
	// task.Attempt already holds the number of the coming attempt.
	Retrying func(ctx context.Context, task *core.Task, err error)

	// Abandoned is called when a task fails with no retries left.
	Abandoned func(ctx context.Context, task *core.Task, err error)
}

type registration struct {
	handler Handler
	hooks   Hooks
}

// Config holds the worker's limits.
type Config struct {
	// PoolSize is the number of tasks executed concurrently.
	// Default: runtime.NumCPU() / 2, with a minimum of 1.
	PoolSize int

	// TaskTimeLimit is the hard deadline of one execution. Default: 300s.
	TaskTimeLimit time.Duration

	// LeaseDuration hides a leased task from other workers.
	// Default: TaskTimeLimit plus 30s.
	LeaseDuration time.Duration

	// RetryBase is the backoff before the first retry. It doubles per attempt.
	// Default: 60s.
	RetryBase time.Duration

	// MaxRetries is the number of retries after the first execution.
	// Default: 5. A negative value disables retries.
	MaxRetries int

	// PollInterval is how often Run looks for due tasks. Default: 1s.
	PollInterval time.Duration
}

// DefaultConfig returns the default worker limits.
func DefaultConfig() Config {
	size := runtime.NumCPU() / 2
	if size < 1 {
		size = 1
	}
	return Config{
		PoolSize:      size,
		TaskTimeLimit: 300 * time.Second,
		RetryBase:     60 * time.Second,
		MaxRetries:    5,
		PollInterval:  time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PoolSize <= 0 {
		c.PoolSize = d.PoolSize
	}
	if c.TaskTimeLimit <= 0 {
		c.TaskTimeLimit = d.TaskTimeLimit
	}
	if c.LeaseDuration <= 0 {
		c.LeaseDuration = c.TaskTimeLimit + 30*time.Second
	}
	if c.RetryBase <= 0 {
		c.RetryBase = d.RetryBase
	}
	switch {
	case c.MaxRetries == 0:
		c.MaxRetries = d.MaxRetries
	case c.MaxRetries < 0:
		c.MaxRetries = 0
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	return c
}

// Option configures a Worker.
type Option func(*Worker) error

// WithConfig sets the worker limits. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(w *Worker) error {
		w.cfg = cfg.withDefaults()
		return nil
	}
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) error {
		if now != nil {
			w.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) error {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger
		return nil
	}
}

// Worker leases due tasks and runs them on an ants pool.
type Worker struct {
	queue    storage.TaskQueue
	cfg      Config
	now      func() time.Time
	logger   *slog.Logger
	pool     *ants.Pool
	inflight sync.WaitGroup
	busy     atomic.Int32 // executions submitted and not yet finished

	mu       sync.RWMutex
	handlers map[core.TaskKind]registration
}

// NewWorker creates a worker over queue.
func NewWorker(queue storage.TaskQueue, opts ...Option) (*Worker, error) {
	if queue == nil {
		return nil, ErrTaskQueueRequired
	}

	w := &Worker{
		queue:    queue,
		cfg:      DefaultConfig().withDefaults(),
		now:      time.Now,
		logger:   slog.Default(),
		handlers: make(map[core.TaskKind]registration),
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	w.logger = w.logger.With("component", "task-worker")

	pool, err := ants.NewPool(w.cfg.PoolSize)
	if err != nil {
		return nil, err
	}
	w.pool = pool
	return w, nil
}

// Config returns the effective limits.
func (w *Worker) Config() Config {
	return w.cfg
}

// Register binds handler to tasks of kind, replacing any earlier binding.
func (w *Worker) Register(kind core.TaskKind, handler Handler, hooks Hooks) error {
	if handler == nil {
		return ErrHandlerRequired
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[kind] = registration{handler: handler, hooks: hooks}
	return nil
}

// Run polls for due tasks until ctx is cancelled. It then waits for the
// executions in flight, which keep their own deadlines, and releases the pool.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "pool_size", w.cfg.PoolSize, "task_time_limit", w.cfg.TaskTimeLimit)
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.dispatch(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("error leasing tasks", "err", err)
		}
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping, draining in-flight tasks")
			w.inflight.Wait()
			w.pool.Release()
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce leases the tasks due now, runs them and waits for them to finish.
// It returns the number of tasks executed.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	n, err := w.dispatch(ctx)
	w.inflight.Wait()
	return n, err
}

// Drain calls RunOnce until no task is due. Tasks scheduled in the future
// are left in the queue.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := w.RunOnce(ctx)
		total += n
		if err != nil || n == 0 {
			return total, err
		}
	}
}

// Health returns queue depths per task kind.
func (w *Worker) Health(ctx context.Context) (map[core.TaskKind]storage.QueueStats, error) {
	return w.queue.Stats(ctx, w.now().UTC())
}

// Release stops the pool without waiting for queued submissions.
func (w *Worker) Release() {
	w.pool.Release()
}

func (w *Worker) dispatch(ctx context.Context) (int, error) {
	// ants counts idle workers as running until they are purged, so
	// capacity is tracked per execution instead of via pool.Free.
	free := w.cfg.PoolSize - int(w.busy.Load())
	if free <= 0 {
		return 0, nil
	}
	tasks, err := w.queue.Lease(ctx, w.now().UTC(), w.cfg.LeaseDuration, free)
	if err != nil {
		return 0, err
	}

	// Executions outlive a cancelled Run so that draining finishes them.
	base := context.WithoutCancel(ctx)
	submitted := 0
	for _, task := range tasks {
		w.inflight.Add(1)
		w.busy.Add(1)
		err := w.pool.Submit(func() {
			defer w.inflight.Done()
			defer w.busy.Add(-1)
			w.execute(base, task)
		})
		if err != nil {
			w.busy.Add(-1)
			w.inflight.Done()
			// The lease expires and the task is delivered again.
			w.logger.Error("error submitting task", "task_id", task.ID, "err", err)
			continue
		}
		submitted++
	}
	return submitted, nil
}

func (w *Worker) execute(base context.Context, task *core.Task) {
	logger := w.logger.With("task_id", task.ID, "kind", task.Kind, "document_id", task.DocumentID, "attempt", task.Attempt)

	w.mu.RLock()
	reg, ok := w.handlers[task.Kind]
	w.mu.RUnlock()
	if !ok {
		logger.Error("dropping task", "err", ErrNoHandler)
		w.ack(base, task, logger)
		return
	}

	ctx, cancel := context.WithTimeout(base, w.cfg.TaskTimeLimit)
	err := safeCall(ctx, reg.handler, task)
	cancel()

	switch {
	case err == nil:
		logger.Debug("task completed")
		w.ack(base, task, logger)
	case IsPermanent(err):
		logger.Warn("task failed permanently", "err", err)
		w.ack(base, task, logger)
	case task.Attempt >= w.cfg.MaxRetries:
		logger.Error("task abandoned after exhausting retries", "max_retries", w.cfg.MaxRetries, "err", err)
		task.LastError = err.Error()
		if reg.hooks.Abandoned != nil {
			reg.hooks.Abandoned(base, task, err)
		}
		w.ack(base, task, logger)
	default:
		delay := w.cfg.RetryBase << task.Attempt
		task.Attempt++
		task.LastError = err.Error()
		task.RunAt = w.now().UTC().Add(delay)
		logger.Warn("task failed, scheduling retry", "next_attempt", task.Attempt, "delay", delay, "err", err)
		if reg.hooks.Retrying != nil {
			reg.hooks.Retrying(base, task, err)
		}
		if err := w.queue.Reschedule(base, task); err != nil {
			logger.Error("error rescheduling task", "err", err)
		}
	}
}

func (w *Worker) ack(ctx context.Context, task *core.Task, logger *slog.Logger) {
	if err := w.queue.Ack(ctx, task.ID); err != nil {
		logger.Error("error acknowledging task", "err", err)
	}
}

// safeCall turns a handler panic into an ordinary, retryable error.
// A nil return is trusted even past the deadline, since the handler's
// writes are already committed.
func safeCall(ctx context.Context, h Handler, task *core.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task handler panicked: %v", r)
		}
	}()
	return h(ctx, task)
}
