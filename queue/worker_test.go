package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupWorker(t *testing.T, cfg Config) (*Worker, *badger.TaskQueue, *fakeClock) {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 2
	}

	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	w, err := NewWorker(store.Queue, WithConfig(cfg), WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(w.Release)
	return w, store.Queue, clock
}

func enqueue(t *testing.T, q *badger.TaskQueue, kind core.TaskKind, runAt time.Time) *core.Task {
	t.Helper()
	task := &core.Task{Kind: kind, DocumentID: "doc-1", RunAt: runAt}
	require.NoError(t, q.Enqueue(context.Background(), task))
	return task
}

func TestNewWorker_RequiresQueue(t *testing.T) {
	_, err := NewWorker(nil)
	assert.ErrorIs(t, err, ErrTaskQueueRequired)
}

func TestRegister_RequiresHandler(t *testing.T) {
	w, _, _ := setupWorker(t, Config{})
	assert.ErrorIs(t, w.Register(core.TaskProcessDocument, nil, Hooks{}), ErrHandlerRequired)
}

func TestConfig_Defaults(t *testing.T) {
	w, _, _ := setupWorker(t, Config{PoolSize: 2})
	cfg := w.Config()
	assert.Equal(t, 2, cfg.PoolSize)
	assert.Equal(t, 300*time.Second, cfg.TaskTimeLimit)
	assert.Equal(t, 330*time.Second, cfg.LeaseDuration)
	assert.Equal(t, 60*time.Second, cfg.RetryBase)
	assert.Equal(t, 5, cfg.MaxRetries)
}

func TestRunOnce_SuccessAcks(t *testing.T) {
	w, q, clock := setupWorker(t, Config{PoolSize: 2})
	var calls atomic.Int32
	require.NoError(t, w.Register(core.TaskProcessDocument, func(ctx context.Context, task *core.Task) error {
		calls.Add(1)
		return nil
	}, Hooks{}))

	enqueue(t, q, core.TaskProcessDocument, clock.Now())
	enqueue(t, q, core.TaskProcessDocument, clock.Now())

	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int32(2), calls.Load())

	tasks, err := q.Tasks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestRunOnce_FutureTaskWaits(t *testing.T) {
	w, q, clock := setupWorker(t, Config{})
	require.NoError(t, w.Register(core.TaskRetryEmbeddings, func(context.Context, *core.Task) error { return nil }, Hooks{}))

	enqueue(t, q, core.TaskRetryEmbeddings, clock.Now().Add(time.Minute))

	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	health, err := w.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, health[core.TaskRetryEmbeddings].Scheduled)

	clock.Advance(time.Minute)
	n, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunOnce_FailureBacksOffExponentially(t *testing.T) {
	w, q, clock := setupWorker(t, Config{MaxRetries: 5})

	var retries []int
	require.NoError(t, w.Register(core.TaskProcessDocument, func(context.Context, *core.Task) error {
		return errors.New("database unavailable")
	}, Hooks{
		Retrying: func(_ context.Context, task *core.Task, err error) {
			retries = append(retries, task.Attempt)
		},
	}))

	start := clock.Now()
	enqueue(t, q, core.TaskProcessDocument, start)

	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	tasks, err := q.Tasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 1, tasks[0].Attempt)
	assert.Equal(t, "database unavailable", tasks[0].LastError)
	assert.Equal(t, start.Add(60*time.Second), tasks[0].RunAt)

	clock.Advance(60 * time.Second)
	_, err = w.RunOnce(context.Background())
	require.NoError(t, err)

	tasks, err = q.Tasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 2, tasks[0].Attempt)
	assert.Equal(t, clock.Now().Add(120*time.Second), tasks[0].RunAt)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestRunOnce_AbandonsAfterMaxRetries(t *testing.T) {
	w, q, clock := setupWorker(t, Config{MaxRetries: 2, RetryBase: time.Second})

	var calls atomic.Int32
	var abandoned *core.Task
	require.NoError(t, w.Register(core.TaskProcessDocument, func(context.Context, *core.Task) error {
		calls.Add(1)
		return errors.New("boom")
	}, Hooks{
		Abandoned: func(_ context.Context, task *core.Task, err error) {
			abandoned = task
		},
	}))

	enqueue(t, q, core.TaskProcessDocument, clock.Now())
	for range 3 {
		_, err := w.RunOnce(context.Background())
		require.NoError(t, err)
		clock.Advance(time.Hour)
	}

	assert.Equal(t, int32(3), calls.Load())
	require.NotNil(t, abandoned)
	assert.Equal(t, 2, abandoned.Attempt)
	assert.Equal(t, "boom", abandoned.LastError)

	tasks, err := q.Tasks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestRunOnce_PermanentErrorNotRetried(t *testing.T) {
	w, q, clock := setupWorker(t, Config{})
	var retried bool
	require.NoError(t, w.Register(core.TaskProcessDocument, func(context.Context, *core.Task) error {
		return Permanent(errors.New("unsupported file type"))
	}, Hooks{
		Retrying: func(context.Context, *core.Task, error) { retried = true },
	}))

	enqueue(t, q, core.TaskProcessDocument, clock.Now())
	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.False(t, retried)
	tasks, err := q.Tasks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestRunOnce_DeadlineIsFailure(t *testing.T) {
	w, q, clock := setupWorker(t, Config{TaskTimeLimit: 20 * time.Millisecond})
	require.NoError(t, w.Register(core.TaskProcessDocument, func(ctx context.Context, _ *core.Task) error {
		<-ctx.Done()
		return ctx.Err()
	}, Hooks{}))

	enqueue(t, q, core.TaskProcessDocument, clock.Now())
	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	tasks, err := q.Tasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 1, tasks[0].Attempt)
	assert.Contains(t, tasks[0].LastError, "deadline exceeded")
}

func TestRunOnce_LateSuccessIsAcked(t *testing.T) {
	w, q, clock := setupWorker(t, Config{TaskTimeLimit: 20 * time.Millisecond})
	var calls, retried atomic.Int32
	require.NoError(t, w.Register(core.TaskProcessDocument, func(ctx context.Context, task *core.Task) error {
		calls.Add(1)
		<-ctx.Done()
		// The follow-up is written after the deadline with a fresh context.
		return q.Enqueue(context.WithoutCancel(ctx), &core.Task{
			Kind: core.TaskRetryEmbeddings, DocumentID: task.DocumentID, RunAt: clock.Now().Add(time.Hour),
		})
	}, Hooks{
		Retrying: func(context.Context, *core.Task, error) { retried.Add(1) },
	}))

	enqueue(t, q, core.TaskProcessDocument, clock.Now())
	n, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(1), calls.Load())
	assert.Zero(t, retried.Load())

	tasks, err := q.Tasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, core.TaskRetryEmbeddings, tasks[0].Kind)
}

func TestRunOnce_PanicIsRetried(t *testing.T) {
	w, q, clock := setupWorker(t, Config{})
	require.NoError(t, w.Register(core.TaskProcessDocument, func(context.Context, *core.Task) error {
		panic("nil map")
	}, Hooks{}))

	enqueue(t, q, core.TaskProcessDocument, clock.Now())
	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	tasks, err := q.Tasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Contains(t, tasks[0].LastError, "panicked")
}

func TestRunOnce_UnknownKindDropped(t *testing.T) {
	w, q, clock := setupWorker(t, Config{})
	enqueue(t, q, core.TaskRetryEmbeddings, clock.Now())

	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tasks, err := q.Tasks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestDrain_RunsChainedTasks(t *testing.T) {
	w, q, clock := setupWorker(t, Config{})
	var processed atomic.Int32
	require.NoError(t, w.Register(core.TaskProcessDocument, func(ctx context.Context, task *core.Task) error {
		processed.Add(1)
		return q.Enqueue(ctx, &core.Task{Kind: core.TaskRetryEmbeddings, DocumentID: task.DocumentID, RunAt: clock.Now()})
	}, Hooks{}))
	require.NoError(t, w.Register(core.TaskRetryEmbeddings, func(context.Context, *core.Task) error {
		processed.Add(1)
		return nil
	}, Hooks{}))

	enqueue(t, q, core.TaskProcessDocument, clock.Now())
	n, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int32(2), processed.Load())
}

func TestDrain_MoreTasksThanPool(t *testing.T) {
	w, q, clock := setupWorker(t, Config{PoolSize: 2})
	var calls atomic.Int32
	require.NoError(t, w.Register(core.TaskProcessDocument, func(context.Context, *core.Task) error {
		calls.Add(1)
		return nil
	}, Hooks{}))

	for range 5 {
		enqueue(t, q, core.TaskProcessDocument, clock.Now())
	}
	n, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, int32(5), calls.Load())

	health, err := w.Health(context.Background())
	require.NoError(t, err)
	assert.Zero(t, health[core.TaskProcessDocument].Due)
}

func TestRun_StopsOnCancel(t *testing.T) {
	w, q, clock := setupWorker(t, Config{PollInterval: 5 * time.Millisecond})
	done := make(chan struct{})
	require.NoError(t, w.Register(core.TaskProcessDocument, func(context.Context, *core.Task) error {
		close(done)
		return nil
	}, Hooks{}))
	enqueue(t, q, core.TaskProcessDocument, clock.Now())

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- w.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task was not executed")
	}
	cancel()

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	base := errors.New("bad input")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "bad input", err.Error())
	assert.False(t, IsPermanent(base))
}
