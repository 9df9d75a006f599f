package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/docinx/ai/mock"
	"github.com/poiesic/docinx/breaker"
	"github.com/poiesic/docinx/chunking"
	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/fallback"
	"github.com/poiesic/docinx/queue"
	"github.com/poiesic/docinx/retry"
	"github.com/poiesic/docinx/storage"
	"github.com/poiesic/docinx/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDims = 16

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

type fixture struct {
	store    *badger.Store
	proc     *Processor
	pipe     *Pipeline
	clock    *fakeClock
	embedder *mock.MockEmbedder
}

// newFixture wires a processor over an in-memory store with one mock remote
// embedder in front of the hash fallback.
func newFixture(t *testing.T, embed func(ctx context.Context, text string) ([]float32, error), opts ...Option) *fixture {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := &fakeClock{now: time.Now().UTC().Add(-time.Minute)}

	embedder := mock.NewMockEmbedder()
	embedder.Dims = testDims
	if embed != nil {
		embedder.WithEmbedTextFunc(embed)
	}

	registry := breaker.NewRegistry(nil, breaker.WithClock(clock.Now))
	chain, err := fallback.NewEmbeddingChain(testDims,
		[]fallback.Provider[string, []float32]{fallback.EmbeddingProvider("openai", embedder)},
		fallback.WithPolicy(retry.Immediate(1)),
		fallback.WithRegistry(registry),
	)
	require.NoError(t, err)
	t.Cleanup(chain.Close)

	taskBreaker, err := breaker.New(TaskBreakerName, breaker.WithClock(clock.Now))
	require.NoError(t, err)

	opts = append([]Option{
		WithTaskBreaker(taskBreaker),
		WithClock(clock.Now),
		WithChunker(chunking.New(chunking.WithChunkSize(1000), chunking.WithOverlap(200))),
	}, opts...)
	proc, err := NewProcessor(store, store.Queue, chain, opts...)
	require.NoError(t, err)

	pipe, err := NewPipeline(store, store.Queue, proc, WithPipelineClock(clock.Now))
	require.NoError(t, err)

	return &fixture{store: store, proc: proc, pipe: pipe, clock: clock, embedder: embedder}
}

func longText(n int) string {
	var sb strings.Builder
	for i := 0; sb.Len() < n; i++ {
		fmt.Fprintf(&sb, "Sentence %d describes how the resilient pipeline stores document number %d. ", i, i*7)
	}
	return sb.String()[:n]
}

func (f *fixture) upload(t *testing.T, text string) *core.Document {
	t.Helper()
	doc, err := f.pipe.Upload(context.Background(), UploadRequest{
		Filename:   "notes.txt",
		UploaderID: "user-1",
		Data:       []byte(text),
	})
	require.NoError(t, err)
	return doc
}

func (f *fixture) tasks(t *testing.T, kind core.TaskKind) []*core.Task {
	t.Helper()
	all, err := f.store.Queue.Tasks(context.Background())
	require.NoError(t, err)
	var out []*core.Task
	for _, task := range all {
		if task.Kind == kind {
			out = append(out, task)
		}
	}
	return out
}

func (f *fixture) process(t *testing.T, doc *core.Document) error {
	t.Helper()
	tasks := f.tasks(t, core.TaskProcessDocument)
	require.Len(t, tasks, 1)
	require.NoError(t, f.store.Queue.Ack(context.Background(), tasks[0].ID))
	return f.proc.ProcessDocument(context.Background(), tasks[0])
}

func (f *fixture) document(t *testing.T, id string) *core.Document {
	t.Helper()
	doc, err := f.store.GetDocument(context.Background(), id)
	require.NoError(t, err)
	return doc
}

func (f *fixture) chunks(t *testing.T, id string) []*core.Chunk {
	t.Helper()
	chunks, err := f.store.GetChunks(context.Background(), id)
	require.NoError(t, err)
	return chunks
}

func TestNewProcessor_Validation(t *testing.T) {
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()
	chain, err := fallback.NewEmbeddingChain(testDims, nil)
	require.NoError(t, err)
	defer chain.Close()

	_, err = NewProcessor(nil, store.Queue, chain)
	assert.ErrorIs(t, err, ErrRepositoryRequired)
	_, err = NewProcessor(store, nil, chain)
	assert.ErrorIs(t, err, ErrTaskQueueRequired)
	_, err = NewProcessor(store, store.Queue, nil)
	assert.ErrorIs(t, err, ErrEmbeddingChainRequired)

	_, err = NewPipeline(store, store.Queue, nil)
	assert.ErrorIs(t, err, ErrProcessorRequired)
}

func TestProcessDocument_CleanRun(t *testing.T) {
	f := newFixture(t, nil)
	doc := f.upload(t, longText(3000))

	require.NoError(t, f.process(t, doc))

	got := f.document(t, doc.ID)
	assert.Equal(t, core.StatusReady, got.Status)
	assert.Empty(t, got.ErrorMessage)
	assert.NotNil(t, got.ProcessedAt)
	assert.Len(t, got.ExtractedText, 3000)

	chunks := f.chunks(t, doc.ID)
	assert.GreaterOrEqual(t, len(chunks), 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Len(t, c.Embedding, testDims, "chunk %d", i)
		assert.Equal(t, "openai", c.EmbeddingProvider)
	}
	assert.Empty(t, f.tasks(t, core.TaskRetryEmbeddings))
}

func TestProcessDocument_EmbeddingOutage(t *testing.T) {
	f := newFixture(t, func(context.Context, string) ([]float32, error) {
		return nil, errors.New("insufficient_quota")
	})
	doc := f.upload(t, longText(3000))

	require.NoError(t, f.process(t, doc))

	got := f.document(t, doc.ID)
	assert.Equal(t, core.StatusIndexingPendingQuota, got.Status)
	assert.Contains(t, got.ErrorMessage, "chunks pending retry")
	assert.Nil(t, got.ProcessedAt)

	chunks := f.chunks(t, doc.ID)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Nil(t, c.Embedding)
	}

	retries := f.tasks(t, core.TaskRetryEmbeddings)
	require.Len(t, retries, 1)
	assert.Equal(t, f.clock.Now().Add(300*time.Second), retries[0].RunAt)
	assert.Equal(t, 300*time.Second, retries[0].RetryDelay)
	assert.Zero(t, retries[0].RetryRound)
}

func TestProcessDocument_PartialOutage(t *testing.T) {
	var calls atomic.Int32
	f := newFixture(t, func(_ context.Context, text string) ([]float32, error) {
		if calls.Add(1)%3 == 0 {
			return nil, errors.New("connection reset by peer")
		}
		return mock.DeterministicVector(text, testDims), nil
	})
	doc := f.upload(t, longText(3000))

	require.NoError(t, f.process(t, doc))

	got := f.document(t, doc.ID)
	assert.Equal(t, core.StatusPartial, got.Status)

	chunks := f.chunks(t, doc.ID)
	created, failed := 0, 0
	for _, c := range chunks {
		if c.HasEmbedding() {
			created++
		} else {
			failed++
		}
	}
	assert.Positive(t, created)
	assert.Positive(t, failed)
	assert.Equal(t, len(chunks), created+failed)
	assert.Equal(t, fmt.Sprintf("Document partially processed: %d chunks ready, %d pending retry", created, failed), got.ErrorMessage)

	retries := f.tasks(t, core.TaskRetryEmbeddings)
	require.Len(t, retries, 1)
	assert.Equal(t, f.clock.Now(), retries[0].RunAt)
	assert.Equal(t, 60*time.Second, retries[0].RetryDelay)
}

func TestProcessDocument_EmptyTextIsReady(t *testing.T) {
	f := newFixture(t, nil)
	doc := f.upload(t, "   \n  ")

	require.NoError(t, f.process(t, doc))

	got := f.document(t, doc.ID)
	assert.Equal(t, core.StatusReady, got.Status)
	assert.Empty(t, f.chunks(t, doc.ID))
	assert.Zero(t, f.embedder.CallCount())
}

func TestProcessDocument_ExtractionFailureIsPermanent(t *testing.T) {
	f := newFixture(t, nil)
	doc := f.upload(t, string([]byte{0xff, 0xfe, 0xfd}))

	err := f.process(t, doc)
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))

	got := f.document(t, doc.ID)
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "failed to extract text")
}

func TestProcessDocument_MissingDocumentIsPermanent(t *testing.T) {
	f := newFixture(t, nil)
	err := f.proc.ProcessDocument(context.Background(), &core.Task{Kind: core.TaskProcessDocument, DocumentID: "gone"})
	assert.True(t, queue.IsPermanent(err))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// statusRecorder captures the document status visible while text is extracted.
type statusRecorder struct {
	repo   Repository
	docID  string
	status core.DocumentStatus
}

func (r *statusRecorder) Extract(ctx context.Context, _ string, data []byte) (string, error) {
	doc, err := r.repo.GetDocument(ctx, r.docID)
	if err != nil {
		return "", err
	}
	r.status = doc.Status
	return string(data), nil
}

func TestProcessDocument_RetryAttemptStatus(t *testing.T) {
	recorder := &statusRecorder{}
	f := newFixture(t, nil, WithExtractor(recorder))
	recorder.repo = f.store
	doc := f.upload(t, "A short note about retries.")
	recorder.docID = doc.ID

	task := f.tasks(t, core.TaskProcessDocument)[0]
	task.Attempt = 2
	require.NoError(t, f.proc.ProcessDocument(context.Background(), task))

	assert.Equal(t, core.ProcessingRetryStatus(2), recorder.status)
	assert.Equal(t, core.StatusReady, f.document(t, doc.ID).Status)
}

func TestProcessDocument_RedeliveryReplacesChunks(t *testing.T) {
	f := newFixture(t, nil)
	doc := f.upload(t, longText(2500))
	task := f.tasks(t, core.TaskProcessDocument)[0]

	require.NoError(t, f.proc.ProcessDocument(context.Background(), task))
	first := len(f.chunks(t, doc.ID))
	require.NoError(t, f.proc.ProcessDocument(context.Background(), task))

	assert.Equal(t, first, len(f.chunks(t, doc.ID)))
}

func TestProcessDocument_OpenTaskBreakerStoresNilEmbeddings(t *testing.T) {
	f := newFixture(t, nil)
	for range 5 {
		f.proc.embedder.breaker.OnFailure()
	}
	doc := f.upload(t, longText(1500))

	require.NoError(t, f.process(t, doc))

	assert.Equal(t, core.StatusIndexingPendingQuota, f.document(t, doc.ID).Status)
	assert.Zero(t, f.embedder.CallCount())
	for _, c := range f.chunks(t, doc.ID) {
		assert.Nil(t, c.Embedding)
	}
}

func TestChunkEmbedder_CancelledContextIsNotAFailure(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for range 10 {
		vec, _, outcome := f.proc.embedder.embed(ctx, "chunk text")
		assert.Nil(t, vec)
		assert.Equal(t, embedFailed, outcome)
	}

	snap := f.proc.embedder.breaker.Snapshot()
	assert.Equal(t, breaker.StateClosed, snap.State)
	assert.Zero(t, snap.FailureCount)
	assert.Zero(t, f.embedder.CallCount())

	vec, provider, outcome := f.proc.embedder.embed(context.Background(), "chunk text")
	assert.Equal(t, embedCreated, outcome)
	assert.Equal(t, "openai", provider)
	assert.Len(t, vec, testDims)
}

func TestRetryEmbeddings_NoMissingChunksIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	doc := f.upload(t, longText(3000))
	require.NoError(t, f.process(t, doc))
	before := f.document(t, doc.ID)
	calls := f.embedder.CallCount()

	task := &core.Task{Kind: core.TaskRetryEmbeddings, DocumentID: doc.ID}
	require.NoError(t, f.proc.RetryEmbeddings(context.Background(), task))
	require.NoError(t, f.proc.RetryEmbeddings(context.Background(), task))

	after := f.document(t, doc.ID)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.ProcessedAt, after.ProcessedAt)
	assert.Equal(t, calls, f.embedder.CallCount())
	assert.Empty(t, f.tasks(t, core.TaskRetryEmbeddings))
}

func TestRetryEmbeddings_RecoversAfterOutage(t *testing.T) {
	var down atomic.Bool
	down.Store(true)
	f := newFixture(t, func(_ context.Context, text string) ([]float32, error) {
		if down.Load() {
			return nil, errors.New("503 service unavailable")
		}
		return mock.DeterministicVector(text, testDims), nil
	})
	doc := f.upload(t, longText(3000))
	require.NoError(t, f.process(t, doc))
	require.Equal(t, core.StatusIndexingPendingQuota, f.document(t, doc.ID).Status)

	down.Store(false)
	f.clock.Advance(301 * time.Second)
	retries := f.tasks(t, core.TaskRetryEmbeddings)
	require.Len(t, retries, 1)
	require.NoError(t, f.store.Queue.Ack(context.Background(), retries[0].ID))
	require.NoError(t, f.proc.RetryEmbeddings(context.Background(), retries[0]))

	got := f.document(t, doc.ID)
	assert.Equal(t, core.StatusReady, got.Status)
	assert.Empty(t, got.ErrorMessage)
	assert.NotNil(t, got.ProcessedAt)
	for _, c := range f.chunks(t, doc.ID) {
		assert.Len(t, c.Embedding, testDims)
	}
	assert.Empty(t, f.tasks(t, core.TaskRetryEmbeddings))
}

func TestRetryEmbeddings_ReschedulesWithDoubledDelay(t *testing.T) {
	f := newFixture(t, func(context.Context, string) ([]float32, error) {
		return nil, errors.New("rate_limit exceeded")
	})
	doc := f.upload(t, longText(2000))
	require.NoError(t, f.process(t, doc))
	first := f.tasks(t, core.TaskRetryEmbeddings)[0]
	require.NoError(t, f.store.Queue.Ack(context.Background(), first.ID))

	require.NoError(t, f.proc.RetryEmbeddings(context.Background(), first))

	assert.Equal(t, core.StatusIndexingPendingQuota, f.document(t, doc.ID).Status)
	next := f.tasks(t, core.TaskRetryEmbeddings)
	require.Len(t, next, 1)
	assert.Equal(t, 1, next[0].RetryRound)
	assert.Equal(t, 600*time.Second, next[0].RetryDelay)
	assert.Equal(t, f.clock.Now().Add(600*time.Second), next[0].RunAt)
}

func TestRetryEmbeddings_DelayIsCapped(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, 3600*time.Second, f.proc.nextDelay(3000*time.Second))
	assert.Equal(t, 120*time.Second, f.proc.nextDelay(0))
}

func TestRetryEmbeddings_GivesUpAfterMaxRounds(t *testing.T) {
	f := newFixture(t, func(context.Context, string) ([]float32, error) {
		return nil, errors.New("resource_exhausted")
	})
	doc := f.upload(t, longText(2000))
	require.NoError(t, f.process(t, doc))

	task := &core.Task{Kind: core.TaskRetryEmbeddings, DocumentID: doc.ID, RetryRound: 3, RetryDelay: time.Hour}
	require.NoError(t, f.proc.RetryEmbeddings(context.Background(), task))

	got := f.document(t, doc.ID)
	assert.Equal(t, core.StatusEmbeddingFailed, got.Status)
	assert.Equal(t, "Maximum retry attempts exceeded for embedding generation", got.ErrorMessage)
	// Only the retry scheduled by the processing pass remains.
	assert.Len(t, f.tasks(t, core.TaskRetryEmbeddings), 1)
}

func TestRetryEmbeddings_MaxPendingDuration(t *testing.T) {
	f := newFixture(t, func(context.Context, string) ([]float32, error) {
		return nil, errors.New("insufficient_quota")
	})
	doc := f.upload(t, longText(1500))
	require.NoError(t, f.process(t, doc))

	f.clock.Advance(7 * time.Hour)
	task := &core.Task{Kind: core.TaskRetryEmbeddings, DocumentID: doc.ID}
	require.NoError(t, f.proc.RetryEmbeddings(context.Background(), task))

	got := f.document(t, doc.ID)
	assert.Equal(t, core.StatusEmbeddingFailed, got.Status)
	assert.Equal(t, maxPendingMessage, got.ErrorMessage)
}

func TestRetryEmbeddings_DeletedDocument(t *testing.T) {
	f := newFixture(t, nil)
	task := &core.Task{Kind: core.TaskRetryEmbeddings, DocumentID: "gone"}
	assert.NoError(t, f.proc.RetryEmbeddings(context.Background(), task))
}

func TestQueueHooks_ShowRetryAndFailure(t *testing.T) {
	f := newFixture(t, nil)
	doc := f.upload(t, "Some text.")
	task := &core.Task{Kind: core.TaskProcessDocument, DocumentID: doc.ID, Attempt: 2}

	f.proc.Retrying(context.Background(), task, errors.New("database is locked"))
	got := f.document(t, doc.ID)
	assert.Equal(t, core.IndexingRetryStatus(2), got.Status)
	assert.Equal(t, "database is locked", got.ErrorMessage)
	assert.True(t, got.Status.Searchable())

	f.proc.Abandoned(context.Background(), task, errors.New("database is locked"))
	assert.Equal(t, core.StatusFailed, f.document(t, doc.ID).Status)

	f.proc.RetryAbandoned(context.Background(), task, errors.New("boom"))
	got = f.document(t, doc.ID)
	assert.Equal(t, core.StatusEmbeddingFailed, got.Status)
	assert.Equal(t, "Maximum retry attempts exceeded for embedding generation", got.ErrorMessage)
}

func TestPipeline_UploadValidation(t *testing.T) {
	f := newFixture(t, nil, WithConfig(Config{MaxFileSize: 10}))
	ctx := context.Background()

	_, err := f.pipe.Upload(ctx, UploadRequest{Filename: "a.txt", UploaderID: "u", Data: nil})
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = f.pipe.Upload(ctx, UploadRequest{Filename: "a.txt", UploaderID: "u", Data: []byte("0123456789abc")})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = f.pipe.Upload(ctx, UploadRequest{Filename: "a.png", UploaderID: "u", Data: []byte("png")})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = f.pipe.Upload(ctx, UploadRequest{Filename: "a.txt", MimeType: "image/png", UploaderID: "u", Data: []byte("png")})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = f.pipe.Upload(ctx, UploadRequest{Filename: "a.txt", Data: []byte("hi")})
	assert.ErrorIs(t, err, core.ErrMissingOwner)

	assert.Empty(t, f.tasks(t, core.TaskProcessDocument))
}

func TestPipeline_Upload(t *testing.T) {
	f := newFixture(t, nil)
	doc, err := f.pipe.Upload(context.Background(), UploadRequest{
		Filename:   "/tmp/uploads/Quarterly Report.csv",
		UploaderID: "user-1",
		Data:       []byte("a,b\n1,2\n"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Quarterly Report.csv", doc.Filename)
	assert.Equal(t, "Quarterly Report", doc.Title)
	assert.Equal(t, "text/csv", doc.MimeType)
	assert.Equal(t, int64(8), doc.Size)
	assert.Equal(t, core.StatusQueued, doc.Status)

	data, err := f.store.GetBlob(context.Background(), doc.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))

	tasks := f.tasks(t, core.TaskProcessDocument)
	require.Len(t, tasks, 1)
	assert.Equal(t, doc.ID, tasks[0].DocumentID)
}

func TestPipeline_ReindexAndReprocess(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	assert.ErrorIs(t, f.pipe.Reindex(ctx, "missing"), storage.ErrNotFound)
	assert.ErrorIs(t, f.pipe.Reprocess(ctx, "missing"), storage.ErrNotFound)

	doc := f.upload(t, longText(1200))
	require.NoError(t, f.process(t, doc))

	require.NoError(t, f.pipe.Reindex(ctx, doc.ID))
	assert.Len(t, f.tasks(t, core.TaskRetryEmbeddings), 1)

	require.NoError(t, f.pipe.Reprocess(ctx, doc.ID))
	assert.Equal(t, core.StatusQueued, f.document(t, doc.ID).Status)
	assert.Len(t, f.tasks(t, core.TaskProcessDocument), 1)
}

func TestPipeline_DeleteCascades(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc := f.upload(t, longText(1500))
	require.NoError(t, f.process(t, doc))
	require.NotEmpty(t, f.chunks(t, doc.ID))

	require.NoError(t, f.pipe.Delete(ctx, doc.ID))

	_, err := f.store.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = f.store.GetBlob(ctx, doc.StorageKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	chunks, err := f.store.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	assert.ErrorIs(t, f.pipe.Delete(ctx, doc.ID), storage.ErrNotFound)
}

func TestPipeline_RunsOnWorker(t *testing.T) {
	f := newFixture(t, nil)
	w, err := queue.NewWorker(f.store.Queue, queue.WithConfig(queue.Config{PoolSize: 2}), queue.WithClock(f.clock.Now))
	require.NoError(t, err)
	defer w.Release()
	require.NoError(t, f.pipe.Register(w))

	doc := f.upload(t, longText(3000))
	n, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, core.StatusReady, f.document(t, doc.ID).Status)
	health, err := w.Health(context.Background())
	require.NoError(t, err)
	assert.Zero(t, health[core.TaskProcessDocument].Due)
}
