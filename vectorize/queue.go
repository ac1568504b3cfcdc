package vectorize

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/groundit/ai"
	"github.com/poiesic/groundit/chunker"
	"github.com/poiesic/groundit/core"
	"github.com/poiesic/groundit/storage"
	"github.com/poiesic/groundit/token"
)

const (
	defaultFanOut       = 4
	defaultMaxAttempts  = 3
	defaultBaseDelay    = 500 * time.Millisecond
	defaultEmbedTimeout = 30 * time.Second
)

// Queue orchestrates asynchronous vectorization of documents.
// Each enqueued document is processed by at most one run at a time;
// a run chunks the document, embeds each chunk with failure isolation,
// and records the aggregate outcome on the document.
type Queue struct {
	repository storage.DocumentRepository
	docPool    *ants.Pool
	embedPool  *ants.Pool
	proc       *processor
	logger     *slog.Logger

	poolSize     int
	fanOut       int
	maxAttempts  int
	baseDelay    time.Duration
	embedTimeout time.Duration

	mu       sync.Mutex
	inflight map[core.ID]context.CancelFunc
	released bool
}

// Option configures a Queue.
type Option func(*Queue) error

// WithPoolSize sets the number of documents processed concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(q *Queue) error {
		if size < 1 {
			size = 1
		}
		q.poolSize = size
		return nil
	}
}

// WithFanOut sets how many chunks of a single document may be embedded
// concurrently. Default is 4.
func WithFanOut(fanOut int) Option {
	return func(q *Queue) error {
		if fanOut < 1 {
			fanOut = 1
		}
		q.fanOut = fanOut
		return nil
	}
}

// WithMaxAttempts sets the number of embedding attempts per chunk before
// the chunk is recorded as failed. Default is 3.
func WithMaxAttempts(attempts int) Option {
	return func(q *Queue) error {
		if attempts < 1 {
			attempts = 1
		}
		q.maxAttempts = attempts
		return nil
	}
}

// WithBaseDelay sets the initial retry delay for transient embedding
// failures. Default is 500ms.
func WithBaseDelay(delay time.Duration) Option {
	return func(q *Queue) error {
		if delay > 0 {
			q.baseDelay = delay
		}
		return nil
	}
}

// WithEmbedTimeout sets the per-call timeout for embedding requests.
// Default is 30s.
func WithEmbedTimeout(timeout time.Duration) Option {
	return func(q *Queue) error {
		if timeout > 0 {
			q.embedTimeout = timeout
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) error {
		if logger == nil {
			logger = slog.Default()
		}
		q.logger = logger
		return nil
	}
}

// NewQueue creates a vectorization queue.
func NewQueue(
	repository storage.DocumentRepository,
	provider ai.Provider,
	splitter *chunker.Chunker,
	counter token.Counter,
	opts ...Option,
) (*Queue, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if splitter == nil {
		return nil, ErrChunkerRequired
	}
	if counter == nil {
		return nil, ErrCounterRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	q := &Queue{
		repository:   repository,
		logger:       slog.Default(),
		poolSize:     poolSize,
		fanOut:       defaultFanOut,
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		embedTimeout: defaultEmbedTimeout,
		inflight:     make(map[core.ID]context.CancelFunc),
	}

	for _, opt := range opts {
		if optErr := opt(q); optErr != nil {
			return nil, optErr
		}
	}

	docPool, err := ants.NewPool(q.poolSize)
	if err != nil {
		return nil, err
	}

	// The embedding pool is shared across documents; per-document fan-out
	// is limited by the processor's semaphore, not by this pool.
	embedPool, err := ants.NewPool(q.poolSize * q.fanOut)
	if err != nil {
		docPool.Release()
		return nil, err
	}

	q.docPool = docPool
	q.embedPool = embedPool
	q.proc = newProcessor(repository, provider.Embedder(), splitter, counter,
		embedPool, q.fanOut, q.maxAttempts, q.baseDelay, q.embedTimeout, q.logger)

	return q, nil
}

// Enqueue submits a document for asynchronous vectorization and returns
// immediately. Re-enqueueing a document that is already being processed is a
// no-op, as is enqueueing a completed document without force. Errors during
// the run itself are recorded on the document, not returned here.
func (q *Queue) Enqueue(ctx context.Context, documentId core.ID, force bool) error {
	doc, err := q.repository.GetDocument(ctx, documentId)
	if err != nil {
		return err
	}
	if doc.Status == core.StatusCompleted && !force {
		return nil
	}

	q.mu.Lock()
	if q.released {
		q.mu.Unlock()
		return ErrQueueReleased
	}
	if _, exists := q.inflight[documentId]; exists {
		q.mu.Unlock()
		return nil
	}

	// The run outlives the caller's context; cancellation is explicit
	runCtx, cancel := context.WithCancel(context.Background())
	q.inflight[documentId] = cancel
	q.mu.Unlock()

	submitErr := q.docPool.Submit(func() {
		defer q.finish(documentId)
		q.proc.process(runCtx, documentId, force)
	})
	if submitErr != nil {
		q.finish(documentId)
		return submitErr
	}
	return nil
}

// Cancel aborts the in-flight run for a document, if any. The run's pending
// writes are fenced out by the next generation bump; already-persisted chunk
// embeddings are kept.
func (q *Queue) Cancel(documentId core.ID) {
	q.mu.Lock()
	cancel, exists := q.inflight[documentId]
	q.mu.Unlock()
	if exists {
		cancel()
	}
}

// Inflight reports whether a document currently holds a processing lease.
func (q *Queue) Inflight(documentId core.ID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, exists := q.inflight[documentId]
	return exists
}

// Release cancels all in-flight runs and releases the worker pools.
// The queue should not be used after calling Release.
func (q *Queue) Release() {
	q.mu.Lock()
	q.released = true
	for _, cancel := range q.inflight {
		cancel()
	}
	q.mu.Unlock()

	q.docPool.Release()
	q.embedPool.Release()
}

// finish drops a document's processing lease.
func (q *Queue) finish(documentId core.ID) {
	q.mu.Lock()
	cancel, exists := q.inflight[documentId]
	delete(q.inflight, documentId)
	q.mu.Unlock()
	if exists {
		cancel()
	}
}
