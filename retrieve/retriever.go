package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/poiesic/groundit/ai"
	"github.com/poiesic/groundit/core"
	"github.com/poiesic/groundit/storage"
)

const (
	defaultTopK      = 5
	defaultBaseDelay = 500 * time.Millisecond
	defaultMaxTries  = 3
)

// Retriever ranks vectorized document chunks against a free-text query by
// cosine similarity. Retrieval is an exact scan over the referenced
// documents' chunks, synchronous and side-effect free.
type Retriever struct {
	repository storage.DocumentRepository
	embedder   ai.Embedder
	baseDelay  time.Duration
	maxTries   int
	logger     *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithRetryPolicy sets the query-embedding retry parameters.
func WithRetryPolicy(baseDelay time.Duration, maxTries int) Option {
	return func(r *Retriever) error {
		if baseDelay > 0 {
			r.baseDelay = baseDelay
		}
		if maxTries > 0 {
			r.maxTries = maxTries
		}
		return nil
	}
}

// NewRetriever creates a new retriever.
func NewRetriever(repository storage.DocumentRepository, provider ai.Provider, opts ...Option) (*Retriever, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	r := &Retriever{
		repository: repository,
		embedder:   provider.Embedder(),
		baseDelay:  defaultBaseDelay,
		maxTries:   defaultMaxTries,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// queryOptions holds per-call retrieval settings.
type queryOptions struct {
	partialResults bool
}

// QueryOption configures a single Retrieve call.
type QueryOption func(*queryOptions)

// WithPartialResults allows retrieval over a document set where some
// referenced documents have no vectorized chunks yet. Without it, any such
// document fails the whole query with ErrNotReady; with it, the query fails
// only when nothing in the set is vectorized.
func WithPartialResults() QueryOption {
	return func(o *queryOptions) {
		o.partialResults = true
	}
}

// Retrieve returns up to topK chunks from the given documents, ranked by
// cosine similarity to the query. A topK below 1 uses the default of 5.
// Ties are broken by ascending document ID, then ascending sequence index,
// so results are deterministic for a fixed store state.
func (r *Retriever) Retrieve(ctx context.Context, query string, documentIds []core.ID, topK int, opts ...QueryOption) ([]*core.RetrievalResult, error) {
	if len(documentIds) == 0 {
		return nil, ErrNoDocuments
	}
	if topK < 1 {
		topK = defaultTopK
	}

	options := queryOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	chunks, err := r.repository.GetVectorizedChunks(ctx, documentIds...)
	if err != nil {
		return nil, err
	}

	if err := r.checkReadiness(documentIds, chunks, options.partialResults); err != nil {
		return nil, err
	}

	embedding, err := r.embedQuery(ctx, query)
	if err != nil {
		r.logger.Error("error generating embedding for query", "err", err)
		return nil, err
	}

	results := make([]*core.RetrievalResult, 0, len(chunks))
	for _, chunk := range chunks {
		results = append(results, &core.RetrievalResult{
			ChunkId:    chunk.Id,
			DocumentId: chunk.DocumentId,
			Seq:        chunk.Seq,
			Content:    chunk.Content,
			Score:      CosineSimilarity(embedding, chunk.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].DocumentId != results[j].DocumentId {
			return results[i].DocumentId < results[j].DocumentId
		}
		return results[i].Seq < results[j].Seq
	})

	if len(results) > topK {
		results = results[:topK]
	}
	for i, result := range results {
		result.Rank = i + 1
	}
	return results, nil
}

// checkReadiness enforces the retrieval readiness rule over the referenced
// document set.
func (r *Retriever) checkReadiness(documentIds []core.ID, chunks []*core.Chunk, partial bool) error {
	if partial {
		if len(chunks) == 0 {
			return ErrNotReady
		}
		return nil
	}

	ready := make(map[core.ID]bool, len(documentIds))
	for _, chunk := range chunks {
		ready[chunk.DocumentId] = true
	}
	for _, documentId := range documentIds {
		if !ready[documentId] {
			return ErrNotReady
		}
	}
	return nil
}

// embedQuery embeds the query text with the same retry discipline used for
// chunk embedding. Exhausted retries surface as ErrEmbeddingUnavailable.
func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	var embedding []float32

	operation := func() error {
		result, err := r.embedder.EmbedText(ctx, query)
		if err != nil {
			if ai.IsPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		embedding = result
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.baseDelay
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.maxTries-1)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}
	return embedding, nil
}
