package vectorize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/groundit/ai"
	"github.com/poiesic/groundit/chunker"
	"github.com/poiesic/groundit/core"
	"github.com/poiesic/groundit/storage"
	"github.com/poiesic/groundit/token"
)

// processor runs a single vectorization pass over one document.
type processor struct {
	repository   storage.DocumentRepository
	embedder     ai.Embedder
	splitter     *chunker.Chunker
	counter      token.Counter
	embedPool    *ants.Pool
	fanOut       int
	maxAttempts  int
	baseDelay    time.Duration
	embedTimeout time.Duration
	logger       *slog.Logger
}

func newProcessor(
	repository storage.DocumentRepository,
	embedder ai.Embedder,
	splitter *chunker.Chunker,
	counter token.Counter,
	embedPool *ants.Pool,
	fanOut int,
	maxAttempts int,
	baseDelay time.Duration,
	embedTimeout time.Duration,
	logger *slog.Logger,
) *processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &processor{
		repository:   repository,
		embedder:     embedder,
		splitter:     splitter,
		counter:      counter,
		embedPool:    embedPool,
		fanOut:       fanOut,
		maxAttempts:  maxAttempts,
		baseDelay:    baseDelay,
		embedTimeout: embedTimeout,
		logger:       logger.With("component", "vectorize"),
	}
}

// process runs the chunk-then-embed pipeline for one document.
// Errors are recorded on the document and logged, never returned: the queue
// has nowhere to surface them once the caller's Enqueue has returned.
func (p *processor) process(ctx context.Context, documentId core.ID, force bool) {
	doc, err := p.repository.BeginProcessing(ctx, documentId, force)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidTransition) || errors.Is(err, storage.ErrNotFound) {
			p.logger.Debug("skipping run", "document", documentId, "err", err)
			return
		}
		p.logger.Error("error starting run", "document", documentId, "err", err)
		return
	}
	generation := doc.Generation

	chunks, err := p.prepareChunks(ctx, doc, force)
	if err != nil {
		if p.discarded(err) {
			p.logger.Debug("run superseded during chunking", "document", documentId)
			return
		}
		p.logger.Error("error chunking document", "document", documentId, "err", err)
		p.setStatus(ctx, documentId, generation, core.StatusFailed, err.Error())
		return
	}

	if err := p.repository.SetDocumentStatus(ctx, documentId, generation, core.StatusVectorizing, ""); err != nil {
		if !p.discarded(err) {
			p.logger.Error("error setting status", "document", documentId, "err", err)
		}
		return
	}

	var failed atomic.Int64
	var discarded atomic.Bool

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	sem := make(chan struct{}, p.fanOut)
	var wg sync.WaitGroup

	for _, chunk := range chunks {
		if runCtx.Err() != nil {
			break
		}
		if chunk.Vectorized {
			continue
		}

		sem <- struct{}{}
		wg.Add(1)

		c := chunk
		submitErr := p.embedPool.Submit(func() {
			defer wg.Done()
			defer func() { <-sem }()
			p.embedChunk(runCtx, cancelRun, c, generation, &failed, &discarded)
		})
		if submitErr != nil {
			<-sem
			wg.Done()
			p.logger.Error("error submitting chunk", "chunk", c.Id, "err", submitErr)
			failed.Add(1)
		}
	}
	wg.Wait()

	if discarded.Load() {
		p.logger.Debug("run superseded, discarding results", "document", documentId)
		return
	}
	if ctx.Err() != nil {
		// The run context is gone but the document may still exist; leave it
		// restartable. The write is fenced, so a deleted document stays gone.
		p.setStatus(context.Background(), documentId, generation, core.StatusFailed, "processing cancelled")
		p.logger.Debug("run cancelled", "document", documentId)
		return
	}

	failedCount := failed.Load()
	if failedCount == 0 {
		p.setStatus(ctx, documentId, generation, core.StatusCompleted, "")
		p.logger.Info("document vectorized", "document", documentId, "chunks", len(chunks))
		return
	}
	reason := fmt.Sprintf("%d of %d chunks failed embedding", failedCount, len(chunks))
	p.setStatus(ctx, documentId, generation, core.StatusFailed, reason)
	p.logger.Warn("document vectorization incomplete", "document", documentId, "reason", reason)
}

// prepareChunks produces the chunk set for this run. A forced run over
// unchanged content keeps the stored boundaries and only clears embeddings;
// any other run re-splits the text and replaces the chunk set.
func (p *processor) prepareChunks(ctx context.Context, doc *core.Document, force bool) ([]*core.Chunk, error) {
	if force && doc.TotalChunks > 0 && doc.ChunkedHash == core.IDFromContent(doc.Content) {
		if err := p.repository.ClearVectors(ctx, doc.Id, doc.Generation); err != nil {
			return nil, err
		}
		return p.repository.GetChunks(ctx, doc.Id)
	}

	segments := p.splitter.Split(doc.Content)
	if len(segments) == 0 {
		return nil, fmt.Errorf("document produced no chunks")
	}

	chunks := make([]*core.Chunk, len(segments))
	for i, segment := range segments {
		chunks[i] = &core.Chunk{
			Seq:     i,
			Start:   segment.Start,
			End:     segment.End,
			Content: segment.Content,
			Tokens:  p.counter.Count(segment.Content),
		}
	}
	return p.repository.CreateChunks(ctx, doc.Id, doc.Generation, chunks)
}

// embedChunk embeds one chunk and persists the outcome. Sibling chunks are
// unaffected by this chunk's failure.
func (p *processor) embedChunk(ctx context.Context, cancelRun context.CancelFunc, chunk *core.Chunk, generation uint64, failed *atomic.Int64, discarded *atomic.Bool) {
	vector, err := p.embedWithRetry(ctx, chunk.Content)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Warn("chunk embedding failed", "chunk", chunk.Id, "seq", chunk.Seq, "err", err)
		failed.Add(1)
		if markErr := p.repository.MarkChunkFailed(ctx, chunk.Id, generation, err.Error()); markErr != nil {
			if p.discarded(markErr) {
				discarded.Store(true)
				cancelRun()
				return
			}
			p.logger.Error("error recording chunk failure", "chunk", chunk.Id, "err", markErr)
		}
		return
	}

	if markErr := p.repository.MarkChunkVectorized(ctx, chunk.Id, generation, vector); markErr != nil {
		if p.discarded(markErr) {
			discarded.Store(true)
			cancelRun()
			return
		}
		p.logger.Error("error persisting chunk embedding", "chunk", chunk.Id, "err", markErr)
		failed.Add(1)
	}
}

// embedWithRetry calls the embedder with exponential backoff for transient
// failures. Permanent failures and context cancellation short-circuit.
func (p *processor) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var vector []float32

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, p.embedTimeout)
		defer cancel()

		result, err := p.embedder.EmbedText(callCtx, text)
		if err != nil {
			if ai.IsPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		vector = result
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.baseDelay
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.maxAttempts-1)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return vector, nil
}

// discarded reports whether a persist error means the run was superseded or
// the document deleted. Either way the run's work must be dropped.
func (p *processor) discarded(err error) bool {
	return errors.Is(err, storage.ErrStaleGeneration) || errors.Is(err, storage.ErrNotFound)
}

// setStatus writes a final status, tolerating fenced-out runs.
func (p *processor) setStatus(ctx context.Context, documentId core.ID, generation uint64, status core.DocumentStatus, reason string) {
	if err := p.repository.SetDocumentStatus(ctx, documentId, generation, status, reason); err != nil {
		if p.discarded(err) {
			return
		}
		p.logger.Error("error setting status", "document", documentId, "status", status, "err", err)
	}
}
