package storage

import (
	"context"

	"github.com/poiesic/groundit/core"
)

// DocumentRepository provides persistence for documents and their chunks.
// Implementations must be thread-safe, and every operation must be safe to
// retry (idempotent by identifier).
//
// Operations that persist processing results take the generation the run was
// started under (see Document.Generation). A write against a generation that
// no longer matches fails with ErrStaleGeneration; a write against a deleted
// document fails with ErrNotFound. Both mean the work must be discarded.
type DocumentRepository interface {
	// CreateDocument adds a document to storage. For a document with ID=0 a
	// new ID is generated from sequence. Status is forced to pending,
	// Generation to 1, and InsertedAt/UpdatedAt are populated.
	// Returns the document with those fields filled in.
	CreateDocument(ctx context.Context, doc *core.Document) (*core.Document, error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// ListDocuments retrieves all documents, ordered by ID.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// ListUserDocuments retrieves one user's documents, ordered by ID. An
	// unknown user yields an empty list, not an error.
	ListUserDocuments(ctx context.Context, userId string) ([]*core.Document, error)

	// BeginProcessing atomically starts a processing run: it validates that
	// the document may (re)start (pending or failed, or completed only when
	// force is set), transitions the status to chunking, bumps Generation,
	// and returns the fresh snapshot. Returns ErrInvalidTransition when the
	// document is in a state that cannot start a run.
	BeginProcessing(ctx context.Context, id core.ID, force bool) (*core.Document, error)

	// SetDocumentStatus transitions a document's status and failure reason.
	// The write is fenced by generation.
	SetDocumentStatus(ctx context.Context, id core.ID, generation uint64, status core.DocumentStatus, reason string) error

	// CreateChunks transactionally replaces the document's chunk set with
	// chunks that carry no embeddings. Chunk IDs are generated from sequence.
	// TotalChunks is set, VectorizedChunks reset to zero, and ChunkedHash
	// recorded from the document content. Fenced by generation.
	CreateChunks(ctx context.Context, documentId core.ID, generation uint64, chunks []*core.Chunk) ([]*core.Chunk, error)

	// ClearVectors removes embeddings from every chunk of the document while
	// keeping the stored chunk boundaries, and resets VectorizedChunks.
	// Used by forced re-vectorization when the source text is unchanged.
	// Fenced by generation.
	ClearVectors(ctx context.Context, documentId core.ID, generation uint64) error

	// MarkChunkVectorized persists a chunk's embedding, sets its vectorized
	// flag, and increments the parent document's VectorizedChunks count.
	// Fenced by generation. Marking an already-vectorized chunk again with
	// the same generation is a no-op.
	MarkChunkVectorized(ctx context.Context, chunkId core.ID, generation uint64, vector []float32) error

	// MarkChunkFailed records a permanent embedding failure for one chunk.
	// Sibling chunks are unaffected. Fenced by generation.
	MarkChunkFailed(ctx context.Context, chunkId core.ID, generation uint64, reason string) error

	// GetChunks retrieves every chunk of a document, ordered by sequence
	// index.
	GetChunks(ctx context.Context, documentId core.ID) ([]*core.Chunk, error)

	// GetVectorizedChunks retrieves the chunks of the given documents that
	// carry an embedding, ordered by (document ID, sequence index). Chunks
	// still pending are excluded, not an error.
	GetVectorizedChunks(ctx context.Context, documentIds ...core.ID) ([]*core.Chunk, error)

	// DeleteDocument removes a document and cascades to its chunks.
	// Deleting a document that doesn't exist is a no-op.
	DeleteDocument(ctx context.Context, id core.ID) error

	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}
