package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// DocumentStatus is the processing state of a document.
// Documents move pending -> chunking -> vectorizing -> completed, with
// failed reachable from chunking and vectorizing.
type DocumentStatus int

const (
	// StatusPending means the document is uploaded but not yet processed.
	StatusPending DocumentStatus = iota + 1
	// StatusChunking means the chunker is splitting the document.
	StatusChunking
	// StatusVectorizing means chunk embeddings are being computed.
	StatusVectorizing
	// StatusCompleted means every chunk carries an embedding.
	StatusCompleted
	// StatusFailed means processing gave up on at least one chunk,
	// or chunking itself failed.
	StatusFailed
)

// String returns the lowercase name of the status for logs and CLI output.
func (s DocumentStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusChunking:
		return "chunking"
	case StatusVectorizing:
		return "vectorizing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CanTransition reports whether moving from s to next is a legal
// state-machine transition.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusChunking
	case StatusChunking:
		return next == StatusVectorizing || next == StatusFailed
	case StatusVectorizing:
		return next == StatusCompleted || next == StatusFailed
	case StatusCompleted:
		// Only a forced re-vectorize restarts a completed document.
		return next == StatusChunking
	case StatusFailed:
		return next == StatusChunking
	default:
		return false
	}
}

// Document represents an uploaded free-text document and its processing state.
// Status transitions are owned by the vectorization queue.
type Document struct {
	Id      ID
	UserId  string // Owner scope; no isolation guarantees beyond this field
	Name    string
	Content string

	// ChunkedHash is IDFromContent(Content) captured when the chunk set was
	// last persisted. A forced re-vectorize re-runs the chunker only when
	// the hash no longer matches.
	ChunkedHash ID

	Status     DocumentStatus
	FailReason string

	TotalChunks      int
	VectorizedChunks int // Monotonically non-decreasing within a run

	// Generation is bumped at the start of every processing run. Persist
	// operations carry the generation they were started under; a mismatch
	// means the document was deleted or superseded and the write is discarded.
	Generation uint64

	InsertedAt time.Time
	UpdatedAt  time.Time
}

// Chunk is a bounded, ordered segment of a document's text, the atomic unit
// of embedding and retrieval. Spans are rune offsets into the document
// content, half-open [Start, End), non-overlapping and strictly increasing
// within a document.
type Chunk struct {
	Id         ID
	DocumentId ID
	Seq        int // 0-based, dense, assigned before any embedding call
	Start      int
	End        int
	Content    string
	Tokens     int
	Vector     []float32 // Empty until vectorized
	Vectorized bool
	FailReason string // Set when embedding permanently failed for this chunk
}

// RetrievalResult is a ranked chunk returned by the retriever.
// Ephemeral: computed per query, never persisted.
type RetrievalResult struct {
	ChunkId    ID
	DocumentId ID
	Seq        int
	Content    string
	Score      float64
	Rank       int // 1-based
}

// Role identifies the author of a conversation turn.
type Role int

const (
	// RoleSystem is the fixed system instruction.
	RoleSystem Role = iota + 1
	// RoleUser is the human participant.
	RoleUser
	// RoleAssistant is the model's reply.
	RoleAssistant
)

// String returns the wire-style name of the role.
func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return "unknown"
	}
}

// Turn is a single conversation message with its token count.
type Turn struct {
	Role    Role
	Content string
	Tokens  int
}
