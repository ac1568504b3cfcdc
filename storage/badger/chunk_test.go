package badger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/poiesic/groundit/core"
	"github.com/poiesic/groundit/storage"
)

// startProcessing creates a document and moves it into a fresh run.
func startProcessing(t *testing.T, repo storage.DocumentRepository, content string) *core.Document {
	t.Helper()

	ctx := context.Background()
	doc, err := repo.CreateDocument(ctx, &core.Document{
		UserId:  "alice",
		Name:    "doc",
		Content: content,
	})
	if err != nil {
		t.Fatalf("Failed to create document: %v", err)
	}

	started, err := repo.BeginProcessing(ctx, doc.Id, false)
	if err != nil {
		t.Fatalf("Failed to begin processing: %v", err)
	}
	return started
}

func TestCreateChunks(t *testing.T) {
	repo, err := NewMemoryRepository()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	doc := startProcessing(t, repo, "first sentence. second sentence.")

	chunks := []*core.Chunk{
		{Seq: 0, Start: 0, End: 16, Content: "first sentence. ", Tokens: 4},
		{Seq: 1, Start: 16, End: 32, Content: "second sentence.", Tokens: 4},
	}
	created, err := repo.CreateChunks(ctx, doc.Id, doc.Generation, chunks)
	if err != nil {
		t.Fatalf("Failed to create chunks: %v", err)
	}

	for i, chunk := range created {
		if chunk.Id == 0 {
			t.Fatalf("Chunk %d has zero ID", i)
		}
		if chunk.DocumentId != doc.Id {
			t.Fatalf("Chunk %d has wrong document ID", i)
		}
		if chunk.Vectorized {
			t.Fatalf("Chunk %d should not be vectorized", i)
		}
	}

	updated, err := repo.GetDocument(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if updated.TotalChunks != 2 {
		t.Fatalf("Expected TotalChunks 2, got %d", updated.TotalChunks)
	}
	if updated.VectorizedChunks != 0 {
		t.Fatalf("Expected VectorizedChunks 0, got %d", updated.VectorizedChunks)
	}
	if updated.ChunkedHash != core.IDFromContent(updated.Content) {
		t.Fatal("Expected ChunkedHash to match content hash")
	}

	stored, err := repo.GetChunks(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(stored))
	}
	for i, chunk := range stored {
		if chunk.Seq != i {
			t.Fatalf("Expected chunks ordered by sequence, got seq %d at %d", chunk.Seq, i)
		}
	}
}

func TestCreateChunksReplacesPreviousSet(t *testing.T) {
	repo, err := NewMemoryRepository()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	doc := startProcessing(t, repo, "one. two. three.")

	first := []*core.Chunk{
		{Seq: 0, Start: 0, End: 5, Content: "one. ", Tokens: 2},
		{Seq: 1, Start: 5, End: 10, Content: "two. ", Tokens: 2},
		{Seq: 2, Start: 10, End: 16, Content: "three.", Tokens: 2},
	}
	if _, err := repo.CreateChunks(ctx, doc.Id, doc.Generation, first); err != nil {
		t.Fatalf("Failed to create first chunk set: %v", err)
	}

	if err := repo.SetDocumentStatus(ctx, doc.Id, doc.Generation, core.StatusVectorizing, ""); err != nil {
		t.Fatalf("Failed to set vectorizing: %v", err)
	}
	if err := repo.SetDocumentStatus(ctx, doc.Id, doc.Generation, core.StatusFailed, "embedder down"); err != nil {
		t.Fatalf("Failed to set failed: %v", err)
	}

	restarted, err := repo.BeginProcessing(ctx, doc.Id, false)
	if err != nil {
		t.Fatalf("Failed to restart: %v", err)
	}

	second := []*core.Chunk{
		{Seq: 0, Start: 0, End: 16, Content: "one. two. three.", Tokens: 6},
	}
	if _, err := repo.CreateChunks(ctx, doc.Id, restarted.Generation, second); err != nil {
		t.Fatalf("Failed to create second chunk set: %v", err)
	}

	stored, err := repo.GetChunks(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("Expected old chunks replaced, got %d chunks", len(stored))
	}
}

func TestCreateChunksStaleGeneration(t *testing.T) {
	repo, err := NewMemoryRepository()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	doc := startProcessing(t, repo, "content.")

	chunks := []*core.Chunk{{Seq: 0, Start: 0, End: 8, Content: "content.", Tokens: 2}}
	_, err = repo.CreateChunks(ctx, doc.Id, doc.Generation+1, chunks)
	if !errors.Is(err, storage.ErrStaleGeneration) {
		t.Fatalf("Expected ErrStaleGeneration, got %v", err)
	}
}

func TestMarkChunkVectorized(t *testing.T) {
	repo, err := NewMemoryRepository()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	doc := startProcessing(t, repo, "first sentence. second sentence.")

	chunks := []*core.Chunk{
		{Seq: 0, Start: 0, End: 16, Content: "first sentence. ", Tokens: 4},
		{Seq: 1, Start: 16, End: 32, Content: "second sentence.", Tokens: 4},
	}
	created, err := repo.CreateChunks(ctx, doc.Id, doc.Generation, chunks)
	if err != nil {
		t.Fatalf("Failed to create chunks: %v", err)
	}

	vector := []float32{0.1, 0.2, 0.3}
	if err := repo.MarkChunkVectorized(ctx, created[0].Id, doc.Generation, vector); err != nil {
		t.Fatalf("Failed to mark chunk vectorized: %v", err)
	}

	updated, err := repo.GetDocument(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if updated.VectorizedChunks != 1 {
		t.Fatalf("Expected VectorizedChunks 1, got %d", updated.VectorizedChunks)
	}

	// A retried delivery must not double count
	if err := repo.MarkChunkVectorized(ctx, created[0].Id, doc.Generation, vector); err != nil {
		t.Fatalf("Expected no-op on repeat mark, got %v", err)
	}
	updated, err = repo.GetDocument(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if updated.VectorizedChunks != 1 {
		t.Fatalf("Expected VectorizedChunks still 1, got %d", updated.VectorizedChunks)
	}

	stored, err := repo.GetChunks(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if !stored[0].Vectorized {
		t.Fatal("Expected first chunk vectorized")
	}
	if len(stored[0].Vector) != 3 {
		t.Fatalf("Expected stored vector, got %v", stored[0].Vector)
	}
	if stored[1].Vectorized {
		t.Fatal("Expected second chunk not vectorized")
	}
}

func TestMarkChunkVectorizedStaleGeneration(t *testing.T) {
	repo, err := NewMemoryRepository()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	doc := startProcessing(t, repo, "content.")

	chunks := []*core.Chunk{{Seq: 0, Start: 0, End: 8, Content: "content.", Tokens: 2}}
	created, err := repo.CreateChunks(ctx, doc.Id, doc.Generation, chunks)
	if err != nil {
		t.Fatalf("Failed to create chunks: %v", err)
	}

	err = repo.MarkChunkVectorized(ctx, created[0].Id, doc.Generation-1, []float32{0.1})
	if !errors.Is(err, storage.ErrStaleGeneration) {
		t.Fatalf("Expected ErrStaleGeneration, got %v", err)
	}
}

func TestConcurrentChunkMarks(t *testing.T) {
	repo, err := NewMemoryRepository()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	doc := startProcessing(t, repo, "many sentences.")

	const total = 32
	const failing = 8
	chunks := make([]*core.Chunk, total)
	for i := range chunks {
		chunks[i] = &core.Chunk{Seq: i, Start: i, End: i + 1, Content: "x", Tokens: 1}
	}
	created, err := repo.CreateChunks(ctx, doc.Id, doc.Generation, chunks)
	if err != nil {
		t.Fatalf("Failed to create chunks: %v", err)
	}

	// All marks race on the parent document record; none may surface a
	// transaction conflict.
	errs := make(chan error, total)
	var wg sync.WaitGroup
	for i, chunk := range created {
		wg.Add(1)
		go func(i int, chunkId core.ID) {
			defer wg.Done()
			if i < failing {
				errs <- repo.MarkChunkFailed(ctx, chunkId, doc.Generation, "embed failed")
			} else {
				errs <- repo.MarkChunkVectorized(ctx, chunkId, doc.Generation, []float32{float32(i)})
			}
		}(i, chunk.Id)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Concurrent mark failed: %v", err)
		}
	}

	updated, err := repo.GetDocument(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if updated.VectorizedChunks != total-failing {
		t.Fatalf("Expected VectorizedChunks %d, got %d", total-failing, updated.VectorizedChunks)
	}

	stored, err := repo.GetChunks(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	vectorized := 0
	for _, chunk := range stored {
		if chunk.Vectorized {
			vectorized++
		}
	}
	if vectorized != total-failing {
		t.Fatalf("Expected %d vectorized chunks, got %d", total-failing, vectorized)
	}
}

func TestMarkChunkAfterDelete(t *testing.T) {
	repo, err := NewMemoryRepository()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	doc := startProcessing(t, repo, "content.")

	chunks := []*core.Chunk{{Seq: 0, Start: 0, End: 8, Content: "content.", Tokens: 2}}
	created, err := repo.CreateChunks(ctx, doc.Id, doc.Generation, chunks)
	if err != nil {
		t.Fatalf("Failed to create chunks: %v", err)
	}

	if err := repo.DeleteDocument(ctx, doc.Id); err != nil {
		t.Fatalf("Failed to delete document: %v", err)
	}

	err = repo.MarkChunkVectorized(ctx, created[0].Id, doc.Generation, []float32{0.1})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	err = repo.MarkChunkFailed(ctx, created[0].Id, doc.Generation, "boom")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	stored, err := repo.GetChunks(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("Expected no chunks after delete, got %d", len(stored))
	}
}

func TestMarkChunkFailed(t *testing.T) {
	repo, err := NewMemoryRepository()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	doc := startProcessing(t, repo, "first sentence. second sentence.")

	chunks := []*core.Chunk{
		{Seq: 0, Start: 0, End: 16, Content: "first sentence. ", Tokens: 4},
		{Seq: 1, Start: 16, End: 32, Content: "second sentence.", Tokens: 4},
	}
	created, err := repo.CreateChunks(ctx, doc.Id, doc.Generation, chunks)
	if err != nil {
		t.Fatalf("Failed to create chunks: %v", err)
	}

	if err := repo.MarkChunkFailed(ctx, created[1].Id, doc.Generation, "input too long"); err != nil {
		t.Fatalf("Failed to mark chunk failed: %v", err)
	}

	stored, err := repo.GetChunks(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if stored[1].FailReason != "input too long" {
		t.Fatalf("Expected fail reason recorded, got '%s'", stored[1].FailReason)
	}
	if stored[0].FailReason != "" {
		t.Fatal("Expected sibling chunk unaffected")
	}
}

func TestClearVectors(t *testing.T) {
	repo, err := NewMemoryRepository()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	doc := startProcessing(t, repo, "first sentence. second sentence.")

	chunks := []*core.Chunk{
		{Seq: 0, Start: 0, End: 16, Content: "first sentence. ", Tokens: 4},
		{Seq: 1, Start: 16, End: 32, Content: "second sentence.", Tokens: 4},
	}
	created, err := repo.CreateChunks(ctx, doc.Id, doc.Generation, chunks)
	if err != nil {
		t.Fatalf("Failed to create chunks: %v", err)
	}

	for _, chunk := range created {
		if err := repo.MarkChunkVectorized(ctx, chunk.Id, doc.Generation, []float32{0.5}); err != nil {
			t.Fatalf("Failed to mark chunk vectorized: %v", err)
		}
	}

	if err := repo.SetDocumentStatus(ctx, doc.Id, doc.Generation, core.StatusVectorizing, ""); err != nil {
		t.Fatalf("Failed to set vectorizing: %v", err)
	}
	if err := repo.SetDocumentStatus(ctx, doc.Id, doc.Generation, core.StatusCompleted, ""); err != nil {
		t.Fatalf("Failed to set completed: %v", err)
	}

	restarted, err := repo.BeginProcessing(ctx, doc.Id, true)
	if err != nil {
		t.Fatalf("Failed to force restart: %v", err)
	}
	if err := repo.ClearVectors(ctx, doc.Id, restarted.Generation); err != nil {
		t.Fatalf("Failed to clear vectors: %v", err)
	}

	stored, err := repo.GetChunks(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("Expected chunk boundaries kept, got %d chunks", len(stored))
	}
	for i, chunk := range stored {
		if chunk.Vectorized || len(chunk.Vector) != 0 {
			t.Fatalf("Expected chunk %d cleared", i)
		}
	}

	updated, err := repo.GetDocument(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if updated.VectorizedChunks != 0 {
		t.Fatalf("Expected VectorizedChunks reset, got %d", updated.VectorizedChunks)
	}
}

func TestGetVectorizedChunks(t *testing.T) {
	repo, err := NewMemoryRepository()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	docA := startProcessing(t, repo, "a one. a two.")
	chunksA := []*core.Chunk{
		{Seq: 0, Start: 0, End: 7, Content: "a one. ", Tokens: 3},
		{Seq: 1, Start: 7, End: 13, Content: "a two.", Tokens: 3},
	}
	createdA, err := repo.CreateChunks(ctx, docA.Id, docA.Generation, chunksA)
	if err != nil {
		t.Fatalf("Failed to create chunks: %v", err)
	}

	docB := startProcessing(t, repo, "b one.")
	chunksB := []*core.Chunk{
		{Seq: 0, Start: 0, End: 6, Content: "b one.", Tokens: 3},
	}
	createdB, err := repo.CreateChunks(ctx, docB.Id, docB.Generation, chunksB)
	if err != nil {
		t.Fatalf("Failed to create chunks: %v", err)
	}

	// Vectorize one chunk of A and the only chunk of B
	if err := repo.MarkChunkVectorized(ctx, createdA[1].Id, docA.Generation, []float32{0.1}); err != nil {
		t.Fatalf("Failed to mark chunk vectorized: %v", err)
	}
	if err := repo.MarkChunkVectorized(ctx, createdB[0].Id, docB.Generation, []float32{0.2}); err != nil {
		t.Fatalf("Failed to mark chunk vectorized: %v", err)
	}

	vectorized, err := repo.GetVectorizedChunks(ctx, docB.Id, docA.Id)
	if err != nil {
		t.Fatalf("Failed to get vectorized chunks: %v", err)
	}
	if len(vectorized) != 2 {
		t.Fatalf("Expected 2 vectorized chunks, got %d", len(vectorized))
	}
	// Ordered by (document ID, sequence) regardless of argument order
	if vectorized[0].DocumentId != docA.Id || vectorized[1].DocumentId != docB.Id {
		t.Fatal("Expected chunks ordered by document ID")
	}
}
