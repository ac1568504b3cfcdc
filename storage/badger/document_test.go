package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/groundit/core"
	"github.com/poiesic/groundit/storage"
)

func TestDocumentBasics(t *testing.T) {
	repo, err := NewMemoryRepository()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	doc := &core.Document{
		UserId:  "alice",
		Name:    "notes.txt",
		Content: "The quick brown fox. Jumps over the lazy dog.",
	}

	created, err := repo.CreateDocument(ctx, doc)
	if err != nil {
		t.Fatalf("Failed to create document: %v", err)
	}

	if created.Id == 0 {
		t.Fatal("Expected non-zero ID")
	}
	if created.Status != core.StatusPending {
		t.Fatalf("Expected pending status, got %s", created.Status)
	}
	if created.Generation != 1 {
		t.Fatalf("Expected generation 1, got %d", created.Generation)
	}
	if created.InsertedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatal("Expected timestamps to be set")
	}

	retrieved, err := repo.GetDocument(ctx, created.Id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if retrieved.Name != "notes.txt" {
		t.Fatalf("Expected 'notes.txt', got '%s'", retrieved.Name)
	}
	if retrieved.Content != doc.Content {
		t.Fatalf("Content mismatch: got '%s'", retrieved.Content)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	repo, err := NewMemoryRepository()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	_, err = repo.GetDocument(context.Background(), 12345)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestListDocumentsOrderedByID(t *testing.T) {
	repo, err := NewMemoryRepository()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := repo.CreateDocument(ctx, &core.Document{
			UserId:  "alice",
			Name:    "doc",
			Content: "content.",
		})
		if err != nil {
			t.Fatalf("Failed to create document %d: %v", i, err)
		}
	}

	docs, err := repo.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("Failed to list documents: %v", err)
	}
	if len(docs) != 12 {
		t.Fatalf("Expected 12 documents, got %d", len(docs))
	}
	for i := 1; i < len(docs); i++ {
		if docs[i].Id <= docs[i-1].Id {
			t.Fatalf("Documents not ordered by ID: %d after %d", docs[i].Id, docs[i-1].Id)
		}
	}
}

func TestListUserDocuments(t *testing.T) {
	repo, err := NewMemoryRepository()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	// Interleave two owners so the index scan has to filter
	users := []string{"alice", "bob", "alice", "bob", "alice"}
	for i, userId := range users {
		_, err := repo.CreateDocument(ctx, &core.Document{
			UserId:  userId,
			Name:    "doc",
			Content: "content.",
		})
		if err != nil {
			t.Fatalf("Failed to create document %d: %v", i, err)
		}
	}

	docs, err := repo.ListUserDocuments(ctx, "alice")
	if err != nil {
		t.Fatalf("Failed to list user documents: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("Expected 3 documents, got %d", len(docs))
	}
	for i, doc := range docs {
		if doc.UserId != "alice" {
			t.Fatalf("Document %d belongs to %q", i, doc.UserId)
		}
		if i > 0 && doc.Id <= docs[i-1].Id {
			t.Fatalf("Documents not ordered by ID: %d after %d", doc.Id, docs[i-1].Id)
		}
	}

	none, err := repo.ListUserDocuments(ctx, "carol")
	if err != nil {
		t.Fatalf("Failed to list unknown user: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("Expected no documents for unknown user, got %d", len(none))
	}
}

func TestBeginProcessing(t *testing.T) {
	repo, err := NewMemoryRepository()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	doc, err := repo.CreateDocument(ctx, &core.Document{
		UserId:  "alice",
		Name:    "doc",
		Content: "content.",
	})
	if err != nil {
		t.Fatalf("Failed to create document: %v", err)
	}

	started, err := repo.BeginProcessing(ctx, doc.Id, false)
	if err != nil {
		t.Fatalf("Failed to begin processing: %v", err)
	}
	if started.Status != core.StatusChunking {
		t.Fatalf("Expected chunking status, got %s", started.Status)
	}
	if started.Generation != 2 {
		t.Fatalf("Expected generation 2, got %d", started.Generation)
	}

	// A second start while the first run is in flight must be rejected
	_, err = repo.BeginProcessing(ctx, doc.Id, false)
	if !errors.Is(err, storage.ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition, got %v", err)
	}
}

func TestBeginProcessingCompletedRequiresForce(t *testing.T) {
	repo, err := NewMemoryRepository()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	doc, err := repo.CreateDocument(ctx, &core.Document{
		UserId:  "alice",
		Name:    "doc",
		Content: "content.",
	})
	if err != nil {
		t.Fatalf("Failed to create document: %v", err)
	}

	started, err := repo.BeginProcessing(ctx, doc.Id, false)
	if err != nil {
		t.Fatalf("Failed to begin processing: %v", err)
	}
	gen := started.Generation

	if err := repo.SetDocumentStatus(ctx, doc.Id, gen, core.StatusVectorizing, ""); err != nil {
		t.Fatalf("Failed to set vectorizing: %v", err)
	}
	if err := repo.SetDocumentStatus(ctx, doc.Id, gen, core.StatusCompleted, ""); err != nil {
		t.Fatalf("Failed to set completed: %v", err)
	}

	_, err = repo.BeginProcessing(ctx, doc.Id, false)
	if !errors.Is(err, storage.ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition without force, got %v", err)
	}

	restarted, err := repo.BeginProcessing(ctx, doc.Id, true)
	if err != nil {
		t.Fatalf("Failed to force restart: %v", err)
	}
	if restarted.Generation != gen+1 {
		t.Fatalf("Expected generation %d, got %d", gen+1, restarted.Generation)
	}
}

func TestSetDocumentStatusStaleGeneration(t *testing.T) {
	repo, err := NewMemoryRepository()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	doc, err := repo.CreateDocument(ctx, &core.Document{
		UserId:  "alice",
		Name:    "doc",
		Content: "content.",
	})
	if err != nil {
		t.Fatalf("Failed to create document: %v", err)
	}

	started, err := repo.BeginProcessing(ctx, doc.Id, false)
	if err != nil {
		t.Fatalf("Failed to begin processing: %v", err)
	}

	// A write carrying a generation from before the restart must be fenced
	err = repo.SetDocumentStatus(ctx, doc.Id, started.Generation-1, core.StatusVectorizing, "")
	if !errors.Is(err, storage.ErrStaleGeneration) {
		t.Fatalf("Expected ErrStaleGeneration, got %v", err)
	}
}

func TestDeleteDocument(t *testing.T) {
	repo, err := NewMemoryRepository()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	doc, err := repo.CreateDocument(ctx, &core.Document{
		UserId:  "alice",
		Name:    "doc",
		Content: "first sentence. second sentence.",
	})
	if err != nil {
		t.Fatalf("Failed to create document: %v", err)
	}

	started, err := repo.BeginProcessing(ctx, doc.Id, false)
	if err != nil {
		t.Fatalf("Failed to begin processing: %v", err)
	}

	chunks := []*core.Chunk{
		{Seq: 0, Start: 0, End: 16, Content: "first sentence. ", Tokens: 4},
		{Seq: 1, Start: 16, End: 32, Content: "second sentence.", Tokens: 4},
	}
	if _, err := repo.CreateChunks(ctx, doc.Id, started.Generation, chunks); err != nil {
		t.Fatalf("Failed to create chunks: %v", err)
	}

	if err := repo.DeleteDocument(ctx, doc.Id); err != nil {
		t.Fatalf("Failed to delete document: %v", err)
	}

	_, err = repo.GetDocument(ctx, doc.Id)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after delete, got %v", err)
	}

	remaining, err := repo.GetChunks(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("Expected chunks to cascade, got %d", len(remaining))
	}

	// Deleting a missing document is a no-op
	if err := repo.DeleteDocument(ctx, doc.Id); err != nil {
		t.Fatalf("Expected no-op delete, got %v", err)
	}
}
