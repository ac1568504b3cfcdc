package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/groundit/core"
	"github.com/poiesic/groundit/storage"
)

// CreateChunks transactionally replaces a document's chunk set.
// The chunks are stored without embeddings; the document's chunk counters
// and content hash are updated in the same transaction.
func (r *DocumentRepository) CreateChunks(ctx context.Context, documentId core.ID, generation uint64, chunks []*core.Chunk) ([]*core.Chunk, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		docKey := makeDocumentKey(documentId)
		doc, err := r.readDocument(tx, docKey)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}
		if doc.Generation != generation {
			return storage.ErrStaleGeneration
		}

		// Drop any chunk set from a previous run
		if err := r.deleteChunks(tx, documentId); err != nil {
			return err
		}

		for _, chunk := range chunks {
			nextID, err := r.chunkSeq.Next()
			if err != nil {
				return err
			}
			// BadgerDB sequences can return 0 on first call, so we skip it
			if nextID == 0 {
				nextID, err = r.chunkSeq.Next()
				if err != nil {
					return err
				}
			}
			chunk.Id = core.ID(nextID)
			chunk.DocumentId = documentId
			chunk.Vector = nil
			chunk.Vectorized = false
			chunk.FailReason = ""

			// Store primary record
			key := makeChunkKey(chunk.Id)
			if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
				return err
			}

			// Update document index
			indexKey := makeChunkDocumentKey(documentId, chunk.Seq, chunk.Id)
			if err := tx.Set(indexKey, storage.MarshalID(chunk.Id)); err != nil {
				return err
			}
		}

		doc.TotalChunks = len(chunks)
		doc.VectorizedChunks = 0
		doc.ChunkedHash = core.IDFromContent(doc.Content)
		doc.UpdatedAt = time.Now().UTC()

		if err := tx.Set(docKey, storage.MarshalDocument(doc)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	return chunks, err
}

// ClearVectors removes embeddings from every chunk of a document while
// keeping the stored chunk boundaries.
func (r *DocumentRepository) ClearVectors(ctx context.Context, documentId core.ID, generation uint64) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		docKey := makeDocumentKey(documentId)
		doc, err := r.readDocument(tx, docKey)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}
		if doc.Generation != generation {
			return storage.ErrStaleGeneration
		}

		chunkIDs, err := r.collectChunkIDs(tx, documentId)
		if err != nil {
			return err
		}
		for _, chunkID := range chunkIDs {
			key := makeChunkKey(chunkID)
			chunk, err := r.readChunk(tx, key)
			if err != nil {
				return err
			}
			if chunk == nil {
				continue
			}
			chunk.Vector = nil
			chunk.Vectorized = false
			chunk.FailReason = ""
			if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
				return err
			}
		}

		doc.VectorizedChunks = 0
		doc.UpdatedAt = time.Now().UTC()

		if err := tx.Set(docKey, storage.MarshalDocument(doc)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// MarkChunkVectorized persists a chunk's embedding and bumps the parent
// document's vectorized count, fenced by generation.
//
// Every mark transaction reads the parent document record, so sibling chunks
// finishing concurrently conflict under optimistic detection. The transaction
// is idempotent and runs under conflict retry.
func (r *DocumentRepository) MarkChunkVectorized(ctx context.Context, chunkId core.ID, generation uint64, vector []float32) error {
	return r.backend.WithConflictRetryTx(func(tx *badger.Txn) error {
		key := makeChunkKey(chunkId)
		chunk, err := r.readChunk(tx, key)
		if err != nil {
			return err
		}
		if chunk == nil {
			return storage.ErrNotFound
		}

		docKey := makeDocumentKey(chunk.DocumentId)
		doc, err := r.readDocument(tx, docKey)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}
		if doc.Generation != generation {
			return storage.ErrStaleGeneration
		}

		// Retried delivery of the same result
		if chunk.Vectorized {
			return nil
		}

		chunk.Vector = vector
		chunk.Vectorized = true
		chunk.FailReason = ""
		if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
			return err
		}

		doc.VectorizedChunks++
		doc.UpdatedAt = time.Now().UTC()
		if err := tx.Set(docKey, storage.MarshalDocument(doc)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// MarkChunkFailed records a permanent embedding failure for one chunk,
// fenced by generation. Runs under conflict retry: the generation read of
// the parent document conflicts with sibling marks committing concurrently.
func (r *DocumentRepository) MarkChunkFailed(ctx context.Context, chunkId core.ID, generation uint64, reason string) error {
	return r.backend.WithConflictRetryTx(func(tx *badger.Txn) error {
		key := makeChunkKey(chunkId)
		chunk, err := r.readChunk(tx, key)
		if err != nil {
			return err
		}
		if chunk == nil {
			return storage.ErrNotFound
		}

		docKey := makeDocumentKey(chunk.DocumentId)
		doc, err := r.readDocument(tx, docKey)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}
		if doc.Generation != generation {
			return storage.ErrStaleGeneration
		}

		chunk.Vector = nil
		chunk.Vectorized = false
		chunk.FailReason = reason
		if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// GetChunks retrieves every chunk of a document, ordered by sequence index.
func (r *DocumentRepository) GetChunks(ctx context.Context, documentId core.ID) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		results, err = r.readDocumentChunks(tx, documentId)
		return err
	}, false)
	return results, err
}

// GetVectorizedChunks retrieves the chunks of the given documents that carry
// an embedding, ordered by (document ID, sequence index).
func (r *DocumentRepository) GetVectorizedChunks(ctx context.Context, documentIds ...core.ID) ([]*core.Chunk, error) {
	ids := slices.Clone(documentIds)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	var results []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, documentId := range ids {
			chunks, err := r.readDocumentChunks(tx, documentId)
			if err != nil {
				return err
			}
			for _, chunk := range chunks {
				if chunk.Vectorized {
					results = append(results, chunk)
				}
			}
		}
		return nil
	}, false)
	return results, err
}

// Helper methods

// readChunk reads a chunk from the transaction.
func (r *DocumentRepository) readChunk(tx *badger.Txn, key []byte) (*core.Chunk, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		chunk, unmarshalErr = storage.UnmarshalChunk(val)
		return unmarshalErr
	})
	return chunk, err
}

// collectChunkIDs scans the document index and returns chunk IDs in sequence
// order. The index key encodes the sequence in BigEndian, so iteration order
// is sequence order.
func (r *DocumentRepository) collectChunkIDs(tx *badger.Txn, documentId core.ID) ([]core.ID, error) {
	startKey := makePartialChunkDocumentKey(documentId)
	iter := tx.NewIterator(badger.DefaultIteratorOptions)
	defer iter.Close()

	var chunkIDs []core.ID
	for iter.Seek(startKey); iter.Valid(); iter.Next() {
		key := iter.Item().Key()
		if len(key) < len(startKey) || slices.Compare(key[:len(startKey)], startKey) != 0 {
			break
		}

		var chunkID core.ID
		if err := iter.Item().Value(func(val []byte) error {
			var err error
			chunkID, err = storage.UnmarshalID(val)
			return err
		}); err != nil {
			return nil, err
		}
		chunkIDs = append(chunkIDs, chunkID)
	}
	return chunkIDs, nil
}

// readDocumentChunks loads all chunks of a document in sequence order.
func (r *DocumentRepository) readDocumentChunks(tx *badger.Txn, documentId core.ID) ([]*core.Chunk, error) {
	chunkIDs, err := r.collectChunkIDs(tx, documentId)
	if err != nil {
		return nil, err
	}

	var results []*core.Chunk
	for _, chunkID := range chunkIDs {
		chunk, err := r.readChunk(tx, makeChunkKey(chunkID))
		if err != nil {
			return nil, err
		}
		if chunk != nil {
			results = append(results, chunk)
		}
	}
	return results, nil
}

// deleteChunks removes all chunk records and index entries for a document.
func (r *DocumentRepository) deleteChunks(tx *badger.Txn, documentId core.ID) error {
	startKey := makePartialChunkDocumentKey(documentId)
	iter := tx.NewIterator(badger.DefaultIteratorOptions)

	var indexKeys [][]byte
	var chunkIDs []core.ID
	for iter.Seek(startKey); iter.Valid(); iter.Next() {
		key := iter.Item().Key()
		if len(key) < len(startKey) || slices.Compare(key[:len(startKey)], startKey) != 0 {
			break
		}

		var chunkID core.ID
		if err := iter.Item().Value(func(val []byte) error {
			var err error
			chunkID, err = storage.UnmarshalID(val)
			return err
		}); err != nil {
			iter.Close()
			return err
		}
		indexKeys = append(indexKeys, slices.Clone(key))
		chunkIDs = append(chunkIDs, chunkID)
	}
	iter.Close()

	for i, indexKey := range indexKeys {
		if err := tx.Delete(makeChunkKey(chunkIDs[i])); err != nil {
			return err
		}
		if err := tx.Delete(indexKey); err != nil {
			return err
		}
	}
	return nil
}
