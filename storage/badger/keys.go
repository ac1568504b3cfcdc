package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/groundit/core"
)

// Key prefixes for different data types
const (
	documentRecordPrefix = "docrec"
	documentUserPrefix   = "docuse"
	documentIDSeq        = "docrecseq"
	chunkRecordPrefix    = "chkrec"
	chunkDocumentPrefix  = "chkdoc"
	chunkIDSeq           = "chkrecseq"
)

// makeDocumentKey generates a key for a document record by ID.
func makeDocumentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", documentRecordPrefix, id))
}

// makeDocumentUserKey generates a composite key for the user index.
// Format: prefix:userId:documentID
func makeDocumentUserKey(userId string, id core.ID) []byte {
	prefix := documentUserPrefix + ":" + userId + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8 // 8 bytes for document ID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialDocumentUserKey generates a partial key for per-user scans.
// Format: prefix:userId:
func makePartialDocumentUserKey(userId string) []byte {
	return []byte(documentUserPrefix + ":" + userId + ":")
}

// makeChunkKey generates a key for a chunk record by ID.
func makeChunkKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", chunkRecordPrefix, id))
}

// makeChunkDocumentKey generates a composite key for the document index.
// Format: prefix:documentID:seq:chunkID
func makeChunkDocumentKey(documentId core.ID, seq int, chunkId core.ID) []byte {
	prefix := chunkDocumentPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 24 // 8 bytes each for documentID, seq, chunkID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentId))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(seq))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(chunkId))
	return buf
}

// makePartialChunkDocumentKey generates a partial key for document chunk scans.
// Format: prefix:documentID
func makePartialChunkDocumentKey(documentId core.ID) []byte {
	prefix := chunkDocumentPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8 // 8 bytes for documentID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentId))
	return buf
}
