// Package vectorize provides the background vectorization queue for documents.
//
// The Queue type manages the processing workflow for uploaded documents:
//   - Splitting document text into bounded chunks
//   - Generating chunk embeddings asynchronously with per-chunk retry
//   - Aggregating chunk outcomes into the document status
//
// Documents are processed by a fixed-size worker pool with a per-document
// exclusive lease, so at most one run is in flight per document. A failed
// chunk never aborts its siblings; the document ends up failed with its
// successfully embedded chunks kept. Errors during async processing are
// recorded on the document and logged, not returned to the enqueueing caller.
package vectorize
