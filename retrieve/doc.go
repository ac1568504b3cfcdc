// Package retrieve provides semantic retrieval over vectorized documents.
//
// The Retriever embeds a query once, scans the vectorized chunks of the
// referenced documents, scores each by cosine similarity, and returns the
// top results ranked and tie-broken deterministically. Readiness is strict
// by default: querying a document with no vectorized chunks is ErrNotReady
// unless the caller opts into partial results.
package retrieve
