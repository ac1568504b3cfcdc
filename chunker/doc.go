// Package chunker splits document text into bounded, ordered segments that
// become the atomic units of embedding and retrieval.
//
// Boundaries prefer sentence terminators (periods and line breaks) found by
// scanning backward inside the size window, falling back to a hard cut at
// the limit. Chunking is pure and deterministic so that re-processing a
// document reproduces the exact same segment boundaries.
package chunker
