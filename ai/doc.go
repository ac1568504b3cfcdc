// Package ai defines the embedding provider boundary.
//
// The Embedder interface is the only contract the rest of the system has
// with the embedding service: text in, fixed-dimension vector out. Concrete
// adapters live in subpackages (ai/openai for OpenAI-compatible APIs,
// ai/mock for tests).
//
// # Error Taxonomy
//
// Embedding failures come in two flavors. Transient failures (timeouts,
// rate limits, transport errors) are retried with bounded backoff by the
// vectorization queue. Permanent failures (the provider rejects the input)
// are wrapped with Permanent and fail only the chunk they belong to.
// Adapters classify; the queue decides.
package ai
