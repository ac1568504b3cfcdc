// Package prompt assembles token-bounded LLM prompts from conversation
// history and retrieval results. Assembly stops at the bounded message list;
// the LLM call itself belongs to the caller.
package prompt
