// Package openai provides ai.Embedder and ai.Provider implementations for
// OpenAI-compatible embedding APIs (OpenAI, Ollama, LocalAI, vLLM) via
// langchaingo.
package openai
