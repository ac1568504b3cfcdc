package mock

import "github.com/poiesic/groundit/ai"

// MockProvider is a test double for ai.Provider backed by a MockEmbedder.
type MockProvider struct {
	MockEmbedder *MockEmbedder
}

// NewMockProvider creates a provider whose embedder is a fresh MockEmbedder.
func NewMockProvider() *MockProvider {
	return &MockProvider{MockEmbedder: NewMockEmbedder()}
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.MockEmbedder
}

// Close is a no-op.
func (p *MockProvider) Close() error {
	return nil
}
