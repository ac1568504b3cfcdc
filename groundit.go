// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package groundit

import (
	"context"
	"log/slog"

	"github.com/poiesic/groundit/ai"
	"github.com/poiesic/groundit/ai/openai"
	"github.com/poiesic/groundit/chunker"
	"github.com/poiesic/groundit/core"
	"github.com/poiesic/groundit/prompt"
	"github.com/poiesic/groundit/retrieve"
	"github.com/poiesic/groundit/storage"
	"github.com/poiesic/groundit/storage/badger"
	"github.com/poiesic/groundit/token"
	"github.com/poiesic/groundit/vectorize"
)

// DefaultChunkChars is the per-chunk character limit used when none is
// configured.
const DefaultChunkChars = 500

// Service wires storage, the vectorization queue, the retriever, and the
// prompt assembler into one document grounding system.
type Service struct {
	repository storage.DocumentRepository
	provider   ai.Provider
	queue      *vectorize.Queue
	retriever  *retrieve.Retriever
	assembler  *prompt.Assembler
	logger     *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	aiConfig   *ai.Config
	provider   ai.Provider
	counter    token.Counter
	chunkChars int
	queueOpts  []vectorize.Option
}

// WithAIConfig sets the embedding provider configuration.
func WithAIConfig(cfg *ai.Config) ServiceOption {
	return func(o *serviceOptions) {
		if cfg != nil {
			o.aiConfig = cfg
		}
	}
}

// WithProvider injects an AI provider directly, bypassing the OpenAI
// adapter. Mainly for tests.
func WithProvider(provider ai.Provider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithTokenCounter sets the token counter used for chunk token counts and
// prompt budgeting. Default is tiktoken cl100k_base.
func WithTokenCounter(counter token.Counter) ServiceOption {
	return func(o *serviceOptions) {
		if counter != nil {
			o.counter = counter
		}
	}
}

// WithChunkChars sets the per-chunk character limit. Default is 500.
func WithChunkChars(chars int) ServiceOption {
	return func(o *serviceOptions) {
		if chars > 0 {
			o.chunkChars = chars
		}
	}
}

// WithQueueOptions passes options through to the vectorization queue.
func WithQueueOptions(opts ...vectorize.Option) ServiceOption {
	return func(o *serviceOptions) {
		o.queueOpts = append(o.queueOpts, opts...)
	}
}

// NewService opens the document store at filePath and assembles the full
// pipeline around it.
func NewService(filePath string, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		aiConfig:   ai.DefaultConfig(),
		chunkChars: DefaultChunkChars,
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, false)
	if err != nil {
		return nil, err
	}

	repository, err := badger.NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			repository.Close()
			return nil, err
		}
	}

	counter := options.counter
	if counter == nil {
		counter, err = token.NewTiktoken(options.aiConfig.EmbeddingModel)
		if err != nil {
			provider.Close()
			repository.Close()
			return nil, err
		}
	}

	splitter, err := chunker.New(options.chunkChars)
	if err != nil {
		provider.Close()
		repository.Close()
		return nil, err
	}

	queue, err := vectorize.NewQueue(repository, provider, splitter, counter, options.queueOpts...)
	if err != nil {
		provider.Close()
		repository.Close()
		return nil, err
	}

	retriever, err := retrieve.NewRetriever(repository, provider)
	if err != nil {
		queue.Release()
		provider.Close()
		repository.Close()
		return nil, err
	}

	assembler, err := prompt.NewAssembler(counter)
	if err != nil {
		queue.Release()
		provider.Close()
		repository.Close()
		return nil, err
	}

	return &Service{
		repository: repository,
		provider:   provider,
		queue:      queue,
		retriever:  retriever,
		assembler:  assembler,
		logger:     slog.Default(),
	}, nil
}

// UploadDocument stores a new document and enqueues it for vectorization.
func (s *Service) UploadDocument(ctx context.Context, userId, name, content string) (*core.Document, error) {
	doc := &core.Document{
		UserId:  userId,
		Name:    name,
		Content: content,
		Status:  core.StatusPending,
	}
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}

	created, err := s.repository.CreateDocument(ctx, doc)
	if err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(ctx, created.Id, false); err != nil {
		s.logger.Error("error enqueueing document", "document", created.Id, "err", err)
		return created, err
	}
	return created, nil
}

// Vectorize (re-)enqueues a document. With force set, a completed document
// is re-embedded; its chunk boundaries are reused when the text is unchanged.
func (s *Service) Vectorize(ctx context.Context, documentId core.ID, force bool) error {
	return s.queue.Enqueue(ctx, documentId, force)
}

// DeleteDocument cancels any in-flight processing and removes the document
// with its chunks. Deleting an unknown document is a no-op.
func (s *Service) DeleteDocument(ctx context.Context, documentId core.ID) error {
	s.queue.Cancel(documentId)
	return s.repository.DeleteDocument(ctx, documentId)
}

// Status returns the document's processing state and chunk counts.
func (s *Service) Status(ctx context.Context, documentId core.ID) (*core.Document, error) {
	return s.repository.GetDocument(ctx, documentId)
}

// ListDocuments returns all stored documents ordered by ID.
func (s *Service) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	return s.repository.ListDocuments(ctx)
}

// ListUserDocuments returns one user's documents ordered by ID.
func (s *Service) ListUserDocuments(ctx context.Context, userId string) ([]*core.Document, error) {
	return s.repository.ListUserDocuments(ctx, userId)
}

// Retrieve returns the chunks of the given documents most similar to the
// query, ranked by cosine similarity.
func (s *Service) Retrieve(ctx context.Context, query string, documentIds []core.ID, topK int, opts ...retrieve.QueryOption) ([]*core.RetrievalResult, error) {
	return s.retriever.Retrieve(ctx, query, documentIds, topK, opts...)
}

// Assemble builds a token-bounded prompt from history and retrieval results.
func (s *Service) Assemble(req prompt.Request) (*prompt.Prompt, error) {
	return s.assembler.Assemble(req)
}

// Repository exposes the underlying document repository.
func (s *Service) Repository() storage.DocumentRepository {
	return s.repository
}

// Close shuts down the queue, the AI provider, and storage.
func (s *Service) Close() error {
	s.queue.Release()

	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}

	// Closing the repository also closes the backend
	if err := s.repository.Close(); err != nil {
		s.logger.Error("error closing repository", "err", err)
		return err
	}
	return nil
}
