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

package retrieve

import "errors"

var (
	// ErrRepositoryRequired is returned when a document repository is not provided.
	ErrRepositoryRequired = errors.New("document repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrNoDocuments is returned when a query references no documents.
	ErrNoDocuments = errors.New("no documents to search")

	// ErrNotReady is returned when retrieval is requested before the
	// referenced documents have vectorized chunks. It is a retryable
	// condition, not a defect: vectorization simply hasn't finished.
	ErrNotReady = errors.New("documents not ready for retrieval")

	// ErrEmbeddingUnavailable is returned when the query itself cannot be
	// embedded after retries.
	ErrEmbeddingUnavailable = errors.New("query embedding unavailable")
)
