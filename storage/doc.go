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

// Package storage provides the storage abstraction layer for groundit.
//
// This package defines the DocumentRepository interface that decouples the
// vectorization queue and the retriever from the storage implementation.
// It allows for different storage backends (BadgerDB, in-memory, etc.) to be
// used interchangeably.
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return the storage.DocumentRepository
// interface to enforce abstraction:
//
//	repo, err := badger.NewDocumentRepository(backend)
//
// # Generation Fencing
//
// Every write that persists the result of a processing run carries the
// generation the run observed when it started. Deleting a document, or
// starting a new run, invalidates older generations: late writes from
// cancelled or superseded runs fail with ErrStaleGeneration (or ErrNotFound
// after deletion) instead of resurrecting state.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support concurrent
// access from multiple goroutines.
package storage
