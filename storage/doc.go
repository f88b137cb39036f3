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

// Package storage provides the storage abstraction layer for the retrieval core.
//
// This package defines store interfaces that decouple the ingestion and
// retrieval logic from the storage backends:
//
//   - EntityStore: canonical entities with alias lookups for resolution
//   - GraphStore: entities plus relationships, upserts and traversal
//   - VectorStore: chunk embeddings with filtered similarity search
//   - DocumentStore: ingested documents and their latest ingest outcome
//
// # Backends
//
//   - storage/badger: embedded BadgerDB implementation of every store
//   - storage/postgres: a pgvector-backed VectorStore
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	graph := badger.NewGraphStore(backend)
//	vectors := badger.NewVectorStore(backend)
//
// Use in tests with in-memory storage:
//
//	stores, err := badger.NewMemoryStores()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer stores.Close()
//
// # Errors
//
// Lookups return ErrNotFound for missing records and CreateEntity returns
// ErrDuplicateKey on an existing ID. Backend failures wrap
// core.ErrGraphUnavailable or core.ErrVectorUnavailable so callers can
// classify and retry them.
//
// # Thread Safety
//
// All store implementations must be thread-safe and support concurrent
// access from multiple goroutines.
package storage
