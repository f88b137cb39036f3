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

// Package ai provides abstractions for the model services used by the retrieval core.
//
// # Interfaces
//
//   - Embedder: Generates vector embeddings from text
//   - Extractor: Finds entities and relationships in text, in ingestion or query mode
//   - AIProvider: Aggregates AI services for convenient initialization
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Deterministic test doubles without external dependencies
//
// # Constructor Return Type Pattern
//
// Public production constructors (openai.NewProvider, openai.NewEmbedder, ...)
// return interface types. Mock constructors return concrete types so tests can
// inject behavior and inspect call counts.
//
//	provider, err := openai.NewProvider(config)  // returns ai.AIProvider
//	embedder := mock.NewMockEmbedder()            // returns *mock.MockEmbedder
//
// # Errors
//
// Implementations classify failures with the core error taxonomy:
// core.ErrEmbeddingUnavailable and core.ErrExtractionUnavailable for
// transport, quota and timeout failures (retryable), and
// core.ErrExtractionMalformed for model output that cannot be parsed
// (never retried).
//
// # Rate Limiting
//
// NewRateLimitedProvider wraps any provider so that every embedding and
// extraction call first waits on a shared token bucket:
//
//	provider = ai.NewRateLimitedProvider(provider, 5) // 5 requests per second
package ai
