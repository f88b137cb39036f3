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

// Package ingestion turns documents into chunks, embeddings, canonical
// entities and relationships.
//
// The Pipeline drives each document through the ingest state machine:
//
//	pending -> chunked -> embedded_extracted -> resolved -> persisted -> done
//
// with failed reachable from every non-terminal state. Embedding and
// extraction run concurrently on separate worker pools. Only side-effect-free
// provider calls run on the pools; the GraphWriter and VectorWriter persist
// results after both stages have joined.
//
// An embedding failure fails the document: chunks without vectors are never
// stored. An extraction failure only marks the outcome as partial, since the
// chunk is still retrievable through the vector index.
package ingestion
