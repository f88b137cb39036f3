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

// Package retrieval answers queries from the knowledge graph and the vector
// index at once and fuses both result sets into one ranked, bounded context.
//
// The Planner runs two independent paths concurrently:
//   - Graph path: entities named by the query are resolved to canonical
//     entities and their neighbourhood is traversed up to a hop limit
//   - Vector path: the query is embedded and the nearest chunks are fetched
//
// When one path fails the other still answers and the result is marked
// partial. The Ranker normalizes each path's scores, merges evidence citing
// the same chunk and truncates the ranking to a Budget.
package retrieval
