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

package reembed

import (
	"context"

	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/storage"
)

const (
	// DefaultBatchSize is the default number of chunks embedded per call
	DefaultBatchSize = 100
)

// ChunkIterator streams every stored chunk in batches.
type ChunkIterator struct {
	vectors   storage.VectorStore
	batchSize int
}

// NewChunkIterator creates a new chunk iterator.
// batchSize: number of chunks per batch; non-positive uses DefaultBatchSize
func NewChunkIterator(vectors storage.VectorStore, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &ChunkIterator{
		vectors:   vectors,
		batchSize: batchSize,
	}
}

// ForEach calls fn for each full batch and once more for the remainder.
// Iteration stops on the first error from fn or the store.
func (it *ChunkIterator) ForEach(ctx context.Context, fn func([]*core.Chunk) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := make([]*core.Chunk, 0, it.batchSize)
	err := it.vectors.ForEachChunk(ctx, func(chunk *core.Chunk) error {
		batch = append(batch, chunk)
		if len(batch) < it.batchSize {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		batch = make([]*core.Chunk, 0, it.batchSize)
		return ctx.Err()
	})
	if err != nil {
		return err
	}

	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}
