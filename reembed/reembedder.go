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
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/santhosh0997/Multimodal-Rag-System/ai"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/retry"
	"github.com/santhosh0997/Multimodal-Rag-System/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of chunks embedded per provider call
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// Retry bounds every embedding call and store write
	Retry retry.Policy

	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		Retry:          retry.DefaultPolicy(),
	}
}

// Result summarises a completed run.
type Result struct {
	Chunks            int           `json:"chunks"`
	PreviousDimension int           `json:"previous_dimension"`
	Dimension         int           `json:"dimension"`
	Elapsed           time.Duration `json:"elapsed"`
}

// Reembedder orchestrates the reembedding of every chunk in a vector store.
type Reembedder struct {
	vectors   storage.VectorStore
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *ChunkIterator
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr), nil for none
func NewReembedder(vectors storage.VectorStore, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Retry.Validate(); err != nil {
		return nil, err
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reembed")

	return &Reembedder{
		vectors:   vectors,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(vectors, embedder, config.Retry, logger),
		iterator:  NewChunkIterator(vectors, config.BatchSize),
		logger:    logger,
	}, nil
}

// Run re-embeds every stored chunk. On error the chunks already written keep
// their new embeddings; running again completes the job.
func (r *Reembedder) Run(ctx context.Context) (*Result, error) {
	total, err := r.vectors.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	previous, err := r.vectors.Dimension(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read dimension: %w", err)
	}

	result := &Result{PreviousDimension: previous, Dimension: previous}
	if total == 0 {
		r.logger.Info("no chunks to re-embed")
		return result, nil
	}

	r.logger.Info("starting re-embedding", "chunks", total, "batch_size", r.iterator.batchSize)
	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEach(ctx, func(chunks []*core.Chunk) error {
		if err := r.processor.Process(ctx, chunks); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		tracker.Add(len(chunks))
		return nil
	})
	tracker.Finish()

	result.Chunks = tracker.Current()
	result.Elapsed = tracker.Elapsed()
	if dim := r.processor.Dimension(); dim != 0 {
		result.Dimension = dim
	}
	if err != nil {
		r.logger.Error("re-embedding stopped", "processed", result.Chunks, "err", err)
		return result, err
	}

	r.logger.Info("re-embedding complete",
		"chunks", result.Chunks,
		"dimension", result.Dimension,
		"elapsed", result.Elapsed.Round(time.Millisecond))
	return result, nil
}
