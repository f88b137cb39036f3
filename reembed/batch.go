package reembed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/santhosh0997/Multimodal-Rag-System/ai"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/retry"
	"github.com/santhosh0997/Multimodal-Rag-System/storage"
)

// BatchProcessor embeds batches of chunks and writes them back.
// It is not safe for concurrent use: the first batch fixes the dimension.
type BatchProcessor struct {
	vectors   storage.VectorStore
	embedder  ai.Embedder
	policy    retry.Policy
	logger    *slog.Logger
	dimension int
}

// NewBatchProcessor creates a new batch processor.
func NewBatchProcessor(vectors storage.VectorStore, embedder ai.Embedder, policy retry.Policy, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		vectors:  vectors,
		embedder: embedder,
		policy:   policy,
		logger:   logger,
	}
}

// Dimension returns the embedding size produced so far, 0 before the first batch.
func (bp *BatchProcessor) Dimension() int {
	return bp.dimension
}

// Process re-embeds chunks and stores them. Embeddings are scaled to unit length.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	embeddings, err := retry.DoValue(ctx, bp.policy, func(ctx context.Context) ([][]float32, error) {
		return bp.embedder.EmbedTexts(ctx, texts)
	})
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", retry.Classify(core.ErrEmbeddingUnavailable, err))
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: embedding count mismatch: expected %d, got %d",
			core.ErrEmbeddingUnavailable, len(chunks), len(embeddings))
	}

	for i, chunk := range chunks {
		vector, ok := unitVector(embeddings[i])
		if !ok {
			return fmt.Errorf("%w: chunk %d: %w", core.ErrEmbeddingUnavailable, chunk.ID, ErrZeroVector)
		}
		if bp.dimension != 0 && len(vector) != bp.dimension {
			return fmt.Errorf("%w: embedder switched from %d to %d dimensions mid-run",
				core.ErrDimensionMismatch, bp.dimension, len(vector))
		}
		bp.dimension = len(vector)
		chunk.Embedding = vector
	}

	if err := bp.ensureDimension(ctx); err != nil {
		return err
	}

	err = retry.Do(ctx, bp.policy, func(ctx context.Context) error {
		return bp.vectors.UpsertVectors(ctx, chunks...)
	})
	if err != nil {
		return fmt.Errorf("failed to update chunks: %w", retry.Classify(core.ErrVectorUnavailable, err))
	}
	return nil
}

// ensureDimension switches the store to the new model's dimension.
func (bp *BatchProcessor) ensureDimension(ctx context.Context) error {
	stored, err := bp.vectors.Dimension(ctx)
	if err != nil {
		return retry.Classify(core.ErrVectorUnavailable, err)
	}
	if stored == bp.dimension {
		return nil
	}
	bp.logger.Warn("embedding dimension changed", "from", stored, "to", bp.dimension)
	if err := bp.vectors.SetDimension(ctx, bp.dimension); err != nil {
		return retry.Classify(core.ErrVectorUnavailable, err)
	}
	return nil
}
