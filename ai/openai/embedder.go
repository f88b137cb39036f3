package openai

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/santhosh0997/Multimodal-Rag-System/ai"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
// It remembers the dimension of the first vector it sees and rejects any
// later response of a different size.
type Embedder struct {
	embedder  embeddings.Embedder
	model     string
	dimension atomic.Int64
	logger    *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.APIKey),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfig, err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfig, err)
	}

	return &Embedder{
		embedder: embedder,
		model:    config.EmbeddingModel,
		logger:   slog.Default().With("component", "openai-embedder", "model", config.EmbeddingModel),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
// Every failure, including a short or empty response, wraps core.ErrEmbeddingUnavailable.
// A vector whose size differs from earlier ones fails with core.ErrDimensionMismatch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingUnavailable, err)
	}

	if len(vectors) != len(texts) {
		e.logger.Warn("embedder returned wrong number of vectors", "want", len(texts), "got", len(vectors))
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", core.ErrEmbeddingUnavailable, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty vector for text %d", core.ErrEmbeddingUnavailable, i)
		}
		if err := e.checkDimension(len(v)); err != nil {
			return nil, err
		}
	}

	return vectors, nil
}

// Dimension returns the vector size seen so far, or 0 before the first call.
func (e *Embedder) Dimension() int {
	return int(e.dimension.Load())
}

func (e *Embedder) checkDimension(dim int) error {
	if e.dimension.CompareAndSwap(0, int64(dim)) {
		e.logger.Info("embedding dimension detected", "dimension", dim)
		return nil
	}
	if want := e.dimension.Load(); want != int64(dim) {
		return fmt.Errorf("%w: model %s returned %d dimensions, expected %d",
			core.ErrDimensionMismatch, e.model, dim, want)
	}
	return nil
}
