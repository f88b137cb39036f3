package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/santhosh0997/Multimodal-Rag-System/ai"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/retry"
)

// embeddingProcessor attaches vectors to chunks in batches.
type embeddingProcessor struct {
	embedder  ai.Embedder
	pool      *ants.Pool
	policy    retry.Policy
	batchSize int
	logger    *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

// newEmbeddingProcessor creates a new embedding processor.
func newEmbeddingProcessor(embedder ai.Embedder, pool *ants.Pool, policy retry.Policy, batchSize int, logger *slog.Logger) (*embeddingProcessor, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder required", core.ErrConfig)
	}
	if batchSize < 1 {
		return nil, ErrInvalidBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		embedder:  embedder,
		pool:      pool,
		policy:    policy,
		batchSize: batchSize,
		logger:    logger.With("processor", "embeddings"),
	}, nil
}

// process embeds every chunk of b. Batches run on the embedding pool; any
// failed batch fails the whole call since a document is only stored with
// every chunk embedded.
func (ep *embeddingProcessor) process(ctx context.Context, b *batch) error {
	ep.logger.Debug("processing chunks for embeddings", "document", b.doc.ID, "chunks", len(b.chunks))

	var (
		wg   sync.WaitGroup
		errs = make([]error, (len(b.chunks)+ep.batchSize-1)/ep.batchSize)
	)
	for i := 0; i*ep.batchSize < len(b.chunks); i++ {
		start := i * ep.batchSize
		end := min(start+ep.batchSize, len(b.chunks))
		chunks := b.chunks[start:end]

		wg.Add(1)
		err := ep.pool.Submit(func() {
			defer wg.Done()
			errs[i] = ep.embed(ctx, chunks)
		})
		if err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("%w: %w", core.ErrEmbeddingUnavailable, err)
		}
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		ep.logger.Error("error generating embeddings", "document", b.doc.ID, "err", err)
		return err
	}
	return nil
}

func (ep *embeddingProcessor) embed(ctx context.Context, chunks []*core.Chunk) error {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	embeddings, err := retry.DoValue(ctx, ep.policy, func(ctx context.Context) ([][]float32, error) {
		return ep.embedder.EmbedTexts(ctx, texts)
	})
	if err != nil {
		return retry.Classify(core.ErrEmbeddingUnavailable, err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: embedding result mismatch. expected %d, received %d",
			core.ErrEmbeddingUnavailable, len(chunks), len(embeddings))
	}

	for i := range embeddings {
		if len(embeddings[i]) == 0 {
			return fmt.Errorf("%w: empty embedding for chunk %d", core.ErrEmbeddingUnavailable, chunks[i].Index)
		}
		chunks[i].Embedding = embeddings[i]
	}
	return nil
}
