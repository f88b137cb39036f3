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

package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/santhosh0997/Multimodal-Rag-System/ai"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/retry"
)

// extractionProcessor extracts entities and relationships chunk by chunk.
type extractionProcessor struct {
	extractor ai.Extractor
	pool      *ants.Pool
	policy    retry.Policy
	logger    *slog.Logger
}

var _ processor = (*extractionProcessor)(nil)

// newExtractionProcessor creates a new extraction processor.
func newExtractionProcessor(extractor ai.Extractor, pool *ants.Pool, policy retry.Policy, logger *slog.Logger) (*extractionProcessor, error) {
	if extractor == nil {
		return nil, fmt.Errorf("%w: extractor required", core.ErrConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &extractionProcessor{
		extractor: extractor,
		pool:      pool,
		policy:    policy,
		logger:    logger.With("processor", "extraction"),
	}, nil
}

// process extracts every chunk of b. A chunk that cannot be extracted is
// recorded in b.failures and contributes no graph data; it never fails the call.
func (xp *extractionProcessor) process(ctx context.Context, b *batch) error {
	xp.logger.Debug("processing chunks for extraction", "document", b.doc.ID, "chunks", len(b.chunks))

	var wg sync.WaitGroup
	b.extractions = make([]*ai.Extraction, len(b.chunks))
	errs := make([]error, len(b.chunks))
	for i, chunk := range b.chunks {
		wg.Add(1)
		err := xp.pool.Submit(func() {
			defer wg.Done()
			b.extractions[i], errs[i] = xp.extract(ctx, chunk)
		})
		if err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("%w: %w", core.ErrExtractionUnavailable, err)
		}
	}
	wg.Wait()

	for i, err := range errs {
		if err == nil {
			continue
		}
		chunk := b.chunks[i]
		xp.logger.Warn("chunk extraction failed", "document", b.doc.ID, "chunk", chunk.Index, "err", err)
		b.failures = append(b.failures, core.ChunkFailure{
			ChunkID: chunk.ID,
			Index:   chunk.Index,
			Reason:  core.Reason(err),
			Message: err.Error(),
		})
	}
	return nil
}

// extract runs the extractor in ingestion mode. Malformed responses are not retried.
func (xp *extractionProcessor) extract(ctx context.Context, chunk *core.Chunk) (*ai.Extraction, error) {
	extraction, err := retry.DoValue(ctx, xp.policy, func(ctx context.Context) (*ai.Extraction, error) {
		return xp.extractor.Extract(ctx, chunk.Text, ai.ModeIngestion)
	})
	if err != nil {
		return nil, retry.Classify(core.ErrExtractionUnavailable, err)
	}
	if extraction == nil {
		extraction = &ai.Extraction{}
	}
	if dropped := extraction.Sanitize(); len(dropped) > 0 {
		xp.logger.Debug("dropped relationships with unknown endpoints", "chunk", chunk.Index, "count", len(dropped))
	}
	return extraction, nil
}
