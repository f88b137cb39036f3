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
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/santhosh0997/Multimodal-Rag-System/ai"
	"github.com/santhosh0997/Multimodal-Rag-System/chunking"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/resolve"
	"github.com/santhosh0997/Multimodal-Rag-System/retry"
	"github.com/santhosh0997/Multimodal-Rag-System/storage"
	"golang.org/x/sync/errgroup"
)

// DefaultEmbedBatchSize is the number of chunks sent per embedding request.
const DefaultEmbedBatchSize = 32

// Pipeline orchestrates the ingestion of documents.
// It manages concurrent embedding and extraction and persists the results
// to the graph and vector stores.
type Pipeline struct {
	graph    storage.GraphStore
	vectors  storage.VectorStore
	docs     storage.DocumentStore
	provider ai.AIProvider
	resolver *resolve.Resolver
	chunker  *chunking.Chunker

	embeddingPool  *ants.Pool
	extractionPool *ants.Pool
	documentPool   *ants.Pool

	embeddingProc  processor
	extractionProc processor
	graphWriter    *GraphWriter
	vectorWriter   *VectorWriter

	retryPolicy    retry.Policy
	embedBatchSize int
	observer       Observer
	logger         *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for embedding and extraction.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pools
		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}
		if p.extractionPool != nil {
			p.extractionPool.Release()
		}

		embeddingPool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		extractionPool, err := ants.NewPool(size)
		if err != nil {
			embeddingPool.Release()
			return err
		}

		p.embeddingPool = embeddingPool
		p.extractionPool = extractionPool
		return nil
	}
}

// WithDocumentConcurrency sets how many documents IngestAll processes at once.
// Default is 2.
func WithDocumentConcurrency(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = 1
		}
		if p.documentPool != nil {
			p.documentPool.Release()
		}
		pool, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		p.documentPool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithRetryPolicy sets the policy applied to every provider and store call.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(p *Pipeline) error {
		if err := policy.Validate(); err != nil {
			return err
		}
		p.retryPolicy = policy
		return nil
	}
}

// WithEmbedBatchSize sets the number of chunks per embedding request.
func WithEmbedBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return ErrInvalidBatchSize
		}
		p.embedBatchSize = size
		return nil
	}
}

// WithDocumentStore records documents and outcomes, which enables skipping
// unchanged documents on re-ingest.
func WithDocumentStore(docs storage.DocumentStore) Option {
	return func(p *Pipeline) error {
		p.docs = docs
		return nil
	}
}

// WithObserver registers an observer for stage timings and outcomes.
func WithObserver(observer Observer) Option {
	return func(p *Pipeline) error {
		if observer == nil {
			observer = nopObserver{}
		}
		p.observer = observer
		return nil
	}
}

// WithChunker replaces the default chunker.
func WithChunker(chunker *chunking.Chunker) Option {
	return func(p *Pipeline) error {
		if chunker == nil {
			return fmt.Errorf("%w: nil chunker", core.ErrConfig)
		}
		p.chunker = chunker
		return nil
	}
}

// WithResolver replaces the default entity resolver.
func WithResolver(resolver *resolve.Resolver) Option {
	return func(p *Pipeline) error {
		if resolver == nil {
			return fmt.Errorf("%w: nil resolver", core.ErrConfig)
		}
		p.resolver = resolver
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	graph storage.GraphStore,
	vectors storage.VectorStore,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if graph == nil {
		return nil, ErrGraphStoreRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := max(runtime.NumCPU()/2, 1)
	embeddingPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}
	extractionPool, err := ants.NewPool(poolSize)
	if err != nil {
		embeddingPool.Release()
		return nil, err
	}
	documentPool, err := ants.NewPool(2)
	if err != nil {
		embeddingPool.Release()
		extractionPool.Release()
		return nil, err
	}

	chunker, err := chunking.New(chunking.DefaultConfig())
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		graph:          graph,
		vectors:        vectors,
		provider:       provider,
		chunker:        chunker,
		embeddingPool:  embeddingPool,
		extractionPool: extractionPool,
		documentPool:   documentPool,
		retryPolicy:    retry.DefaultPolicy(),
		embedBatchSize: DefaultEmbedBatchSize,
		observer:       nopObserver{},
		logger:         slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	// Create collaborators after options are applied so they get the final config
	if p.resolver == nil {
		p.resolver, err = resolve.New(graph, resolve.WithLogger(p.logger))
		if err != nil {
			p.Release()
			return nil, err
		}
	}

	embeddingProc, err := newEmbeddingProcessor(provider.Embedder(), p.embeddingPool, p.retryPolicy, p.embedBatchSize, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	extractionProc, err := newExtractionProcessor(provider.Extractor(), p.extractionPool, p.retryPolicy, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}

	p.embeddingProc = embeddingProc
	p.extractionProc = extractionProc
	p.graphWriter = NewGraphWriter(graph, p.retryPolicy, p.logger)
	p.vectorWriter = NewVectorWriter(vectors, p.retryPolicy, p.embedBatchSize, p.logger)
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

// Resolver returns the entity resolver shared with query-time lookups.
func (p *Pipeline) Resolver() *resolve.Resolver {
	return p.resolver
}

// Ingest drives doc through the state machine and returns its outcome.
//
// A document without an ID is assigned one. When a document store is
// configured, a document whose content is unchanged since its last complete
// ingest is skipped, and a document whose content changed has its old chunks
// removed from the vector store first.
//
// The returned error is non-nil exactly when the outcome is failed. When ctx
// is canceled the error is ctx.Err().
func (p *Pipeline) Ingest(ctx context.Context, doc *core.Document) (*core.IngestOutcome, error) {
	started := time.Now()
	outcome := &core.IngestOutcome{State: core.StatePending, StartedAt: started.UTC()}
	if doc != nil {
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		if doc.IngestedAt.IsZero() {
			doc.IngestedAt = started.UTC()
		}
		outcome.DocumentID = doc.ID
		outcome.ContentHash = doc.ContentHash()
	}

	err := p.ingest(ctx, doc, outcome)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		outcome.Fail(err)
		p.logger.Error("document ingest failed", "document", outcome.DocumentID, "reason", outcome.Reason, "err", err)
	}

	if !outcome.Skipped {
		p.recordOutcome(ctx, outcome)
	}
	p.observer.DocumentFinished(outcome, time.Since(started))

	if err != nil {
		return outcome, err
	}
	return outcome, nil
}

func (p *Pipeline) ingest(ctx context.Context, doc *core.Document, outcome *core.IngestOutcome) error {
	if err := core.ValidateDocument(doc); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	skip, err := p.prepare(ctx, doc, outcome)
	if err != nil {
		return err
	}
	if skip {
		return nil
	}

	// pending -> chunked
	stageStart := time.Now()
	values := p.chunker.Split(doc)
	b := &batch{doc: doc, chunks: make([]*core.Chunk, len(values))}
	for i := range values {
		b.chunks[i] = &values[i]
	}
	if err := p.advance(outcome, core.StateChunked, stageStart); err != nil {
		return err
	}

	// chunked -> embedded_extracted
	stageStart = time.Now()
	if err := p.enrich(ctx, b); err != nil {
		return err
	}
	outcome.ExtractionFailures = b.failures
	outcome.PartialExtraction = len(b.failures) > 0
	if err := p.advance(outcome, core.StateEmbeddedExtracted, stageStart); err != nil {
		return err
	}

	// embedded_extracted -> resolved
	stageStart = time.Now()
	graphData, err := p.resolveBatch(ctx, b)
	if err != nil {
		return err
	}
	if err := p.advance(outcome, core.StateResolved, stageStart); err != nil {
		return err
	}

	// resolved -> persisted
	stageStart = time.Now()
	vectorStats, err := p.vectorWriter.Write(ctx, b.chunks)
	if err != nil {
		return err
	}
	graphStats, err := p.graphWriter.Write(ctx, graphData.entities, graphData.relationships)
	if err != nil {
		return err
	}
	outcome.Chunks = vectorStats.Chunks
	outcome.Entities = graphStats.Entities
	outcome.Relationships = graphStats.Relationships
	if err := p.advance(outcome, core.StatePersisted, stageStart); err != nil {
		return err
	}

	if err := p.advance(outcome, core.StateDone, time.Now()); err != nil {
		return err
	}
	p.logger.Info("document ingested",
		"document", doc.ID,
		"chunks", outcome.Chunks,
		"entities", outcome.Entities,
		"relationships", outcome.Relationships,
		"partial", outcome.PartialExtraction)
	return nil
}

// prepare compares doc with its previous ingest. It reports whether the
// document can be skipped. When the content changed it removes the stale
// chunks and the graph provenance that cited them.
func (p *Pipeline) prepare(ctx context.Context, doc *core.Document, outcome *core.IngestOutcome) (bool, error) {
	if p.docs == nil {
		return false, nil
	}

	previous, err := p.docs.GetOutcome(ctx, doc.ID)
	switch {
	case storage.IsNotFound(err):
		previous = nil
	case err != nil:
		return false, err
	}

	if previous != nil && previous.ContentHash == outcome.ContentHash &&
		previous.State == core.StateDone && !previous.PartialExtraction {
		p.logger.Debug("document unchanged, skipping", "document", doc.ID)
		*outcome = *previous
		outcome.Skipped = true
		return true, nil
	}

	if previous != nil && previous.ContentHash != outcome.ContentHash {
		removed, err := retry.DoValue(ctx, p.retryPolicy, func(ctx context.Context) (int, error) {
			return p.vectors.DeleteDocument(ctx, doc.ID)
		})
		if err != nil {
			return false, retry.Classify(core.ErrVectorUnavailable, err)
		}
		p.logger.Debug("document changed, removed stale chunks", "document", doc.ID, "chunks", removed)

		forgotten, err := retry.DoValue(ctx, p.retryPolicy, func(ctx context.Context) (storage.ForgetResult, error) {
			return p.graph.ForgetDocument(ctx, doc.ID)
		})
		if err != nil {
			return false, retry.Classify(core.ErrGraphUnavailable, err)
		}
		p.logger.Debug("document changed, removed stale graph provenance", "document", doc.ID,
			"entities", forgotten.Entities,
			"relationships", forgotten.Relationships+forgotten.DeletedRelationships)
	}

	if err := p.docs.PutDocument(ctx, doc); err != nil {
		return false, err
	}
	return false, nil
}

// enrich runs embedding and extraction concurrently. An embedding failure
// cancels the extraction still in flight.
func (p *Pipeline) enrich(ctx context.Context, b *batch) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.embeddingProc.process(gctx, b)
	})
	g.Go(func() error {
		return p.extractionProc.process(gctx, b)
	})
	return g.Wait()
}

func (p *Pipeline) advance(outcome *core.IngestOutcome, next core.IngestState, stageStart time.Time) error {
	if err := outcome.Advance(next); err != nil {
		return err
	}
	p.observer.StageCompleted(next, time.Since(stageStart))
	return nil
}

// recordOutcome stores the outcome even when ctx was canceled, so a canceled
// ingest is visible to later status queries.
func (p *Pipeline) recordOutcome(ctx context.Context, outcome *core.IngestOutcome) {
	if p.docs == nil || outcome.DocumentID == "" {
		return
	}
	if err := p.docs.PutOutcome(context.WithoutCancel(ctx), outcome); err != nil {
		p.logger.Error("error recording ingest outcome", "document", outcome.DocumentID, "err", err)
	}
}

// IngestAll ingests docs concurrently on the document pool. Outcomes are
// returned in input order; the error joins every per-document failure.
func (p *Pipeline) IngestAll(ctx context.Context, docs []*core.Document) ([]*core.IngestOutcome, error) {
	outcomes := make([]*core.IngestOutcome, len(docs))
	errs := make([]error, len(docs))

	var wg sync.WaitGroup
	for i, doc := range docs {
		wg.Add(1)
		err := p.documentPool.Submit(func() {
			defer wg.Done()
			outcomes[i], errs[i] = p.Ingest(ctx, doc)
			if errs[i] != nil {
				errs[i] = fmt.Errorf("document %s: %w", outcomes[i].DocumentID, errs[i])
			}
		})
		if err != nil {
			wg.Done()
			errs[i] = err
			outcomes[i] = &core.IngestOutcome{State: core.StateFailed, Reason: core.ReasonInternal, Message: err.Error()}
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return outcomes, err
	}
	return outcomes, errors.Join(errs...)
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
	if p.extractionPool != nil {
		p.extractionPool.Release()
	}
	if p.documentPool != nil {
		p.documentPool.Release()
	}
}
