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

// Package ragcore wires the ingestion pipeline and the hybrid retriever over
// one set of stores.
package ragcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh0997/Multimodal-Rag-System/ai"
	"github.com/santhosh0997/Multimodal-Rag-System/ai/openai"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/ingestion"
	"github.com/santhosh0997/Multimodal-Rag-System/metrics"
	"github.com/santhosh0997/Multimodal-Rag-System/resolve"
	"github.com/santhosh0997/Multimodal-Rag-System/retrieval"
	"github.com/santhosh0997/Multimodal-Rag-System/storage"
	"github.com/santhosh0997/Multimodal-Rag-System/storage/badger"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("engine closed")

// Engine ingests documents and answers retrieval queries.
type Engine struct {
	stores   *badger.Stores
	graph    storage.GraphStore
	vectors  storage.VectorStore
	provider ai.AIProvider
	pipeline *ingestion.Pipeline
	planner  *retrieval.Planner
	ranker   *retrieval.Ranker
	metrics  *metrics.Collector
	budget   retrieval.Budget
	logger   *slog.Logger
	closed   atomic.Bool
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	aiConfig      *ai.Config
	provider      ai.AIProvider
	inMemory      bool
	graph         storage.GraphStore
	vectors       storage.VectorStore
	metrics       *metrics.Collector
	logger        *slog.Logger
	budget        retrieval.Budget
	threshold     float64
	ingestionOpts []ingestion.Option
	plannerOpts   []retrieval.PlannerOption
	rankerOpts    []retrieval.RankerOption
}

// WithAIConfig sets the configuration of the default langchaingo provider.
func WithAIConfig(config *ai.Config) Option {
	return func(o *engineOptions) {
		o.aiConfig = config
	}
}

// WithProvider injects the embedding and extraction provider.
// The Engine takes ownership and closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// InMemory keeps every store in memory and ignores the path.
func InMemory() Option {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithGraphStore replaces the Badger graph store. The Engine takes ownership
// and closes it.
func WithGraphStore(graph storage.GraphStore) Option {
	return func(o *engineOptions) {
		o.graph = graph
	}
}

// WithVectorStore replaces the Badger vector store, for example with the
// Postgres one. The Engine takes ownership and closes it.
func WithVectorStore(vectors storage.VectorStore) Option {
	return func(o *engineOptions) {
		o.vectors = vectors
	}
}

// WithMetrics records ingestion and retrieval metrics on collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(o *engineOptions) {
		o.metrics = collector
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithBudget sets the budget used by Retrieve.
func WithBudget(budget retrieval.Budget) Option {
	return func(o *engineOptions) {
		o.budget = budget
	}
}

// WithResolveThreshold sets the entity resolution similarity threshold.
func WithResolveThreshold(threshold float64) Option {
	return func(o *engineOptions) {
		o.threshold = threshold
	}
}

// WithIngestionOptions passes options through to the ingestion pipeline.
func WithIngestionOptions(opts ...ingestion.Option) Option {
	return func(o *engineOptions) {
		o.ingestionOpts = append(o.ingestionOpts, opts...)
	}
}

// WithPlannerOptions passes options through to the query planner.
func WithPlannerOptions(opts ...retrieval.PlannerOption) Option {
	return func(o *engineOptions) {
		o.plannerOpts = append(o.plannerOpts, opts...)
	}
}

// WithRankerOptions passes options through to the fusion ranker.
func WithRankerOptions(opts ...retrieval.RankerOption) Option {
	return func(o *engineOptions) {
		o.rankerOpts = append(o.rankerOpts, opts...)
	}
}

// Open opens (or creates) the Badger database at path and wires an Engine on it.
func Open(path string, opts ...Option) (*Engine, error) {
	options := &engineOptions{
		logger:    slog.Default(),
		threshold: resolve.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(options)
	}
	if err := options.budget.Validate(); err != nil {
		return nil, err
	}

	// Open backend
	var (
		stores *badger.Stores
		err    error
	)
	if options.inMemory {
		stores, err = badger.NewMemoryStores()
	} else {
		stores, err = badger.OpenStores(path)
	}
	if err != nil {
		return nil, err
	}

	e := &Engine{
		stores:  stores,
		graph:   stores.Graph,
		vectors: stores.Vectors,
		metrics: options.metrics,
		budget:  options.budget,
		logger:  options.logger.With("component", "engine"),
	}
	if options.graph != nil {
		e.graph = options.graph
	}
	if options.vectors != nil {
		e.vectors = options.vectors
	}

	// Create AI provider with configured settings
	provider := options.provider
	if provider == nil {
		config := options.aiConfig
		if config == nil {
			config = ai.DefaultConfig()
		}
		provider, err = openai.NewProvider(config)
		if err != nil {
			e.closeStores()
			return nil, err
		}
	}
	e.provider = provider

	if err := e.wire(options); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) wire(options *engineOptions) error {
	resolver, err := resolve.New(e.graph,
		resolve.WithThreshold(options.threshold),
		resolve.WithLogger(options.logger))
	if err != nil {
		return err
	}

	ingestionOpts := []ingestion.Option{
		ingestion.WithLogger(options.logger),
		ingestion.WithDocumentStore(e.stores.Documents),
		ingestion.WithResolver(resolver),
	}
	if e.metrics != nil {
		ingestionOpts = append(ingestionOpts, ingestion.WithObserver(e.metrics))
	}
	e.pipeline, err = ingestion.NewPipeline(e.graph, e.vectors, e.provider,
		append(ingestionOpts, options.ingestionOpts...)...)
	if err != nil {
		return err
	}

	plannerOpts := append([]retrieval.PlannerOption{retrieval.WithLogger(options.logger)}, options.plannerOpts...)
	e.planner, err = retrieval.NewPlanner(e.graph, e.vectors, e.provider, resolver, plannerOpts...)
	if err != nil {
		return err
	}

	e.ranker, err = retrieval.NewRanker(options.rankerOpts...)
	return err
}

// Close releases the worker pools, the provider and the stores.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	// Stop accepting work before the stores go away
	if e.pipeline != nil {
		e.pipeline.Release()
	}

	var errs []error
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if err := e.closeStores(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Engine) closeStores() error {
	var errs []error
	if e.graph != nil && e.graph != storage.GraphStore(e.stores.Graph) {
		if err := e.graph.Close(); err != nil {
			e.logger.Error("error closing graph store", "err", err)
			errs = append(errs, err)
		}
	}
	if e.vectors != nil && e.vectors != storage.VectorStore(e.stores.Vectors) {
		if err := e.vectors.Close(); err != nil {
			e.logger.Error("error closing vector store", "err", err)
			errs = append(errs, err)
		}
	}
	if err := e.stores.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Graph returns the knowledge graph store.
func (e *Engine) Graph() storage.GraphStore {
	return e.graph
}

// Vectors returns the vector store in use.
func (e *Engine) Vectors() storage.VectorStore {
	return e.vectors
}

// Documents returns the document and outcome store.
func (e *Engine) Documents() storage.DocumentStore {
	return e.stores.Documents
}

// Provider returns the embedding and extraction provider.
func (e *Engine) Provider() ai.AIProvider {
	return e.provider
}

// Ingest runs one document through the ingestion pipeline.
func (e *Engine) Ingest(ctx context.Context, doc *core.Document) (*core.IngestOutcome, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	return e.pipeline.Ingest(ctx, doc)
}

// IngestAll ingests docs concurrently and returns their outcomes in input order.
func (e *Engine) IngestAll(ctx context.Context, docs []*core.Document) ([]*core.IngestOutcome, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	return e.pipeline.IngestAll(ctx, docs)
}

// Outcome returns the last recorded ingest outcome of a document.
// Returns storage.ErrNotFound if the document was never ingested.
func (e *Engine) Outcome(ctx context.Context, documentID string) (*core.IngestOutcome, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	return e.stores.Documents.GetOutcome(ctx, documentID)
}

// RetrieveOptions tune a single retrieve call.
type RetrieveOptions struct {
	Budget  retrieval.Budget
	Filter  *core.Filter
	Monitor retrieval.Monitor
}

// Retrieve answers q within the engine's default budget.
func (e *Engine) Retrieve(ctx context.Context, q *core.Query) (*core.RetrievalResult, error) {
	return e.RetrieveWith(ctx, q, RetrieveOptions{Budget: e.budget})
}

// RetrieveWithBudget answers q within budget.
func (e *Engine) RetrieveWithBudget(ctx context.Context, q *core.Query, budget retrieval.Budget) (*core.RetrievalResult, error) {
	return e.RetrieveWith(ctx, q, RetrieveOptions{Budget: budget})
}

// RetrieveWith runs both retrieval paths and fuses their hits.
//
// A query without an ID is assigned one. The result is partial when one path
// failed; when both fail the error wraps core.ErrRetrievalUnavailable.
func (e *Engine) RetrieveWith(ctx context.Context, q *core.Query, opts RetrieveOptions) (*core.RetrievalResult, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if err := opts.Budget.Validate(); err != nil {
		return nil, err
	}
	if q == nil {
		return nil, fmt.Errorf("%w: nil query", core.ErrInvalidQuery)
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.At.IsZero() {
		q.At = time.Now().UTC()
	}

	started := time.Now()
	result, err := e.retrieve(ctx, q, opts)
	if e.metrics != nil {
		e.metrics.RecordRetrieval(result, err, time.Since(started))
	}
	if err != nil {
		e.logger.Warn("retrieval failed", "query", q.ID, "err", err)
		return nil, err
	}
	e.logger.Debug("retrieval finished",
		"query", q.ID,
		"evidence", len(result.Evidence),
		"partial", result.Partial,
		"elapsed", time.Since(started))
	return result, nil
}

func (e *Engine) retrieve(ctx context.Context, q *core.Query, opts RetrieveOptions) (*core.RetrievalResult, error) {
	hits, err := e.planner.PlanWithMonitor(ctx, q, opts.Filter, opts.Monitor)
	if err != nil {
		return nil, err
	}

	evidence := e.ranker.Rank(hits, opts.Budget)
	if opts.Monitor != nil {
		opts.Monitor.Finish(evidence)
	}
	return &core.RetrievalResult{
		QueryID:      q.ID,
		Query:        q.Text,
		Entities:     hits.Entities,
		Evidence:     evidence,
		Partial:      hits.Partial(),
		Degradations: hits.Degradations,
	}, nil
}

// Stats summarises what the engine holds.
type Stats struct {
	storage.GraphStats
	Chunks    int `json:"chunks"`
	Dimension int `json:"dimension"`
	Documents int `json:"documents"`
	Failed    int `json:"failed"`
}

// Stats reports graph, vector and ingest outcome counts.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	graphStats, err := e.graph.Stats(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := e.vectors.Count(ctx)
	if err != nil {
		return nil, err
	}
	dim, err := e.vectors.Dimension(ctx)
	if err != nil {
		return nil, err
	}
	outcomes, err := e.stores.Documents.ListOutcomes(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{GraphStats: graphStats, Chunks: chunks, Dimension: dim, Documents: len(outcomes)}
	for _, o := range outcomes {
		if o.State == core.StateFailed {
			stats.Failed++
		}
	}
	return stats, nil
}
