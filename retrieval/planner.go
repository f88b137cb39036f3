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

package retrieval

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/santhosh0997/Multimodal-Rag-System/ai"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/resolve"
	"github.com/santhosh0997/Multimodal-Rag-System/retry"
	"github.com/santhosh0997/Multimodal-Rag-System/storage"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxHops bounds graph traversal from the query entities.
	DefaultMaxHops = 2

	// DefaultTopK is the number of nearest chunks the vector path fetches.
	DefaultTopK = 10
)

// Retrieval path names used in degradations.
const (
	PathGraph  = "graph"
	PathVector = "vector"
)

// Hits is the raw output of both retrieval paths, ready for ranking.
type Hits struct {
	// Entities are the canonical names of the resolved query entities.
	Entities []string

	// Graph holds traversal hits ordered by confidence, then hop count.
	Graph []core.GraphHit

	// Vector holds nearest chunks ordered by similarity.
	Vector []core.VectorHit

	// Chunks holds the chunks cited by graph hits. It is nil when they could
	// not be fetched; a non-nil map missing a cited chunk means the chunk is gone.
	Chunks map[core.ID]*core.Chunk

	// Filter is the filter the query ran with. Graph citations are held to it too.
	Filter *core.Filter

	// Degradations lists the paths that failed.
	Degradations []core.Degradation
}

// Partial reports whether a path failed.
func (h *Hits) Partial() bool {
	return len(h.Degradations) > 0
}

// admits reports whether a graph citation satisfies the query filter.
// Citations of chunks the vector store no longer holds are stale and never
// pass. Citations whose chunks could not be fetched only pass document filters.
func (h *Hits) admits(ref core.ChunkRef) bool {
	chunk := h.Chunks[ref.ChunkID]
	if chunk == nil && h.Chunks != nil {
		return false
	}
	if h.Filter == nil {
		return true
	}
	if chunk != nil {
		return h.Filter.Matches(chunk)
	}
	if len(h.Filter.DocumentIDs) > 0 && !slices.Contains(h.Filter.DocumentIDs, ref.DocumentID) {
		return false
	}
	return len(h.Filter.Metadata) == 0
}

// Planner runs the graph and vector retrieval paths for a query.
type Planner struct {
	graph     storage.GraphStore
	vectors   storage.VectorStore
	embedder  ai.Embedder
	extractor ai.Extractor
	resolver  *resolve.Resolver
	maxHops   int
	topK      int
	policy    retry.Policy
	logger    *slog.Logger
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner) error

// WithMaxHops sets the traversal depth. Default is 2.
func WithMaxHops(hops int) PlannerOption {
	return func(p *Planner) error {
		if hops < 1 {
			return fmt.Errorf("%w: max hops must be positive, got %d", core.ErrConfig, hops)
		}
		p.maxHops = hops
		return nil
	}
}

// WithTopK sets the number of chunks fetched by the vector path. Default is 10.
func WithTopK(k int) PlannerOption {
	return func(p *Planner) error {
		if k < 1 {
			return fmt.Errorf("%w: top k must be positive, got %d", core.ErrConfig, k)
		}
		p.topK = k
		return nil
	}
}

// WithRetryPolicy sets the policy applied to every provider and store call.
func WithRetryPolicy(policy retry.Policy) PlannerOption {
	return func(p *Planner) error {
		if err := policy.Validate(); err != nil {
			return err
		}
		p.policy = policy
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) PlannerOption {
	return func(p *Planner) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPlanner creates a new query planner.
func NewPlanner(
	graph storage.GraphStore,
	vectors storage.VectorStore,
	provider ai.AIProvider,
	resolver *resolve.Resolver,
	opts ...PlannerOption,
) (*Planner, error) {
	if graph == nil {
		return nil, ErrGraphStoreRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	if resolver == nil {
		return nil, ErrResolverRequired
	}

	p := &Planner{
		graph:     graph,
		vectors:   vectors,
		embedder:  provider.Embedder(),
		extractor: provider.Extractor(),
		resolver:  resolver,
		maxHops:   DefaultMaxHops,
		topK:      DefaultTopK,
		policy:    retry.DefaultPolicy(),
		logger:    slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "planner")
	return p, nil
}

// Plan runs both retrieval paths for q.
func (p *Planner) Plan(ctx context.Context, q *core.Query, filter *core.Filter) (*Hits, error) {
	return p.PlanWithMonitor(ctx, q, filter, nil)
}

// PlanWithMonitor runs both retrieval paths for q concurrently with monitoring.
//
// A failing path is recorded as a degradation and the other path's hits are
// returned. When both paths fail the error wraps core.ErrRetrievalUnavailable
// and both causes. When ctx is canceled the error is ctx.Err().
func (p *Planner) PlanWithMonitor(ctx context.Context, q *core.Query, filter *core.Filter, monitor Monitor) (*Hits, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if q == nil || strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("%w: empty query text", core.ErrInvalidQuery)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	monitor.Start(q)

	var (
		graph     *graphResult
		vector    []core.VectorHit
		graphErr  error
		vectorErr error
	)
	// Each path records its own failure; neither cancels the other.
	var g errgroup.Group
	g.Go(func() error {
		graph, graphErr = p.graphPath(ctx, q, monitor)
		return nil
	})
	g.Go(func() error {
		vector, vectorErr = p.vectorPath(ctx, q.Text, filter, monitor)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hits := &Hits{Filter: filter}
	if graphErr != nil {
		p.logger.Warn("graph path failed", "query", q.ID, "err", graphErr)
		monitor.PathFailed(PathGraph, graphErr)
		hits.Degradations = append(hits.Degradations, degradation(PathGraph, graphErr))
	} else {
		hits.Entities = graph.names
		hits.Graph = graph.hits
		hits.Chunks = graph.chunks
	}
	if vectorErr != nil {
		p.logger.Warn("vector path failed", "query", q.ID, "err", vectorErr)
		monitor.PathFailed(PathVector, vectorErr)
		hits.Degradations = append(hits.Degradations, degradation(PathVector, vectorErr))
	} else {
		hits.Vector = vector
	}

	if graphErr != nil && vectorErr != nil {
		return nil, errors.Join(core.ErrRetrievalUnavailable, graphErr, vectorErr)
	}
	return hits, nil
}

type graphResult struct {
	names  []string
	hits   []core.GraphHit
	chunks map[core.ID]*core.Chunk
}

// graphPath resolves the entities named by the query and walks their
// neighbourhood. A query naming no known entity yields no hits, not an error.
func (p *Planner) graphPath(ctx context.Context, q *core.Query, monitor Monitor) (*graphResult, error) {
	mentions, err := p.queryEntities(ctx, q)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(mentions))
	for i, m := range mentions {
		names[i] = m.Name
	}
	monitor.AfterQueryExtraction(names)

	result := &graphResult{}
	var seeds []core.ID
	for _, m := range mentions {
		res, err := retry.DoValue(ctx, p.policy, func(ctx context.Context) (*resolve.Resolution, error) {
			return p.resolver.Lookup(ctx, m.Name, core.ParseEntityType(m.Type))
		})
		if storage.IsNotFound(err) {
			p.logger.Debug("query entity not in graph", "name", m.Name)
			continue
		}
		if err != nil {
			return nil, retry.Classify(core.ErrGraphUnavailable, err)
		}
		if slices.Contains(seeds, res.EntityID) {
			continue
		}
		seeds = append(seeds, res.EntityID)
		result.names = append(result.names, res.Entity.Name)
	}
	monitor.AfterEntityResolution(seeds)
	if len(seeds) == 0 {
		return result, nil
	}

	hits, err := retry.DoValue(ctx, p.policy, func(ctx context.Context) ([]core.GraphHit, error) {
		return p.graph.Traverse(ctx, seeds, p.maxHops)
	})
	if err != nil {
		return nil, retry.Classify(core.ErrGraphUnavailable, err)
	}
	slices.SortStableFunc(hits, compareGraphHits)
	monitor.AfterTraversal(hits)

	result.hits = hits
	result.chunks = p.citedChunks(ctx, hits)
	return result, nil
}

// queryEntities returns the entity mentions of the query: the caller's list
// when given, otherwise what the extractor finds in query mode.
func (p *Planner) queryEntities(ctx context.Context, q *core.Query) ([]ai.ExtractedEntity, error) {
	if len(q.Entities) > 0 {
		mentions := make([]ai.ExtractedEntity, 0, len(q.Entities))
		for _, name := range q.Entities {
			if strings.TrimSpace(name) != "" {
				mentions = append(mentions, ai.ExtractedEntity{Name: name})
			}
		}
		return mentions, nil
	}

	extraction, err := retry.DoValue(ctx, p.policy, func(ctx context.Context) (*ai.Extraction, error) {
		return p.extractor.Extract(ctx, q.Text, ai.ModeQuery)
	})
	if err != nil {
		return nil, retry.Classify(core.ErrExtractionUnavailable, err)
	}
	if extraction == nil {
		return nil, nil
	}
	return extraction.Entities, nil
}

// citedChunks fetches the chunks cited by hits so graph evidence carries its
// text. A failure only costs the text, so it is logged and not returned.
func (p *Planner) citedChunks(ctx context.Context, hits []core.GraphHit) map[core.ID]*core.Chunk {
	var ids []core.ID
	seen := make(map[core.ID]bool)
	for _, h := range hits {
		for _, ref := range h.Relationship.Provenance {
			if !seen[ref.ChunkID] {
				seen[ref.ChunkID] = true
				ids = append(ids, ref.ChunkID)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	chunks, err := retry.DoValue(ctx, p.policy, func(ctx context.Context) ([]*core.Chunk, error) {
		return p.vectors.GetChunks(ctx, ids...)
	})
	if err != nil {
		p.logger.Warn("error fetching cited chunks", "chunks", len(ids), "err", err)
		return nil
	}
	byID := make(map[core.ID]*core.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}
	return byID
}

func (p *Planner) vectorPath(ctx context.Context, text string, filter *core.Filter, monitor Monitor) ([]core.VectorHit, error) {
	vector, err := retry.DoValue(ctx, p.policy, func(ctx context.Context) ([]float32, error) {
		return p.embedder.EmbedText(ctx, text)
	})
	if err != nil {
		return nil, retry.Classify(core.ErrEmbeddingUnavailable, err)
	}

	hits, err := retry.DoValue(ctx, p.policy, func(ctx context.Context) ([]core.VectorHit, error) {
		return p.vectors.Search(ctx, vector, p.topK, filter)
	})
	if err != nil {
		return nil, retry.Classify(core.ErrVectorUnavailable, err)
	}
	monitor.AfterVectorSearch(hits)
	return hits, nil
}

func degradation(path string, err error) core.Degradation {
	return core.Degradation{
		Path:    path,
		Reason:  core.Reason(err),
		Message: err.Error(),
	}
}

// compareGraphHits orders by confidence descending, then hops ascending,
// then relationship ID.
func compareGraphHits(a, b core.GraphHit) int {
	if c := cmp.Compare(b.Relationship.Confidence, a.Relationship.Confidence); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Hops, b.Hops); c != 0 {
		return c
	}
	return cmp.Compare(a.Relationship.ID, b.Relationship.ID)
}
