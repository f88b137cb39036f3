package ingestion

import (
	"context"
	"log/slog"
	"slices"

	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/retry"
	"github.com/santhosh0997/Multimodal-Rag-System/storage"
)

// WriteStats counts what a writer stored.
type WriteStats struct {
	Entities      int
	Relationships int
	Chunks        int
}

// GraphWriter persists canonical entities and relationships.
// Writes are keyed by entity ID and by (source, target, type), so writing the
// same facts twice leaves the graph unchanged.
type GraphWriter struct {
	store  storage.GraphStore
	policy retry.Policy
	logger *slog.Logger
}

// NewGraphWriter creates a GraphWriter.
func NewGraphWriter(store storage.GraphStore, policy retry.Policy, logger *slog.Logger) *GraphWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphWriter{
		store:  store,
		policy: policy,
		logger: logger.With("component", "graph-writer"),
	}
}

// Write upserts entities first, then the relationships between them.
// Entities and relationships sharing a key are folded together before writing.
func (w *GraphWriter) Write(ctx context.Context, entities []*core.Entity, relationships []*core.Relationship) (WriteStats, error) {
	var stats WriteStats

	for _, entity := range dedupeEntities(entities) {
		_, err := retry.DoValue(ctx, w.policy, func(ctx context.Context) (*core.Entity, error) {
			return w.store.UpsertEntity(ctx, entity)
		})
		if err != nil {
			return stats, retry.Classify(core.ErrGraphUnavailable, err)
		}
		stats.Entities++
	}

	for _, rel := range dedupeRelationships(relationships) {
		_, err := retry.DoValue(ctx, w.policy, func(ctx context.Context) (*core.Relationship, error) {
			return w.store.UpsertRelationship(ctx, rel)
		})
		if err != nil {
			return stats, retry.Classify(core.ErrGraphUnavailable, err)
		}
		stats.Relationships++
	}

	w.logger.Debug("wrote graph", "entities", stats.Entities, "relationships", stats.Relationships)
	return stats, nil
}

// VectorWriter persists embedded chunks keyed by chunk ID.
type VectorWriter struct {
	store     storage.VectorStore
	policy    retry.Policy
	batchSize int
	logger    *slog.Logger
}

// NewVectorWriter creates a VectorWriter writing batchSize chunks per call.
func NewVectorWriter(store storage.VectorStore, policy retry.Policy, batchSize int, logger *slog.Logger) *VectorWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize < 1 {
		batchSize = DefaultEmbedBatchSize
	}
	return &VectorWriter{
		store:     store,
		policy:    policy,
		batchSize: batchSize,
		logger:    logger.With("component", "vector-writer"),
	}
}

// Write upserts chunks in batches. Later chunks with the same ID replace earlier ones.
func (w *VectorWriter) Write(ctx context.Context, chunks []*core.Chunk) (WriteStats, error) {
	var stats WriteStats
	unique := dedupeChunks(chunks)
	for group := range slices.Chunk(unique, w.batchSize) {
		err := retry.Do(ctx, w.policy, func(ctx context.Context) error {
			return w.store.UpsertVectors(ctx, group...)
		})
		if err != nil {
			return stats, retry.Classify(core.ErrVectorUnavailable, err)
		}
		stats.Chunks += len(group)
	}
	w.logger.Debug("wrote vectors", "chunks", stats.Chunks)
	return stats, nil
}

// dedupeEntities merges entities sharing an ID, keeping first-seen order.
func dedupeEntities(entities []*core.Entity) []*core.Entity {
	byID := make(map[core.ID]*core.Entity, len(entities))
	result := make([]*core.Entity, 0, len(entities))
	for _, e := range entities {
		if existing, ok := byID[e.ID]; ok {
			existing.Merge(e)
			continue
		}
		byID[e.ID] = e
		result = append(result, e)
	}
	return result
}

// dedupeRelationships folds relationships sharing a key with Reinforce.
func dedupeRelationships(relationships []*core.Relationship) []*core.Relationship {
	byID := make(map[core.ID]*core.Relationship, len(relationships))
	result := make([]*core.Relationship, 0, len(relationships))
	for _, rel := range relationships {
		rel.Type = core.NormalizeRelationType(rel.Type)
		id := core.RelationshipID(rel.SourceID, rel.TargetID, rel.Type)
		if existing, ok := byID[id]; ok {
			existing.Reinforce(rel)
			continue
		}
		rel.ID = id
		byID[id] = rel
		result = append(result, rel)
	}
	return result
}

func dedupeChunks(chunks []*core.Chunk) []*core.Chunk {
	index := make(map[core.ID]int, len(chunks))
	result := make([]*core.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if i, ok := index[c.ID]; ok {
			result[i] = c
			continue
		}
		index[c.ID] = len(result)
		result = append(result, c)
	}
	return result
}
