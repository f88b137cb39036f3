package storage

import (
	"context"

	"github.com/santhosh0997/Multimodal-Rag-System/core"
)

// EntityStore provides canonical entity persistence and the lookups used by
// entity resolution. Implementations must be thread-safe.
type EntityStore interface {
	// GetEntity retrieves a single entity by ID.
	// Returns ErrNotFound if the entity doesn't exist.
	GetEntity(ctx context.Context, id core.ID) (*core.Entity, error)

	// GetEntities retrieves multiple entities by their IDs.
	// Returns only the entities that exist (no error for missing entities).
	GetEntities(ctx context.Context, ids ...core.ID) ([]*core.Entity, error)

	// FindByAlias returns the entities carrying alias, compared case-insensitively,
	// ordered by ID. Returns an empty slice when nothing matches.
	FindByAlias(ctx context.Context, alias string) ([]*core.Entity, error)

	// ListEntities returns all entities of the given type ordered by ID.
	// An empty type lists every entity.
	ListEntities(ctx context.Context, entityType core.EntityType) ([]*core.Entity, error)

	// CreateEntity stores a new entity and indexes its name and aliases.
	// Returns ErrDuplicateKey if an entity with the same ID already exists.
	CreateEntity(ctx context.Context, entity *core.Entity) (*core.Entity, error)

	// UpsertEntity creates the entity or merges aliases, mentions and
	// attributes into the stored one. Returns the stored state.
	UpsertEntity(ctx context.Context, entity *core.Entity) (*core.Entity, error)
}

// GraphStore is the knowledge graph: entities plus typed, directed
// relationships between them.
type GraphStore interface {
	EntityStore

	// UpsertRelationship creates the relationship or reinforces the stored one
	// keyed by (source, target, type). Both endpoints must already exist.
	UpsertRelationship(ctx context.Context, rel *core.Relationship) (*core.Relationship, error)

	// GetRelationship retrieves a relationship by ID.
	// Returns ErrNotFound if the relationship doesn't exist.
	GetRelationship(ctx context.Context, id core.ID) (*core.Relationship, error)

	// RelationshipsOf returns every relationship with the entity as source or target.
	RelationshipsOf(ctx context.Context, entityID core.ID) ([]*core.Relationship, error)

	// Traverse walks relationships in either direction from the seed entities
	// for up to maxHops hops. Each relationship is reported once, at the
	// smallest hop count it was reached with.
	Traverse(ctx context.Context, seeds []core.ID, maxHops int) ([]core.GraphHit, error)

	// ForgetDocument removes every mention and provenance reference pointing
	// at the document's chunks. Relationships left without provenance are
	// deleted; entities are kept.
	ForgetDocument(ctx context.Context, documentID string) (ForgetResult, error)

	// Stats reports entity and relationship counts.
	Stats(ctx context.Context) (GraphStats, error)

	// Close releases resources held by the store.
	Close() error
}

// ForgetResult counts what ForgetDocument touched.
type ForgetResult struct {
	Entities             int // Entities that lost mentions
	Relationships        int // Relationships that lost some provenance
	DeletedRelationships int // Relationships that lost all of it
}

// GraphStats summarises the size of a graph store.
type GraphStats struct {
	Entities      int `json:"entities"`
	Relationships int `json:"relationships"`
}

// VectorStore persists chunk embeddings and answers similarity queries.
// Implementations must be thread-safe.
type VectorStore interface {
	// UpsertVectors stores chunks keyed by chunk ID, replacing earlier versions.
	// Every chunk must carry an embedding. The first write fixes the store's
	// dimension; later writes with another size fail with core.ErrDimensionMismatch.
	UpsertVectors(ctx context.Context, chunks ...*core.Chunk) error

	// Search returns up to k chunks ordered by cosine similarity, highest first,
	// restricted to chunks matching filter (nil matches everything).
	Search(ctx context.Context, vector []float32, k int, filter *core.Filter) ([]core.VectorHit, error)

	// GetChunks retrieves chunks by ID. Missing chunks are skipped.
	GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error)

	// DeleteDocument removes every chunk of a document and returns how many were removed.
	DeleteDocument(ctx context.Context, documentID string) (int, error)

	// ForEachChunk calls fn for every stored chunk in ID order.
	// Iteration stops at the first error fn returns.
	ForEachChunk(ctx context.Context, fn func(*core.Chunk) error) error

	// Dimension returns the stored embedding size, or 0 when nothing was written yet.
	Dimension(ctx context.Context) (int, error)

	// SetDimension overrides the stored embedding size, used when re-embedding
	// the corpus with a different model.
	SetDimension(ctx context.Context, dim int) error

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// DocumentStore records ingested documents and their latest ingest outcome.
type DocumentStore interface {
	// PutDocument stores or replaces a document.
	PutDocument(ctx context.Context, doc *core.Document) error

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// PutOutcome stores the latest outcome for outcome.DocumentID.
	PutOutcome(ctx context.Context, outcome *core.IngestOutcome) error

	// GetOutcome retrieves the latest outcome for a document.
	// Returns ErrNotFound if the document was never ingested.
	GetOutcome(ctx context.Context, documentID string) (*core.IngestOutcome, error)

	// ListOutcomes returns every recorded outcome ordered by document ID.
	ListOutcomes(ctx context.Context) ([]*core.IngestOutcome, error)

	// Close releases resources held by the store.
	Close() error
}
