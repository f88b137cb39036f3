package core

import (
	"encoding/binary"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for chunks, entities and relationships.
// It is generated using content-based hashing so that re-ingesting
// unchanged content yields the same identifiers.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkID derives the identifier of the chunk spanning [start, end) of a
// document version. contentHash is the document's ContentHash, so an edited
// document never reuses the IDs of its previous chunks.
func ChunkID(documentID string, contentHash ID, start, end int) ID {
	return IDFromContent(fmt.Sprintf("%s:%d:%d:%d", documentID, contentHash, start, end))
}

// EntityID derives the identifier minted for a new canonical entity.
// normalizedName must already be normalized by the resolver.
func EntityID(entityType EntityType, normalizedName string) ID {
	return IDFromContent(string(entityType) + ":" + normalizedName)
}

// RelationshipID derives the identifier of the edge (source, target, type).
func RelationshipID(sourceID, targetID ID, relationType string) ID {
	return IDFromContent(fmt.Sprintf("%d:%d:%s", sourceID, targetID, relationType))
}

// Document is an immutable source unit handed to the ingestion pipeline.
type Document struct {
	ID         string
	Origin     string            // File name or path the text was extracted from
	Text       string            // Normalized plain text
	Metadata   map[string]string // Optional caller metadata, copied onto every chunk
	IngestedAt time.Time
}

// ContentHash identifies the document text.
// Two documents with the same hash have identical chunk boundaries.
func (d *Document) ContentHash() ID {
	return IDFromContent(d.Text)
}

// Chunk is a contiguous span of a Document.
// Start and End are character (rune) offsets, End is exclusive.
type Chunk struct {
	ID         ID
	DocumentID string
	Index      int
	Start      int
	End        int
	Text       string
	Embedding  []float32         // Nil until the embedder runs
	Metadata   map[string]string // Document metadata plus source_file and chunk_index
}

// Ref returns the provenance reference for the chunk.
func (c *Chunk) Ref() ChunkRef {
	return ChunkRef{
		ChunkID:    c.ID,
		DocumentID: c.DocumentID,
		Start:      c.Start,
		End:        c.End,
	}
}

// ChunkRef is the unit of provenance: it points at a chunk and its offsets.
type ChunkRef struct {
	ChunkID    ID     `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}

// EntityType is the closed set of entity kinds the core understands.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityLocation     EntityType = "location"
	EntityConcept      EntityType = "concept"
	EntityEvent        EntityType = "event"
	EntityProduct      EntityType = "product"
	EntityDate         EntityType = "date"
	EntityOther        EntityType = "other"
)

// EntityTypes lists every valid EntityType.
var EntityTypes = []EntityType{
	EntityPerson,
	EntityOrganization,
	EntityLocation,
	EntityConcept,
	EntityEvent,
	EntityProduct,
	EntityDate,
	EntityOther,
}

var entityTypeSynonyms = map[string]EntityType{
	"people":       EntityPerson,
	"human":        EntityPerson,
	"org":          EntityOrganization,
	"company":      EntityOrganization,
	"corporation":  EntityOrganization,
	"organisation": EntityOrganization,
	"institution":  EntityOrganization,
	"place":        EntityLocation,
	"city":         EntityLocation,
	"country":      EntityLocation,
	"gpe":          EntityLocation,
	"idea":         EntityConcept,
	"topic":        EntityConcept,
	"technology":   EntityConcept,
	"time":         EntityDate,
	"year":         EntityDate,
}

// ParseEntityType maps a free-form type label onto the closed set.
// Unknown labels become EntityOther.
func ParseEntityType(label string) EntityType {
	l := strings.ToLower(strings.TrimSpace(label))
	l = strings.ReplaceAll(l, " ", "_")
	for _, t := range EntityTypes {
		if string(t) == l {
			return t
		}
	}
	if t, ok := entityTypeSynonyms[l]; ok {
		return t
	}
	return EntityOther
}

// IsValid reports whether t belongs to the closed set.
func (t EntityType) IsValid() bool {
	for _, v := range EntityTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Mention records one sighting of an entity inside a chunk.
// Mentions are keyed by (ChunkID, Offset).
type Mention struct {
	ChunkID    ID     `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Offset     int    `json:"offset"`
}

// Entity is a canonical real-world concept.
type Entity struct {
	ID         ID
	Type       EntityType
	Name       string
	Aliases    []string
	Mentions   []Mention
	Attributes map[string]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasAlias reports whether alias is already known, ignoring case.
func (e *Entity) HasAlias(alias string) bool {
	for _, a := range e.Aliases {
		if strings.EqualFold(a, alias) {
			return true
		}
	}
	return false
}

// HasMention reports whether the mention is already recorded.
func (e *Entity) HasMention(m Mention) bool {
	for _, existing := range e.Mentions {
		if existing.ChunkID == m.ChunkID && existing.Offset == m.Offset {
			return true
		}
	}
	return false
}

// Merge accretes aliases, mentions and attributes from other into e.
// It returns true when e changed.
func (e *Entity) Merge(other *Entity) bool {
	changed := false
	for _, alias := range other.Aliases {
		if !e.HasAlias(alias) {
			e.Aliases = append(e.Aliases, alias)
			changed = true
		}
	}
	for _, m := range other.Mentions {
		if !e.HasMention(m) {
			e.Mentions = append(e.Mentions, m)
			changed = true
		}
	}
	for k, v := range other.Attributes {
		if e.Attributes == nil {
			e.Attributes = make(map[string]string)
		}
		if old, ok := e.Attributes[k]; !ok || old != v {
			e.Attributes[k] = v
			changed = true
		}
	}
	return changed
}

// ForgetDocument drops the mentions found in the document's chunks.
// It returns true when e changed.
func (e *Entity) ForgetDocument(documentID string) bool {
	n := len(e.Mentions)
	e.Mentions = slices.DeleteFunc(e.Mentions, func(m Mention) bool {
		return m.DocumentID == documentID
	})
	return len(e.Mentions) != n
}

// Relationship is a directed, typed edge between two canonical entities.
type Relationship struct {
	ID         ID
	SourceID   ID
	TargetID   ID
	Type       string
	Confidence float64
	Provenance []ChunkRef
	// Support holds the confidence each provenance chunk lends the edge.
	// Confidence is the noisy-or of these values.
	Support   map[ID]float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasProvenance reports whether the chunk already supports the relationship.
func (r *Relationship) HasProvenance(chunkID ID) bool {
	for _, p := range r.Provenance {
		if p.ChunkID == chunkID {
			return true
		}
	}
	return false
}

// Reinforce folds a repeated extraction of the same edge into r.
// Evidence from a new chunk combines noisy-or style; evidence from a
// chunk already in the provenance set only raises that chunk's support to
// the max, so re-ingesting the same chunk leaves r unchanged.
func (r *Relationship) Reinforce(other *Relationship) bool {
	support := r.support()
	changed := false
	for _, p := range other.Provenance {
		prev, known := support[p.ChunkID]
		if !known {
			r.Provenance = append(r.Provenance, p)
		}
		if !known || other.Confidence > prev {
			support[p.ChunkID] = other.Confidence
			changed = true
		}
	}
	if changed {
		r.Confidence = noisyOr(support)
	}
	return changed
}

// ForgetDocument drops the provenance contributed by the document's chunks
// and recomputes confidence from what remains. It returns true when r
// changed. A relationship left without provenance should be deleted.
func (r *Relationship) ForgetDocument(documentID string) bool {
	support := r.support()
	n := len(r.Provenance)
	r.Provenance = slices.DeleteFunc(r.Provenance, func(p ChunkRef) bool {
		if p.DocumentID != documentID {
			return false
		}
		delete(support, p.ChunkID)
		return true
	})
	if len(r.Provenance) == n {
		return false
	}
	r.Confidence = noisyOr(support)
	return true
}

// support returns r.Support, filling in chunks that have no recorded share.
// Those split whatever confidence the recorded shares do not explain.
func (r *Relationship) support() map[ID]float64 {
	if r.Support == nil {
		r.Support = make(map[ID]float64, len(r.Provenance))
	}
	var missing []ID
	explained := 1.0
	for _, p := range r.Provenance {
		if s, ok := r.Support[p.ChunkID]; ok {
			explained *= 1 - s
		} else if !slices.Contains(missing, p.ChunkID) {
			missing = append(missing, p.ChunkID)
		}
	}
	if len(missing) == 0 {
		return r.Support
	}
	share := 0.0
	if explained > 0 {
		rest := min(max((1-r.Confidence)/explained, 0), 1)
		share = 1 - math.Pow(rest, 1/float64(len(missing)))
	}
	for _, id := range missing {
		r.Support[id] = share
	}
	return r.Support
}

// noisyOr combines independent supports. Keys are visited in order so the
// result does not depend on map iteration.
func noisyOr(support map[ID]float64) float64 {
	disbelief := 1.0
	for _, id := range slices.Sorted(maps.Keys(support)) {
		disbelief *= 1 - support[id]
	}
	return 1 - disbelief
}

// NormalizeRelationType lowercases a relation label and joins words with underscores.
func NormalizeRelationType(relation string) string {
	rel := strings.ToLower(strings.TrimSpace(relation))
	rel = strings.ReplaceAll(rel, " ", "_")
	rel = strings.ReplaceAll(rel, "-", "_")
	return rel
}

// Query is the ephemeral state of one retrieve call.
type Query struct {
	ID       string
	Text     string
	Entities []string
	At       time.Time
}

// Origin names the retrieval path(s) that produced a piece of evidence.
type Origin string

const (
	OriginGraph  Origin = "graph"
	OriginVector Origin = "vector"
	OriginBoth   Origin = "both"
)

// FromGraph reports whether the graph path contributed.
func (o Origin) FromGraph() bool {
	return o == OriginGraph || o == OriginBoth
}

// FromVector reports whether the vector path contributed.
func (o Origin) FromVector() bool {
	return o == OriginVector || o == OriginBoth
}

// Fact is a graph statement supporting a piece of evidence.
type Fact struct {
	RelationshipID ID      `json:"relationship_id"`
	Source         string  `json:"source"`
	Relation       string  `json:"relation"`
	Target         string  `json:"target"`
	Confidence     float64 `json:"confidence"`
	Hops           int     `json:"hops"`
}

// String renders the fact as "source -relation-> target".
func (f Fact) String() string {
	return f.Source + " -" + f.Relation + "-> " + f.Target
}

// Evidence is one ranked item of a RetrievalResult.
type Evidence struct {
	ChunkRef
	Text        string  `json:"text"`
	Score       float64 `json:"score"`
	VectorScore float64 `json:"vector_score"`
	GraphScore  float64 `json:"graph_score"`
	Origin      Origin  `json:"origin"`
	Facts       []Fact  `json:"facts,omitempty"`
}

// Degradation explains why a retrieval path contributed nothing.
type Degradation struct {
	Path    string `json:"path"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// RetrievalResult is the ranked, bounded output of one retrieve call.
// It is owned by the caller and never persisted.
type RetrievalResult struct {
	QueryID      string        `json:"query_id"`
	Query        string        `json:"query"`
	Entities     []string      `json:"entities,omitempty"`
	Evidence     []Evidence    `json:"evidence"`
	Partial      bool          `json:"partial"`
	Degradations []Degradation `json:"degradations,omitempty"`
}

// GraphHit is a relationship reached by graph traversal.
type GraphHit struct {
	Relationship *Relationship
	Source       *Entity
	Target       *Entity
	Hops         int
}

// VectorHit is a chunk returned by nearest-neighbour search.
type VectorHit struct {
	Chunk *Chunk
	Score float32
}

// Filter restricts vector search to chunks matching every set field.
type Filter struct {
	DocumentIDs []string
	Metadata    map[string]string
}

// Matches reports whether the chunk satisfies the filter.
func (f *Filter) Matches(c *Chunk) bool {
	if f == nil {
		return true
	}
	if len(f.DocumentIDs) > 0 {
		found := false
		for _, id := range f.DocumentIDs {
			if id == c.DocumentID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for k, v := range f.Metadata {
		if c.Metadata[k] != v {
			return false
		}
	}
	return true
}
