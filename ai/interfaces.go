package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error wrapping core.ErrEmbeddingUnavailable on transport,
	// quota or timeout failures.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Mode selects what an Extractor is asked to find.
type Mode int

const (
	// ModeIngestion extracts entities and the relationships between them.
	ModeIngestion Mode = iota
	// ModeQuery extracts only the entities a question refers to.
	ModeQuery
)

func (m Mode) String() string {
	if m == ModeQuery {
		return "query"
	}
	return "ingestion"
}

// Extractor finds candidate entities and relationships in text.
// Implementations must be thread-safe for concurrent use.
type Extractor interface {
	// Extract analyzes text in the given mode.
	// Returns an error wrapping core.ErrExtractionUnavailable when the model
	// cannot be reached, or core.ErrExtractionMalformed when its output
	// cannot be parsed. An empty Extraction is not an error.
	Extract(ctx context.Context, text string, mode Mode) (*Extraction, error)
}

// ExtractedEntity is a candidate entity mention.
type ExtractedEntity struct {
	// Name is the surface form as it appears in the text.
	Name string `json:"name"`

	// Type is a free-form label; core.ParseEntityType maps it onto the closed set.
	Type string `json:"type"`

	// Attributes are optional facts about the entity itself, such as a founding
	// year. Keys that do not normalize to lower snake case are dropped.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ExtractedRelationship is a candidate (source, relation, target) triple.
// Source and Target refer to names in the same Extraction's entity set.
type ExtractedRelationship struct {
	Source     string  `json:"source"`
	Relation   string  `json:"relation"`
	Target     string  `json:"target"`
	Confidence float64 `json:"confidence"`
}

// Extraction is the result of one Extract call.
type Extraction struct {
	Entities      []ExtractedEntity
	Relationships []ExtractedRelationship
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Extractor returns the entity and relationship extraction service.
	Extractor() Extractor

	// Close releases resources held by the provider and its services.
	Close() error
}
