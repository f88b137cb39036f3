package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtraction_Sanitize(t *testing.T) {
	ext := &Extraction{
		Entities: []ExtractedEntity{
			{Name: " Acme Corp ", Type: "organization"},
			{Name: "acme corp", Type: "organization"},
			{Name: "Zenith Inc", Type: "company"},
			{Name: "", Type: "person"},
		},
		Relationships: []ExtractedRelationship{
			{Source: "Acme Corp", Relation: "acquired", Target: "zenith inc", Confidence: 0.9},
			{Source: "Acme Corp", Relation: "employs", Target: "Jane Doe", Confidence: 0.8},
			{Source: "Acme Corp", Relation: " ", Target: "Zenith Inc", Confidence: 0.8},
			{Source: "Zenith Inc", Relation: "based_in", Target: "Acme Corp", Confidence: 0},
		},
	}

	dropped := ext.Sanitize()

	require.Len(t, ext.Entities, 2)
	assert.Equal(t, "Acme Corp", ext.Entities[0].Name)
	assert.Equal(t, "Zenith Inc", ext.Entities[1].Name)

	require.Len(t, ext.Relationships, 2)
	assert.Equal(t, "acquired", ext.Relationships[0].Relation)
	assert.Equal(t, 1.0, ext.Relationships[1].Confidence)
	assert.Len(t, dropped, 2)
}

func TestEntityTypeNames(t *testing.T) {
	names := EntityTypeNames()
	assert.Contains(t, names, "person")
	assert.Contains(t, names, "organization")
	assert.Contains(t, names, "other")
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "ingestion", ModeIngestion.String())
	assert.Equal(t, "query", ModeQuery.String())
}

type countingEmbedder struct{ calls int }

func (c *countingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return []float32{1}, nil
}

func (c *countingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	return make([][]float32, len(texts)), nil
}

func TestNewRateLimitedEmbedder(t *testing.T) {
	t.Run("disabled returns the embedder", func(t *testing.T) {
		inner := &countingEmbedder{}
		assert.Same(t, inner, NewRateLimitedEmbedder(inner, 0))
	})

	t.Run("passes calls through", func(t *testing.T) {
		inner := &countingEmbedder{}
		limited := NewRateLimitedEmbedder(inner, 100)

		_, err := limited.EmbedText(context.Background(), "a")
		require.NoError(t, err)
		_, err = limited.EmbedTexts(context.Background(), []string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, 2, inner.calls)
	})

	t.Run("honours context while waiting", func(t *testing.T) {
		inner := &countingEmbedder{}
		limited := NewRateLimitedEmbedder(inner, 0.001)

		// The first call consumes the only token.
		_, err := limited.EmbedText(context.Background(), "a")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err = limited.EmbedText(ctx, "b")
		require.Error(t, err)
		assert.Equal(t, 1, inner.calls)
	})
}
