package mock

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/santhosh0997/Multimodal-Rag-System/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestHashVector(t *testing.T) {
	v := HashVector("Acme Corp acquired Zenith Inc", DefaultDimension)
	require.Len(t, v, DefaultDimension)
	assert.InDelta(t, 1.0, math.Sqrt(dot(v, v)), 1e-6)

	assert.Equal(t, v, HashVector("acme corp, acquired zenith inc!", DefaultDimension))

	related := HashVector("Who acquired Zenith?", DefaultDimension)
	unrelated := HashVector("Bananas grow in tropical climates.", DefaultDimension)
	assert.Greater(t, dot(v, related), dot(v, unrelated))

	empty := HashVector("the of and", 8)
	assert.Equal(t, float32(1), empty[0])
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"acme", "corp", "acquired", "zenith", "inc", "2020"},
		Tokenize("Acme Corp acquired Zenith Inc. in 2020."))
	assert.Empty(t, Tokenize("the a an"))
}

func TestMockEmbedder(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedder()

	vecs, err := m.EmbedTexts(ctx, []string{"one", "two"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)

	m.Dimension = 16
	v, err := m.EmbedText(ctx, "one")
	require.NoError(t, err)
	assert.Len(t, v, 16)
	assert.Equal(t, 2, m.CallCount())

	boom := errors.New("boom")
	m.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) { return nil, boom }
	_, err = m.EmbedText(ctx, "x")
	assert.ErrorIs(t, err, boom)

	m.Reset()
	assert.Zero(t, m.CallCount())
	assert.Nil(t, m.EmbedTextFunc)
}

func TestMockEmbedder_ConcurrentCalls(t *testing.T) {
	m := NewMockEmbedder()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.EmbedText(context.Background(), "text")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, m.CallCount())
}

func TestMockExtractor_Default(t *testing.T) {
	ctx := context.Background()
	m := NewMockExtractor()

	t.Run("ingestion mode", func(t *testing.T) {
		ext, err := m.Extract(ctx, "Acme Corp acquired Zenith Inc in 2020.", ai.ModeIngestion)
		require.NoError(t, err)

		require.Len(t, ext.Entities, 3)
		assert.Equal(t, ai.ExtractedEntity{Name: "Acme Corp", Type: "organization"}, ext.Entities[0])
		assert.Equal(t, ai.ExtractedEntity{Name: "Zenith Inc", Type: "organization"}, ext.Entities[1])
		assert.Equal(t, "date", ext.Entities[2].Type)

		require.Len(t, ext.Relationships, 1)
		assert.Equal(t, ai.ExtractedRelationship{
			Source: "Acme Corp", Relation: "acquired", Target: "Zenith Inc", Confidence: 0.9,
		}, ext.Relationships[0])
	})

	t.Run("query mode", func(t *testing.T) {
		ext, err := m.Extract(ctx, "Who acquired Zenith?", ai.ModeQuery)
		require.NoError(t, err)
		require.Len(t, ext.Entities, 1)
		assert.Equal(t, "Zenith", ext.Entities[0].Name)
		assert.Empty(t, ext.Relationships)
	})

	t.Run("no entities", func(t *testing.T) {
		ext, err := m.Extract(ctx, "what is going on here", ai.ModeIngestion)
		require.NoError(t, err)
		assert.Empty(t, ext.Entities)
	})

	assert.Equal(t, 3, m.CallCount())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()
	assert.NotNil(t, p.Embedder())
	assert.NotNil(t, p.Extractor())
	require.NoError(t, p.Close())

	mp := p.(*MockProvider)
	assert.True(t, mp.Closed())
	assert.Same(t, mp.GetMockEmbedder(), p.Embedder())
}
