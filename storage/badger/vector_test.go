package badger

import (
	"context"
	"fmt"
	"testing"

	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChunk(docID string, index int, embedding ...float32) *core.Chunk {
	start := index * 100
	return &core.Chunk{
		ID:         core.ChunkID(docID, 0, start, start+100),
		DocumentID: docID,
		Index:      index,
		Start:      start,
		End:        start + 100,
		Text:       fmt.Sprintf("%s chunk %d", docID, index),
		Embedding:  embedding,
		Metadata:   map[string]string{"source_file": docID + ".txt"},
	}
}

func TestVectorStore_UpsertAndSearch(t *testing.T) {
	stores := newTestStores(t)
	vectors := stores.Vectors
	ctx := context.Background()

	dim, err := vectors.Dimension(ctx)
	require.NoError(t, err)
	assert.Zero(t, dim)

	hits, err := vectors.Search(ctx, []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits, "empty store searches return nothing")

	a0 := newChunk("a", 0, 1, 0, 0)
	a1 := newChunk("a", 1, 0.7, 0.7, 0)
	b0 := newChunk("b", 0, 0, 1, 0)
	b1 := newChunk("b", 1, 0, 0, 1)
	require.NoError(t, vectors.UpsertVectors(ctx, a0, a1, b0, b1))

	dim, err = vectors.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, dim)

	count, err := vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	t.Run("ordered by similarity", func(t *testing.T) {
		hits, err := vectors.Search(ctx, []float32{1, 0, 0}, 3, nil)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		assert.Equal(t, a0.ID, hits[0].Chunk.ID)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
		assert.Equal(t, a1.ID, hits[1].Chunk.ID)
		assert.InDelta(t, 0.7071, hits[1].Score, 1e-3)
		assert.InDelta(t, 0.0, hits[2].Score, 1e-6)
		assert.Equal(t, "a chunk 0", hits[0].Chunk.Text)
	})

	t.Run("ties break on chunk id", func(t *testing.T) {
		hits, err := vectors.Search(ctx, []float32{-1, 0, 0}, 4, nil)
		require.NoError(t, err)
		require.Len(t, hits, 4)
		// b0 and b1 are orthogonal to the query and tie at 0.
		tied := []core.ID{hits[0].Chunk.ID, hits[1].Chunk.ID}
		assert.ElementsMatch(t, []core.ID{b0.ID, b1.ID}, tied)
		assert.Less(t, uint64(hits[0].Chunk.ID), uint64(hits[1].Chunk.ID))
	})

	t.Run("document filter", func(t *testing.T) {
		hits, err := vectors.Search(ctx, []float32{1, 0, 0}, 10, &core.Filter{DocumentIDs: []string{"b"}})
		require.NoError(t, err)
		require.Len(t, hits, 2)
		for _, hit := range hits {
			assert.Equal(t, "b", hit.Chunk.DocumentID)
		}
	})

	t.Run("metadata filter", func(t *testing.T) {
		hits, err := vectors.Search(ctx, []float32{1, 0, 0}, 10, &core.Filter{Metadata: map[string]string{"source_file": "a.txt"}})
		require.NoError(t, err)
		assert.Len(t, hits, 2)
	})

	t.Run("invalid queries", func(t *testing.T) {
		_, err := vectors.Search(ctx, []float32{1, 0, 0}, 0, nil)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)

		_, err = vectors.Search(ctx, nil, 3, nil)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)

		_, err = vectors.Search(ctx, []float32{1, 0}, 3, nil)
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	})
}

func TestVectorStore_DimensionChecks(t *testing.T) {
	stores := newTestStores(t)
	vectors := stores.Vectors
	ctx := context.Background()

	require.NoError(t, vectors.UpsertVectors(ctx, newChunk("a", 0, 1, 0)))

	err := vectors.UpsertVectors(ctx, newChunk("a", 1, 1, 0, 0))
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	assert.False(t, core.IsRetryable(err))

	err = vectors.UpsertVectors(ctx, newChunk("a", 1, 1, 0), newChunk("a", 2, 1, 0, 0))
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	err = vectors.UpsertVectors(ctx, newChunk("a", 3))
	assert.ErrorIs(t, err, storage.ErrMissingEmbedding)

	count, err := vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "rejected batches write nothing")

	require.NoError(t, vectors.SetDimension(ctx, 3))
	require.NoError(t, vectors.UpsertVectors(ctx, newChunk("b", 0, 0, 1, 0)))

	assert.ErrorIs(t, vectors.SetDimension(ctx, -1), storage.ErrInvalidQuery)
}

func TestVectorStore_UpsertIsIdempotent(t *testing.T) {
	stores := newTestStores(t)
	vectors := stores.Vectors
	ctx := context.Background()

	chunk := newChunk("a", 0, 1, 0)
	require.NoError(t, vectors.UpsertVectors(ctx, chunk))
	require.NoError(t, vectors.UpsertVectors(ctx, chunk))

	count, err := vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := vectors.GetChunks(ctx, chunk.ID, core.ID(77))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, chunk.Embedding, got[0].Embedding)
	assert.Equal(t, chunk.Metadata, got[0].Metadata)
}

func TestVectorStore_DeleteDocument(t *testing.T) {
	stores := newTestStores(t)
	vectors := stores.Vectors
	ctx := context.Background()

	require.NoError(t, vectors.UpsertVectors(ctx,
		newChunk("a", 0, 1, 0), newChunk("a", 1, 0, 1), newChunk("b", 0, 1, 1)))

	removed, err := vectors.DeleteDocument(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = vectors.DeleteDocument(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, removed)

	hits, err := vectors.Search(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].Chunk.DocumentID)

	hits, err = vectors.Search(ctx, []float32{1, 0}, 10, &core.Filter{DocumentIDs: []string{"a"}})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorStore_ForEachChunk(t *testing.T) {
	stores := newTestStores(t)
	vectors := stores.Vectors
	ctx := context.Background()

	total := forEachPageSize*2 + 7
	batch := make([]*core.Chunk, 0, total)
	for i := 0; i < total; i++ {
		batch = append(batch, newChunk("doc", i, 1, float32(i)))
	}
	require.NoError(t, vectors.UpsertVectors(ctx, batch...))

	seen := make(map[core.ID]bool)
	var last core.ID
	err := vectors.ForEachChunk(ctx, func(chunk *core.Chunk) error {
		assert.False(t, seen[chunk.ID], "chunk visited twice")
		assert.Greater(t, uint64(chunk.ID), uint64(last))
		seen[chunk.ID] = true
		last = chunk.ID

		// Writing back during iteration must not disturb paging.
		chunk.Embedding = []float32{0, 1}
		return vectors.UpsertVectors(ctx, chunk)
	})
	require.NoError(t, err)
	assert.Len(t, seen, total)

	t.Run("callback errors stop iteration", func(t *testing.T) {
		stop := fmt.Errorf("stop")
		visits := 0
		err := vectors.ForEachChunk(ctx, func(*core.Chunk) error {
			visits++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, visits)
	})
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
}
