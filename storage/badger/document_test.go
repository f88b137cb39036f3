package badger

import (
	"context"
	"testing"

	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStore_Documents(t *testing.T) {
	stores := newTestStores(t)
	docs := stores.Documents
	ctx := context.Background()

	_, err := docs.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	doc := &core.Document{ID: "a", Origin: "a.txt", Text: "Acme Corp acquired Zenith Inc in 2020.", Metadata: map[string]string{"lang": "en"}}
	require.NoError(t, docs.PutDocument(ctx, doc))

	got, err := docs.GetDocument(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, doc.Text, got.Text)
	assert.Equal(t, doc.Metadata, got.Metadata)
	assert.Equal(t, doc.ContentHash(), got.ContentHash())

	err = docs.PutDocument(ctx, &core.Document{Text: "no id"})
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
}

func TestDocumentStore_Outcomes(t *testing.T) {
	stores := newTestStores(t)
	docs := stores.Documents
	ctx := context.Background()

	_, err := docs.GetOutcome(ctx, "a")
	assert.True(t, storage.IsNotFound(err))

	outcomes, err := docs.ListOutcomes(ctx)
	require.NoError(t, err)
	assert.Empty(t, outcomes)

	first := &core.IngestOutcome{DocumentID: "b", State: core.StateDone, Chunks: 2}
	second := &core.IngestOutcome{
		DocumentID:        "a",
		State:             core.StateDone,
		PartialExtraction: true,
		ExtractionFailures: []core.ChunkFailure{
			{ChunkID: 9, Index: 1, Reason: core.ReasonExtractionMalformed, Message: "bad json"},
		},
	}
	require.NoError(t, docs.PutOutcome(ctx, first))
	require.NoError(t, docs.PutOutcome(ctx, second))

	got, err := docs.GetOutcome(ctx, "a")
	require.NoError(t, err)
	assert.True(t, got.PartialExtraction)
	require.Len(t, got.ExtractionFailures, 1)
	assert.Equal(t, core.ReasonExtractionMalformed, got.ExtractionFailures[0].Reason)

	// Later outcomes replace earlier ones.
	first.State = core.StateFailed
	require.NoError(t, docs.PutOutcome(ctx, first))

	outcomes, err = docs.ListOutcomes(ctx)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "a", outcomes[0].DocumentID)
	assert.Equal(t, "b", outcomes[1].DocumentID)
	assert.Equal(t, core.StateFailed, outcomes[1].State)

	assert.ErrorIs(t, docs.PutOutcome(ctx, &core.IngestOutcome{}), core.ErrInvalidDocument)
}
