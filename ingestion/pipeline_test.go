package ingestion

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/santhosh0997/Multimodal-Rag-System/ai"
	"github.com/santhosh0997/Multimodal-Rag-System/ai/mock"
	"github.com/santhosh0997/Multimodal-Rag-System/chunking"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/retry"
	"github.com/santhosh0997/Multimodal-Rag-System/storage"
	"github.com/santhosh0997/Multimodal-Rag-System/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// acquisition is exactly 40 characters, one chunk at the test chunk size.
const acquisition = "Acme Corp acquired Zenith Inc last year."

// fixtureExtract finds the two known companies and the acquisition between them.
func fixtureExtract(_ context.Context, text string, _ ai.Mode) (*ai.Extraction, error) {
	ext := &ai.Extraction{}
	for _, name := range []string{"Acme Corp", "Zenith Inc"} {
		if strings.Contains(text, name) {
			ext.Entities = append(ext.Entities, ai.ExtractedEntity{Name: name, Type: "organization"})
		}
	}
	if len(ext.Entities) == 2 && strings.Contains(text, "acquired") {
		ext.Relationships = append(ext.Relationships, ai.ExtractedRelationship{
			Source: "Acme Corp", Relation: "acquired", Target: "Zenith Inc", Confidence: 0.9,
		})
	}
	return ext, nil
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, Timeout: time.Second}
}

type testEnv struct {
	stores   *badger.Stores
	provider *mock.MockProvider
	pipeline *Pipeline
}

func setupPipeline(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	extractor := mock.NewMockExtractor()
	extractor.ExtractFunc = fixtureExtract
	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), extractor)

	chunker, err := chunking.New(chunking.Config{MaxChunkSize: 40, Overlap: 0})
	require.NoError(t, err)

	base := []Option{
		WithPoolSize(2),
		WithRetryPolicy(fastRetry()),
		WithChunker(chunker),
		WithDocumentStore(stores.Documents),
	}
	p, err := NewPipeline(stores.Graph, stores.Vectors, provider, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(p.Release)

	return &testEnv{stores: stores, provider: provider, pipeline: p}
}

func TestNewPipeline_RequiresCollaborators(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()
	provider := mock.NewMockProvider()

	_, err = NewPipeline(nil, stores.Vectors, provider)
	assert.ErrorIs(t, err, ErrGraphStoreRequired)

	_, err = NewPipeline(stores.Graph, nil, provider)
	assert.ErrorIs(t, err, ErrVectorStoreRequired)

	_, err = NewPipeline(stores.Graph, stores.Vectors, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)

	_, err = NewPipeline(stores.Graph, stores.Vectors, provider, WithEmbedBatchSize(0))
	assert.ErrorIs(t, err, core.ErrConfig)

	_, err = NewPipeline(stores.Graph, stores.Vectors, provider, WithRetryPolicy(retry.Policy{}))
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestIngest_BuildsGraphAndVectors(t *testing.T) {
	env := setupPipeline(t)
	ctx := context.Background()

	outcome, err := env.pipeline.Ingest(ctx, &core.Document{ID: "doc-1", Text: acquisition})
	require.NoError(t, err)

	assert.Equal(t, core.StateDone, outcome.State)
	assert.Equal(t, 1, outcome.Chunks)
	assert.Equal(t, 2, outcome.Entities)
	assert.Equal(t, 1, outcome.Relationships)
	assert.False(t, outcome.PartialExtraction)
	assert.False(t, outcome.FinishedAt.Before(outcome.StartedAt))

	stats, err := env.stores.Graph.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entities)
	assert.Equal(t, 1, stats.Relationships)

	acmeID := core.EntityID(core.EntityOrganization, "acme corp")
	zenithID := core.EntityID(core.EntityOrganization, "zenith inc")
	acme, err := env.stores.Graph.GetEntity(ctx, acmeID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", acme.Name)
	require.Len(t, acme.Mentions, 1)
	assert.Equal(t, "doc-1", acme.Mentions[0].DocumentID)
	assert.Equal(t, 0, acme.Mentions[0].Offset)

	rel, err := env.stores.Graph.GetRelationship(ctx, core.RelationshipID(acmeID, zenithID, "acquired"))
	require.NoError(t, err)
	assert.InDelta(t, 0.9, rel.Confidence, 1e-9)
	require.Len(t, rel.Provenance, 1)
	assert.Equal(t, "doc-1", rel.Provenance[0].DocumentID)

	count, err := env.stores.Vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	recorded, err := env.stores.Documents.GetOutcome(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, core.StateDone, recorded.State)
}

func TestIngest_AssignsID(t *testing.T) {
	env := setupPipeline(t)
	doc := &core.Document{Text: acquisition}

	outcome, err := env.pipeline.Ingest(context.Background(), doc)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, doc.ID, outcome.DocumentID)
	assert.False(t, doc.IngestedAt.IsZero())
}

func TestIngest_UnchangedDocumentIsSkipped(t *testing.T) {
	env := setupPipeline(t)
	ctx := context.Background()

	_, err := env.pipeline.Ingest(ctx, &core.Document{ID: "doc-1", Text: acquisition})
	require.NoError(t, err)
	calls := env.provider.GetMockEmbedder().CallCount()

	outcome, err := env.pipeline.Ingest(ctx, &core.Document{ID: "doc-1", Text: acquisition})
	require.NoError(t, err)
	assert.True(t, outcome.Skipped)
	assert.Equal(t, core.StateDone, outcome.State)
	assert.Equal(t, calls, env.provider.GetMockEmbedder().CallCount(), "no provider calls on skip")
}

func TestIngest_ReingestIsIdempotent(t *testing.T) {
	// Without a document store nothing is skipped; keyed writes keep the stores stable.
	env := setupPipeline(t, WithDocumentStore(nil))
	ctx := context.Background()
	doc := &core.Document{ID: "doc-1", Text: acquisition}

	_, err := env.pipeline.Ingest(ctx, doc)
	require.NoError(t, err)
	_, err = env.pipeline.Ingest(ctx, doc)
	require.NoError(t, err)

	stats, err := env.stores.Graph.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entities)
	assert.Equal(t, 1, stats.Relationships)

	acmeID := core.EntityID(core.EntityOrganization, "acme corp")
	zenithID := core.EntityID(core.EntityOrganization, "zenith inc")
	rel, err := env.stores.Graph.GetRelationship(ctx, core.RelationshipID(acmeID, zenithID, "acquired"))
	require.NoError(t, err)
	assert.InDelta(t, 0.9, rel.Confidence, 1e-9, "same chunk must not reinforce")

	acme, err := env.stores.Graph.GetEntity(ctx, acmeID)
	require.NoError(t, err)
	assert.Len(t, acme.Mentions, 1)

	count, err := env.stores.Vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIngest_EmbeddingFailureFailsDocument(t *testing.T) {
	env := setupPipeline(t)
	ctx := context.Background()
	env.provider.GetMockEmbedder().EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, fmt.Errorf("%w: quota exceeded", core.ErrEmbeddingUnavailable)
	}

	outcome, err := env.pipeline.Ingest(ctx, &core.Document{ID: "doc-1", Text: acquisition})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
	assert.Equal(t, core.StateFailed, outcome.State)
	assert.Equal(t, core.ReasonEmbeddingUnavailable, outcome.Reason)

	count, err := env.stores.Vectors.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "chunks without vectors are never stored")

	stats, err := env.stores.Graph.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Relationships)

	recorded, err := env.stores.Documents.GetOutcome(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, core.StateFailed, recorded.State)
}

func TestIngest_ExtractionFailureIsPartial(t *testing.T) {
	env := setupPipeline(t)
	ctx := context.Background()
	env.provider.GetMockExtractor().ExtractFunc = func(ctx context.Context, text string, mode ai.Mode) (*ai.Extraction, error) {
		if strings.Contains(text, "broken") {
			return nil, fmt.Errorf("%w: model offline", core.ErrExtractionUnavailable)
		}
		return fixtureExtract(ctx, text, mode)
	}
	doc := &core.Document{ID: "doc-1", Text: acquisition + "broken passage"}

	outcome, err := env.pipeline.Ingest(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, core.StateDone, outcome.State)
	assert.True(t, outcome.PartialExtraction)
	require.Len(t, outcome.ExtractionFailures, 1)
	assert.Equal(t, 1, outcome.ExtractionFailures[0].Index)
	assert.Equal(t, core.ReasonExtractionUnavailable, outcome.ExtractionFailures[0].Reason)
	assert.Equal(t, 2, outcome.Chunks, "every chunk is still embedded and stored")
	assert.Equal(t, 1, outcome.Relationships)

	// A partial outcome is retried on the next ingest rather than skipped.
	env.provider.GetMockExtractor().ExtractFunc = fixtureExtract
	outcome, err = env.pipeline.Ingest(ctx, doc)
	require.NoError(t, err)
	assert.False(t, outcome.Skipped)
	assert.False(t, outcome.PartialExtraction)
}

func TestIngest_MalformedExtractionIsNotRetried(t *testing.T) {
	env := setupPipeline(t, WithRetryPolicy(retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}))
	extractor := env.provider.GetMockExtractor()
	extractor.ExtractFunc = func(context.Context, string, ai.Mode) (*ai.Extraction, error) {
		return nil, core.ErrExtractionMalformed
	}

	outcome, err := env.pipeline.Ingest(context.Background(), &core.Document{ID: "doc-1", Text: acquisition})
	require.NoError(t, err)
	require.Len(t, outcome.ExtractionFailures, 1)
	assert.Equal(t, core.ReasonExtractionMalformed, outcome.ExtractionFailures[0].Reason)
	assert.Equal(t, 1, extractor.CallCount())
}

func TestIngest_ChangedDocumentReplacesChunks(t *testing.T) {
	env := setupPipeline(t)
	ctx := context.Background()

	outcome, err := env.pipeline.Ingest(ctx, &core.Document{ID: "doc-1", Text: acquisition + " Zenith Inc moved offices."})
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Chunks)

	outcome, err = env.pipeline.Ingest(ctx, &core.Document{ID: "doc-1", Text: acquisition})
	require.NoError(t, err)
	assert.False(t, outcome.Skipped)
	assert.Equal(t, 1, outcome.Chunks)

	count, err := env.stores.Vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	doc, err := env.stores.Documents.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, acquisition, doc.Text)
}

func TestIngest_ChangedDocumentForgetsGraphProvenance(t *testing.T) {
	env := setupPipeline(t)
	ctx := context.Background()
	acmeID := core.EntityID(core.EntityOrganization, "acme corp")
	relID := core.RelationshipID(acmeID, core.EntityID(core.EntityOrganization, "zenith inc"), "acquired")

	_, err := env.pipeline.Ingest(ctx, &core.Document{ID: "doc-1", Text: acquisition})
	require.NoError(t, err)
	_, err = env.pipeline.Ingest(ctx, &core.Document{ID: "doc-2", Text: acquisition})
	require.NoError(t, err)
	rel, err := env.stores.Graph.GetRelationship(ctx, relID)
	require.NoError(t, err)
	require.Len(t, rel.Provenance, 2)
	oldChunk := rel.Provenance[0].ChunkID

	// Same length, same chunk span, different text
	edited := "Weather was calm all day across the bay."
	require.Len(t, edited, len(acquisition))
	_, err = env.pipeline.Ingest(ctx, &core.Document{ID: "doc-1", Text: edited})
	require.NoError(t, err)

	chunks, err := env.stores.Vectors.GetChunks(ctx, oldChunk)
	require.NoError(t, err)
	assert.Empty(t, chunks, "the old span must not resolve to the new text")

	rel, err = env.stores.Graph.GetRelationship(ctx, relID)
	require.NoError(t, err)
	require.Len(t, rel.Provenance, 1)
	assert.Equal(t, "doc-2", rel.Provenance[0].DocumentID)
	assert.InDelta(t, 0.9, rel.Confidence, 1e-9)

	acme, err := env.stores.Graph.GetEntity(ctx, acmeID)
	require.NoError(t, err)
	require.Len(t, acme.Mentions, 1)
	assert.Equal(t, "doc-2", acme.Mentions[0].DocumentID)

	// Last supporting document edited away: the fact goes, the entities stay
	_, err = env.pipeline.Ingest(ctx, &core.Document{ID: "doc-2", Text: "short note"})
	require.NoError(t, err)

	_, err = env.stores.Graph.GetRelationship(ctx, relID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	rels, err := env.stores.Graph.RelationshipsOf(ctx, acmeID)
	require.NoError(t, err)
	assert.Empty(t, rels)

	stats, err := env.stores.Graph.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entities)
	assert.Equal(t, 0, stats.Relationships)

	acme, err = env.stores.Graph.GetEntity(ctx, acmeID)
	require.NoError(t, err)
	assert.Empty(t, acme.Mentions)

	// Restoring the text brings the fact back
	_, err = env.pipeline.Ingest(ctx, &core.Document{ID: "doc-1", Text: acquisition})
	require.NoError(t, err)
	rel, err = env.stores.Graph.GetRelationship(ctx, relID)
	require.NoError(t, err)
	require.Len(t, rel.Provenance, 1)
	assert.Equal(t, "doc-1", rel.Provenance[0].DocumentID)
}

func TestIngest_EntityAttributes(t *testing.T) {
	env := setupPipeline(t)
	ctx := context.Background()
	env.provider.GetMockExtractor().ExtractFunc = func(ctx context.Context, text string, mode ai.Mode) (*ai.Extraction, error) {
		ext, err := fixtureExtract(ctx, text, mode)
		if err != nil {
			return nil, err
		}
		for i := range ext.Entities {
			if ext.Entities[i].Name == "Zenith Inc" {
				ext.Entities[i].Attributes = map[string]string{
					"Founded Year": "1999",
					"hq-city":      "Springfield",
					"bad key!":     "dropped",
				}
			}
		}
		return ext, nil
	}

	outcome, err := env.pipeline.Ingest(ctx, &core.Document{ID: "doc-1", Text: acquisition})
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Entities)

	zenith, err := env.stores.Graph.GetEntity(ctx, core.EntityID(core.EntityOrganization, "zenith inc"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"founded_year": "1999", "hq_city": "Springfield"}, zenith.Attributes)

	acme, err := env.stores.Graph.GetEntity(ctx, core.EntityID(core.EntityOrganization, "acme corp"))
	require.NoError(t, err)
	assert.Nil(t, acme.Attributes)
}

func TestIngest_InvalidDocument(t *testing.T) {
	env := setupPipeline(t)

	outcome, err := env.pipeline.Ingest(context.Background(), &core.Document{ID: "empty", Text: "   "})
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
	assert.Equal(t, core.StateFailed, outcome.State)
	assert.Equal(t, core.ReasonInvalidInput, outcome.Reason)

	_, err = env.pipeline.Ingest(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
}

func TestIngest_Canceled(t *testing.T) {
	env := setupPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := env.pipeline.Ingest(ctx, &core.Document{ID: "doc-1", Text: acquisition})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, core.StateFailed, outcome.State)
	assert.Equal(t, core.ReasonCanceled, outcome.Reason)

	// The outcome is recorded even though the caller went away.
	recorded, err := env.stores.Documents.GetOutcome(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, core.ReasonCanceled, recorded.Reason)
}

func TestIngestAll(t *testing.T) {
	env := setupPipeline(t, WithDocumentConcurrency(3))
	docs := []*core.Document{
		{ID: "a", Text: acquisition},
		{ID: "b", Text: ""},
		{ID: "c", Text: "Zenith Inc hired staff."},
	}

	outcomes, err := env.pipeline.IngestAll(context.Background(), docs)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
	assert.Contains(t, err.Error(), "document b")

	require.Len(t, outcomes, 3)
	for i, doc := range docs {
		assert.Equal(t, doc.ID, outcomes[i].DocumentID)
	}
	assert.Equal(t, core.StateDone, outcomes[0].State)
	assert.Equal(t, core.StateFailed, outcomes[1].State)
	assert.Equal(t, core.StateDone, outcomes[2].State)

	listed, err := env.stores.Documents.ListOutcomes(context.Background())
	require.NoError(t, err)
	assert.Len(t, listed, 3)
}

type recordingObserver struct {
	mu       sync.Mutex
	stages   []core.IngestState
	outcomes []*core.IngestOutcome
}

func (o *recordingObserver) StageCompleted(stage core.IngestState, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, stage)
}

func (o *recordingObserver) DocumentFinished(outcome *core.IngestOutcome, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func TestIngest_Observer(t *testing.T) {
	observer := &recordingObserver{}
	env := setupPipeline(t, WithObserver(observer))

	_, err := env.pipeline.Ingest(context.Background(), &core.Document{ID: "doc-1", Text: acquisition})
	require.NoError(t, err)

	assert.Equal(t, []core.IngestState{
		core.StateChunked,
		core.StateEmbeddedExtracted,
		core.StateResolved,
		core.StatePersisted,
		core.StateDone,
	}, observer.stages)
	require.Len(t, observer.outcomes, 1)
	assert.Equal(t, core.StateDone, observer.outcomes[0].State)
}
