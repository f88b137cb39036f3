package resolve

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/storage"
	"github.com/santhosh0997/Multimodal-Rag-System/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, opts ...Option) (*Resolver, storage.GraphStore) {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	r, err := New(stores.Graph, opts...)
	require.NoError(t, err)
	return r, stores.Graph
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"IBM", "ibm"},
		{"I.B.M.", "ibm"},
		{"  Acme   Corp. ", "acme corp"},
		{"Zenith-Inc", "zenith inc"},
		{"AT&T", "att"},
		{"...", ""},
		{"Café Müller", "café müller"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestNew_Threshold(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	r, err := New(stores.Graph)
	require.NoError(t, err)
	assert.Equal(t, DefaultThreshold, r.Threshold())

	for _, bad := range []float64{0, -0.5, 1.01} {
		_, err := New(stores.Graph, WithThreshold(bad))
		assert.ErrorIs(t, err, core.ErrConfig, "threshold %v", bad)
	}

	_, err = New(nil)
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestResolve_PunctuationVariantsMerge(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	first, err := r.Resolve(ctx, Mention{Name: "IBM", Type: core.EntityOrganization})
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := r.Resolve(ctx, Mention{Name: "I.B.M.", Type: core.EntityOrganization})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.EntityID, second.EntityID)

	third, err := r.Resolve(ctx, Mention{Name: "ibm", Type: core.EntityOrganization})
	require.NoError(t, err)
	assert.Equal(t, first.EntityID, third.EntityID)
	assert.Equal(t, 1.0, third.Score, "exact alias match")
}

func TestResolve_BelowThresholdStaysDistinct(t *testing.T) {
	r, graph := newTestResolver(t)
	ctx := context.Background()

	acme, err := r.Resolve(ctx, Mention{Name: "Acme Corp", Type: core.EntityOrganization})
	require.NoError(t, err)
	apex, err := r.Resolve(ctx, Mention{Name: "Apex Corp", Type: core.EntityOrganization})
	require.NoError(t, err)

	assert.True(t, apex.Created)
	assert.NotEqual(t, acme.EntityID, apex.EntityID)
	assert.Less(t, Similarity("acme corp", "apex corp"), DefaultThreshold)

	all, err := graph.ListEntities(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestResolve_FuzzyMatch(t *testing.T) {
	r, _ := newTestResolver(t, WithThreshold(0.9))
	ctx := context.Background()

	orig, err := r.Resolve(ctx, Mention{Name: "Jonathan Smith", Type: core.EntityPerson})
	require.NoError(t, err)

	typo, err := r.Resolve(ctx, Mention{Name: "Jonathon Smith", Type: core.EntityPerson})
	require.NoError(t, err)
	assert.Equal(t, orig.EntityID, typo.EntityID)
	assert.False(t, typo.Created)
	assert.GreaterOrEqual(t, typo.Score, 0.9)
	assert.Less(t, typo.Score, 1.0)
}

func TestResolve_TypeScoping(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	person, err := r.Resolve(ctx, Mention{Name: "Jordan", Type: core.EntityPerson})
	require.NoError(t, err)

	country, err := r.Resolve(ctx, Mention{Name: "Jordan", Type: core.EntityLocation})
	require.NoError(t, err)
	assert.True(t, country.Created)
	assert.NotEqual(t, person.EntityID, country.EntityID)

	// An untyped mention matches whatever carries the alias, lowest ID first.
	other, err := r.Resolve(ctx, Mention{Name: "jordan", Type: core.EntityOther})
	require.NoError(t, err)
	assert.False(t, other.Created)
	assert.Equal(t, min(person.EntityID, country.EntityID), other.EntityID)
}

func TestResolve_UnknownTypeIsParsed(t *testing.T) {
	r, _ := newTestResolver(t)
	res, err := r.Resolve(context.Background(), Mention{Name: "Acme", Type: "Company"})
	require.NoError(t, err)
	assert.Equal(t, core.EntityOrganization, res.Entity.Type)
}

func TestResolve_EmptyName(t *testing.T) {
	r, _ := newTestResolver(t)
	_, err := r.Resolve(context.Background(), Mention{Name: " .. ", Type: core.EntityPerson})
	assert.ErrorIs(t, err, core.ErrInvalidEntity)
}

func TestResolve_Concurrent(t *testing.T) {
	r, graph := newTestResolver(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]core.ID, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.Resolve(ctx, Mention{Name: "Zenith Inc", Type: core.EntityOrganization})
			if assert.NoError(t, err) {
				ids[i] = res.EntityID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	all, err := graph.ListEntities(ctx, core.EntityOrganization)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// racingStore simulates another writer creating the entity between the
// resolver's lookup and its create.
type racingStore struct {
	storage.EntityStore
}

func (s *racingStore) CreateEntity(ctx context.Context, entity *core.Entity) (*core.Entity, error) {
	if _, err := s.EntityStore.CreateEntity(ctx, entity); err != nil {
		return nil, err
	}
	return s.EntityStore.CreateEntity(ctx, entity)
}

func TestResolve_CreateRaceLooksAgain(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	r, err := New(&racingStore{EntityStore: stores.Graph})
	require.NoError(t, err)

	res, err := r.Resolve(context.Background(), Mention{Name: "Acme Corp", Type: core.EntityOrganization})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, core.EntityID(core.EntityOrganization, "acme corp"), res.EntityID)
}

type failingStore struct {
	storage.EntityStore
}

func (failingStore) FindByAlias(context.Context, string) ([]*core.Entity, error) {
	return nil, core.ErrGraphUnavailable
}

func TestResolve_StoreFailure(t *testing.T) {
	r, err := New(failingStore{})
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), Mention{Name: "Acme", Type: core.EntityOrganization})
	assert.True(t, errors.Is(err, core.ErrGraphUnavailable))

	_, err = r.Lookup(context.Background(), "Acme", "")
	assert.ErrorIs(t, err, core.ErrGraphUnavailable)
}

func TestLookup(t *testing.T) {
	r, graph := newTestResolver(t)
	ctx := context.Background()

	created, err := r.Resolve(ctx, Mention{Name: "Zenith Inc", Type: core.EntityOrganization})
	require.NoError(t, err)

	t.Run("matches any type when untyped", func(t *testing.T) {
		res, err := r.Lookup(ctx, "zenith inc", "")
		require.NoError(t, err)
		assert.Equal(t, created.EntityID, res.EntityID)

		res, err = r.Lookup(ctx, "Zenith Inc.", core.EntityOther)
		require.NoError(t, err)
		assert.Equal(t, created.EntityID, res.EntityID)
	})

	t.Run("never mints", func(t *testing.T) {
		_, err := r.Lookup(ctx, "Globex", core.EntityOrganization)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		_, err = r.Lookup(ctx, "", "")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		all, err := graph.ListEntities(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}
