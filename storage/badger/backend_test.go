package badger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStores(t *testing.T) *Stores {
	t.Helper()
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })
	return stores
}

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	info, err := os.Stat(tmpDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_PathIsFile(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(tmpFile, []byte("x"), 0644))

	_, err := OpenBackend(tmpFile, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())
	assert.NoError(t, backend.Close())

	err = backend.View(context.Background(), func(tx *badger.Txn) error { return nil })
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestBackend_CanceledContext(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var called atomic.Bool
	err = backend.Update(ctx, func(tx *badger.Txn) error {
		called.Store(true)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called.Load())
}

func TestBackend_UpdateRetriesConflicts(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	key := []byte("counter")

	attempts := 0
	err = backend.Update(ctx, func(tx *badger.Txn) error {
		attempts++
		if _, err := tx.Get(key); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		if attempts == 1 {
			// A concurrent writer commits the same key before this transaction does.
			require.NoError(t, backend.db.Update(func(other *badger.Txn) error {
				return other.Set(key, []byte("other"))
			}))
		}
		return tx.Set(key, []byte("mine"))
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	err = backend.View(ctx, func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		require.NoError(t, err)
		val, err := item.ValueCopy(nil)
		require.NoError(t, err)
		assert.Equal(t, "mine", string(val))
		return nil
	})
	require.NoError(t, err)
}

func TestWrapUnavailable(t *testing.T) {
	assert.NoError(t, wrapUnavailable(core.ErrGraphUnavailable, nil))
	assert.Equal(t, storage.ErrNotFound, wrapUnavailable(core.ErrGraphUnavailable, storage.ErrNotFound))

	diskErr := errors.New("disk failure")
	err := wrapUnavailable(core.ErrVectorUnavailable, diskErr)
	assert.ErrorIs(t, err, core.ErrVectorUnavailable)
	assert.ErrorIs(t, err, diskErr)
	assert.True(t, core.IsRetryable(err))

	mismatch := wrapUnavailable(core.ErrVectorUnavailable, core.ErrDimensionMismatch)
	assert.NotErrorIs(t, mismatch, core.ErrVectorUnavailable)
}

func TestStores_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	stores, err := OpenStores(dir)
	require.NoError(t, err)
	require.NoError(t, stores.Documents.PutDocument(ctx, &core.Document{ID: "a", Text: "persisted"}))
	require.NoError(t, stores.Close())

	stores, err = OpenStores(dir)
	require.NoError(t, err)
	defer stores.Close()

	doc, err := stores.Documents.GetDocument(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "persisted", doc.Text)
}
