package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/storage"
)

// forEachPageSize is how many chunks ForEachChunk reads per transaction.
const forEachPageSize = 128

// VectorStore implements storage.VectorStore for BadgerDB with an exact
// cosine scan. Chunks are stored with their embedding and indexed by document.
type VectorStore struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.VectorStore = (*VectorStore)(nil)

// NewVectorStore creates a new VectorStore.
func NewVectorStore(backend *Backend) *VectorStore {
	return &VectorStore{
		backend: backend,
		logger:  slog.Default().With("component", "badger-vector"),
	}
}

// Close releases resources. VectorStore has no resources to release.
func (s *VectorStore) Close() error {
	return nil
}

// UpsertVectors stores chunks keyed by chunk ID in a single transaction.
func (s *VectorStore) UpsertVectors(ctx context.Context, chunks ...*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	dim := len(chunks[0].Embedding)
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("%w: chunk %d", storage.ErrMissingEmbedding, chunk.ID)
		}
		if len(chunk.Embedding) != dim {
			return fmt.Errorf("%w: batch mixes %d and %d dimensions", core.ErrDimensionMismatch, dim, len(chunk.Embedding))
		}
	}

	err := s.backend.Update(ctx, func(tx *badger.Txn) error {
		stored, err := readDimension(tx)
		if err != nil {
			return err
		}
		switch {
		case stored == 0:
			if err := writeDimension(tx, dim); err != nil {
				return err
			}
		case stored != dim:
			return fmt.Errorf("%w: store holds %d, got %d", core.ErrDimensionMismatch, stored, dim)
		}

		for _, chunk := range chunks {
			value, err := storage.MarshalChunk(chunk)
			if err != nil {
				return err
			}
			if err := tx.Set(makeChunkKey(chunk.ID), value); err != nil {
				return err
			}
			if err := tx.Set(makeChunkDocKey(chunk.DocumentID, chunk.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
	return wrapUnavailable(core.ErrVectorUnavailable, err)
}

// Search scores every candidate chunk against vector and returns the top k.
// Ties are broken by chunk ID. With a document filter only that document's
// chunks are scanned.
func (s *VectorStore) Search(ctx context.Context, vector []float32, k int, filter *core.Filter) ([]core.VectorHit, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", storage.ErrInvalidQuery, k)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}

	var hits []core.VectorHit
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		dim, err := readDimension(tx)
		if err != nil {
			return err
		}
		if dim == 0 {
			return nil
		}
		if dim != len(vector) {
			return fmt.Errorf("%w: store holds %d, query has %d", core.ErrDimensionMismatch, dim, len(vector))
		}

		score := func(chunk *core.Chunk) {
			if !filter.Matches(chunk) {
				return
			}
			hits = append(hits, core.VectorHit{Chunk: chunk, Score: cosineSimilarity(vector, chunk.Embedding)})
		}

		if filter != nil && len(filter.DocumentIDs) > 0 {
			for _, docID := range filter.DocumentIDs {
				chunks, err := documentChunks(tx, docID)
				if err != nil {
					return err
				}
				for _, chunk := range chunks {
					score(chunk)
				}
			}
			return nil
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			score(chunk)
		}
		return nil
	})
	if err != nil {
		return nil, wrapUnavailable(core.ErrVectorUnavailable, err)
	}

	slices.SortFunc(hits, func(a, b core.VectorHit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		case a.Chunk.ID < b.Chunk.ID:
			return -1
		case a.Chunk.ID > b.Chunk.ID:
			return 1
		}
		return 0
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// GetChunks retrieves chunks by ID, skipping missing ones.
func (s *VectorStore) GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	var result []*core.Chunk
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		for _, id := range ids {
			chunk, err := readChunk(tx, id)
			if err != nil {
				return err
			}
			if chunk != nil {
				result = append(result, chunk)
			}
		}
		return nil
	})
	return result, wrapUnavailable(core.ErrVectorUnavailable, err)
}

// DeleteDocument removes every chunk of a document.
func (s *VectorStore) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	var removed int
	err := s.backend.Update(ctx, func(tx *badger.Txn) error {
		removed = 0
		var keys [][]byte
		err := scanPrefix(tx, makePartialChunkDocKey(documentID), func(key []byte) error {
			keys = append(keys, key)
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := tx.Delete(makeChunkKey(idFromKeySuffix(key))); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, wrapUnavailable(core.ErrVectorUnavailable, err)
	}
	if removed > 0 {
		s.logger.Debug("deleted document chunks", "document", documentID, "count", removed)
	}
	return removed, nil
}

// ForEachChunk visits every chunk in ID order. Chunks are read in pages so
// fn may write to the store without holding a long-lived transaction open.
func (s *VectorStore) ForEachChunk(ctx context.Context, fn func(*core.Chunk) error) error {
	var after []byte
	for {
		var page []*core.Chunk
		err := s.backend.View(ctx, func(tx *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(chunkPrefix)
			iter := tx.NewIterator(opts)
			defer iter.Close()

			start := []byte(chunkPrefix)
			if after != nil {
				start = after
			}
			for iter.Seek(start); iter.Valid() && len(page) < forEachPageSize; iter.Next() {
				item := iter.Item()
				if after != nil && bytes.Equal(item.Key(), after) {
					continue
				}
				var chunk *core.Chunk
				err := item.Value(func(val []byte) error {
					var err error
					chunk, err = storage.UnmarshalChunk(val)
					return err
				})
				if err != nil {
					return err
				}
				page = append(page, chunk)
			}
			return nil
		})
		if err != nil {
			return wrapUnavailable(core.ErrVectorUnavailable, err)
		}
		if len(page) == 0 {
			return nil
		}

		for _, chunk := range page {
			if err := fn(chunk); err != nil {
				return err
			}
		}
		after = makeChunkKey(page[len(page)-1].ID)
	}
}

// Dimension returns the stored embedding size.
func (s *VectorStore) Dimension(ctx context.Context) (int, error) {
	var dim int
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		var err error
		dim, err = readDimension(tx)
		return err
	})
	return dim, wrapUnavailable(core.ErrVectorUnavailable, err)
}

// SetDimension overrides the stored embedding size.
func (s *VectorStore) SetDimension(ctx context.Context, dim int) error {
	if dim < 0 {
		return fmt.Errorf("%w: dimension must not be negative", storage.ErrInvalidQuery)
	}
	err := s.backend.Update(ctx, func(tx *badger.Txn) error {
		return writeDimension(tx, dim)
	})
	return wrapUnavailable(core.ErrVectorUnavailable, err)
}

// Count returns the number of stored chunks.
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		var err error
		n, err = countPrefix(tx, []byte(chunkPrefix))
		return err
	})
	return n, wrapUnavailable(core.ErrVectorUnavailable, err)
}

func documentChunks(tx *badger.Txn, documentID string) ([]*core.Chunk, error) {
	var ids []core.ID
	err := scanPrefix(tx, makePartialChunkDocKey(documentID), func(key []byte) error {
		ids = append(ids, idFromKeySuffix(key))
		return nil
	})
	if err != nil {
		return nil, err
	}
	chunks := make([]*core.Chunk, 0, len(ids))
	for _, id := range ids {
		chunk, err := readChunk(tx, id)
		if err != nil {
			return nil, err
		}
		if chunk != nil {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

func readChunk(tx *badger.Txn, id core.ID) (*core.Chunk, error) {
	return readValue(tx, makeChunkKey(id), storage.UnmarshalChunk)
}

func readDimension(tx *badger.Txn) (int, error) {
	item, err := tx.Get([]byte(dimensionKey))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return 0, nil
		}
		return 0, err
	}
	var dim int
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("%w: dimension record has %d bytes", storage.ErrSerializationFailed, len(val))
		}
		dim = int(binary.BigEndian.Uint64(val))
		return nil
	})
	return dim, err
}

func writeDimension(tx *badger.Txn, dim int) error {
	return tx.Set([]byte(dimensionKey), binary.BigEndian.AppendUint64(nil, uint64(dim)))
}

// cosineSimilarity returns the cosine of the angle between a and b.
// Zero vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
