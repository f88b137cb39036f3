// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/storage"
)

const (
	forEachPageSize = 128
	dimensionName   = "dimension"
)

// VectorStore implements storage.VectorStore on PostgreSQL with the pgvector
// extension. Similarity is 1 - cosine distance.
type VectorStore struct {
	pool   *pgxpool.Pool
	table  string
	logger *slog.Logger
}

var _ storage.VectorStore = (*VectorStore)(nil)

// Option configures a VectorStore.
type Option func(*VectorStore)

// WithTable sets the chunk table name. The metadata table is named after it.
func WithTable(name string) Option {
	return func(s *VectorStore) {
		s.table = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *VectorStore) {
		s.logger = logger
	}
}

// NewVectorStore creates a store over an existing pool. Call EnsureSchema
// before first use.
func NewVectorStore(pool *pgxpool.Pool, opts ...Option) *VectorStore {
	s := &VectorStore{
		pool:   pool,
		table:  "rag_chunks",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "pgvector")
	return s
}

// Open connects to dsn, verifies the connection and prepares the schema.
func Open(ctx context.Context, dsn string, opts ...Option) (*VectorStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse database config: %w", core.ErrConfig, err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create connection pool: %w", core.ErrVectorUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", core.ErrVectorUnavailable, err)
	}

	s := NewVectorStore(pool, opts...)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the extension and tables if they are missing.
func (s *VectorStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id           BIGINT PRIMARY KEY,
			document_id  TEXT NOT NULL,
			chunk_index  INTEGER NOT NULL,
			start_offset INTEGER NOT NULL,
			end_offset   INTEGER NOT NULL,
			content      TEXT NOT NULL,
			metadata     JSONB NOT NULL DEFAULT '{}',
			embedding    vector NOT NULL
		)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_document_idx ON %s (document_id)`, s.table, s.table),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_meta (name TEXT PRIMARY KEY, value INTEGER NOT NULL)`, s.table),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return wrapUnavailable(fmt.Errorf("failed to prepare schema: %w", err))
		}
	}
	return nil
}

// Close closes the connection pool.
func (s *VectorStore) Close() error {
	s.pool.Close()
	return nil
}

// UpsertVectors stores chunks keyed by chunk ID in one transaction.
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

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s_meta (name, value) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`, s.table),
			dimensionName, dim); err != nil {
			return err
		}
		var stored int
		if err := tx.QueryRow(ctx,
			fmt.Sprintf(`SELECT value FROM %s_meta WHERE name = $1`, s.table), dimensionName).Scan(&stored); err != nil {
			return err
		}
		if stored != dim {
			return fmt.Errorf("%w: store holds %d, got %d", core.ErrDimensionMismatch, stored, dim)
		}

		batch := &pgx.Batch{}
		query := fmt.Sprintf(`INSERT INTO %s
				(id, document_id, chunk_index, start_offset, end_offset, content, metadata, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE SET
				document_id = EXCLUDED.document_id,
				chunk_index = EXCLUDED.chunk_index,
				start_offset = EXCLUDED.start_offset,
				end_offset = EXCLUDED.end_offset,
				content = EXCLUDED.content,
				metadata = EXCLUDED.metadata,
				embedding = EXCLUDED.embedding`, s.table)
		for _, c := range chunks {
			metadata := c.Metadata
			if metadata == nil {
				metadata = map[string]string{}
			}
			batch.Queue(query,
				encodeID(c.ID), c.DocumentID, c.Index, c.Start, c.End, c.Text,
				metadata, pgvector.NewVector(c.Embedding))
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	return wrapUnavailable(err)
}

// Search returns the k chunks nearest to vector by cosine distance.
func (s *VectorStore) Search(ctx context.Context, vector []float32, k int, filter *core.Filter) ([]core.VectorHit, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", storage.ErrInvalidQuery, k)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}

	dim, err := s.Dimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return nil, nil
	}
	if dim != len(vector) {
		return nil, fmt.Errorf("%w: store holds %d, query has %d", core.ErrDimensionMismatch, dim, len(vector))
	}

	query := fmt.Sprintf(`SELECT %s, 1 - (embedding <=> $1) AS score FROM %s WHERE true`, chunkColumns, s.table)
	args := []any{pgvector.NewVector(vector)}
	if filter != nil && len(filter.DocumentIDs) > 0 {
		args = append(args, filter.DocumentIDs)
		query += fmt.Sprintf(" AND document_id = ANY($%d)", len(args))
	}
	if filter != nil && len(filter.Metadata) > 0 {
		args = append(args, filter.Metadata)
		query += fmt.Sprintf(" AND metadata @> $%d::jsonb", len(args))
	}
	args = append(args, k)
	query += fmt.Sprintf(" ORDER BY embedding <=> $1, id LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	defer rows.Close()

	var hits []core.VectorHit
	for rows.Next() {
		var score float64
		chunk, err := scanChunk(rows, &score)
		if err != nil {
			return nil, wrapUnavailable(err)
		}
		hits = append(hits, core.VectorHit{Chunk: chunk, Score: float32(score)})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapUnavailable(err)
	}

	// Distances computed in float32 by pgvector can tie; keep the order stable.
	slices.SortStableFunc(hits, func(a, b core.VectorHit) int {
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
	return hits, nil
}

// GetChunks retrieves chunks by ID, skipping missing ones.
func (s *VectorStore) GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	encoded := make([]int64, len(ids))
	for i, id := range ids {
		encoded[i] = encodeID(id)
	}
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = ANY($1) ORDER BY id`, chunkColumns, s.table), encoded)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	defer rows.Close()

	var chunks []*core.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, wrapUnavailable(err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, wrapUnavailable(rows.Err())
}

// DeleteDocument removes every chunk of a document.
func (s *VectorStore) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`, s.table), documentID)
	if err != nil {
		return 0, wrapUnavailable(err)
	}
	removed := int(tag.RowsAffected())
	if removed > 0 {
		s.logger.Debug("deleted document chunks", "document", documentID, "count", removed)
	}
	return removed, nil
}

// ForEachChunk visits every chunk in ID order using keyset pagination.
func (s *VectorStore) ForEachChunk(ctx context.Context, fn func(*core.Chunk) error) error {
	firstPage := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id LIMIT $1`, chunkColumns, s.table)
	nextPage := fmt.Sprintf(`SELECT %s FROM %s WHERE id > $2 ORDER BY id LIMIT $1`, chunkColumns, s.table)

	var after *int64
	for {
		var (
			rows pgx.Rows
			err  error
		)
		if after == nil {
			rows, err = s.pool.Query(ctx, firstPage, forEachPageSize)
		} else {
			rows, err = s.pool.Query(ctx, nextPage, forEachPageSize, *after)
		}
		if err != nil {
			return wrapUnavailable(err)
		}
		page, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*core.Chunk, error) {
			return scanChunk(row)
		})
		if err != nil {
			return wrapUnavailable(err)
		}
		if len(page) == 0 {
			return nil
		}

		for _, chunk := range page {
			if err := fn(chunk); err != nil {
				return err
			}
		}
		last := encodeID(page[len(page)-1].ID)
		after = &last
	}
}

// Dimension returns the stored embedding size, 0 before the first write.
func (s *VectorStore) Dimension(ctx context.Context) (int, error) {
	var dim int
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT value FROM %s_meta WHERE name = $1`, s.table), dimensionName).Scan(&dim)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return dim, wrapUnavailable(err)
}

// SetDimension overrides the stored embedding size.
func (s *VectorStore) SetDimension(ctx context.Context, dim int) error {
	if dim < 0 {
		return fmt.Errorf("%w: dimension must not be negative", storage.ErrInvalidQuery)
	}
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s_meta (name, value) VALUES ($1, $2)
			 ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`, s.table),
		dimensionName, dim)
	return wrapUnavailable(err)
}

// Count returns the number of stored chunks.
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)).Scan(&n)
	return n, wrapUnavailable(err)
}

const chunkColumns = `id, document_id, chunk_index, start_offset, end_offset, content, metadata, embedding`

// scanChunk reads one row selected with chunkColumns followed by extra columns.
func scanChunk(rows pgx.Row, extra ...any) (*core.Chunk, error) {
	var (
		id        int64
		chunk     core.Chunk
		embedding pgvector.Vector
	)
	dest := append([]any{
		&id, &chunk.DocumentID, &chunk.Index, &chunk.Start, &chunk.End,
		&chunk.Text, &chunk.Metadata, &embedding,
	}, extra...)
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	chunk.ID = decodeID(id)
	chunk.Embedding = embedding.Slice()
	return &chunk, nil
}

// encodeID maps an ID onto BIGINT so that signed column order matches
// unsigned ID order.
func encodeID(id core.ID) int64 {
	return int64(uint64(id) ^ (1 << 63))
}

func decodeID(v int64) core.ID {
	return core.ID(uint64(v) ^ (1 << 63))
}

// wrapUnavailable classifies database failures as a vector store outage.
// Domain errors and cancellation pass through unchanged.
func wrapUnavailable(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrConfig),
		errors.Is(err, storage.ErrInvalidQuery),
		errors.Is(err, storage.ErrMissingEmbedding),
		errors.Is(err, core.ErrVectorUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", core.ErrVectorUnavailable, err)
	}
}
