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

package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/storage"
)

// maxConflictRetries bounds how often an optimistic transaction is replayed
// after badger.ErrConflict.
const maxConflictRetries = 16

// Backend wraps a BadgerDB instance and provides low-level operations.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist. An empty path with inMemory
// set opens a throwaway in-memory database.
func OpenBackend(filePath string, inMemory bool) (*Backend, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(filePath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			if err := os.MkdirAll(filePath, 0755); err != nil {
				return nil, err
			}
			if info, err = os.Stat(filePath); err != nil {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s is not a directory", core.ErrConfig, filePath)
		}
		opts = badger.DefaultOptions(filePath)
	}

	logger := slog.Default().With("component", "badger")
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		db:     db,
		logger: logger,
	}, nil
}

// Close closes the BadgerDB database. Closing twice is a no-op.
func (b *Backend) Close() error {
	if b.db.IsClosed() {
		return nil
	}
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// View runs fn in a read-only transaction.
func (b *Backend) View(ctx context.Context, fn func(tx *badger.Txn) error) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	return b.db.View(fn)
}

// Update runs fn in a read-write transaction and commits it. Conflicting
// commits are replayed, so fn must only derive its results inside the
// transaction. Gives up with storage.ErrTransactionFailed.
func (b *Backend) Update(ctx context.Context, fn func(tx *badger.Txn) error) error {
	var err error
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		if err := b.check(ctx); err != nil {
			return err
		}
		err = b.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		b.logger.Debug("transaction conflict, retrying", "attempt", attempt)
	}
	return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
}

func (b *Backend) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// scanPrefix calls fn with the key of every item under prefix, in key order.
// Values are not prefetched.
func scanPrefix(tx *badger.Txn, prefix []byte, fn func(key []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		if err := fn(iter.Item().KeyCopy(nil)); err != nil {
			return err
		}
	}
	return nil
}

// countPrefix counts the keys under prefix.
func countPrefix(tx *badger.Txn, prefix []byte) (int, error) {
	n := 0
	err := scanPrefix(tx, prefix, func([]byte) error {
		n++
		return nil
	})
	return n, err
}

// readValue loads the value at key and decodes it.
// A missing key yields nil, nil.
func readValue[T any](tx *badger.Txn, key []byte, decode func([]byte) (*T, error)) (*T, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var v *T
	err = item.Value(func(val []byte) error {
		var err error
		v, err = decode(val)
		return err
	})
	return v, err
}

// wrapUnavailable classifies a backend failure under the given sentinel.
// Lookup misses, duplicates, validation failures, dimension mismatches and
// cancellation pass through unchanged.
func wrapUnavailable(sentinel, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrDuplicateKey),
		errors.Is(err, storage.ErrInvalidQuery),
		errors.Is(err, storage.ErrMissingEmbedding),
		errors.Is(err, core.ErrConfig),
		errors.Is(err, core.ErrInvalidEntity),
		errors.Is(err, core.ErrInvalidRelationship),
		errors.Is(err, core.ErrInvalidAttributes),
		errors.Is(err, core.ErrInvalidDocument),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, sentinel):
		return err
	default:
		return fmt.Errorf("%w: %w", sentinel, err)
	}
}
