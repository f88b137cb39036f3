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
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/storage"
)

// DocumentStore implements storage.DocumentStore for BadgerDB.
// It keeps the source documents and the latest ingest outcome per document,
// which lets the pipeline skip unchanged documents on re-ingest.
type DocumentStore struct {
	backend *Backend
}

var _ storage.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates a new DocumentStore.
func NewDocumentStore(backend *Backend) *DocumentStore {
	return &DocumentStore{
		backend: backend,
	}
}

// Close releases resources. DocumentStore has no resources to release.
func (s *DocumentStore) Close() error {
	return nil
}

// PutDocument stores or replaces a document.
func (s *DocumentStore) PutDocument(ctx context.Context, doc *core.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: id must be set", core.ErrInvalidDocument)
	}
	value, err := storage.MarshalDocument(doc)
	if err != nil {
		return err
	}
	return s.backend.Update(ctx, func(tx *badger.Txn) error {
		return tx.Set(makeDocumentKey(doc.ID), value)
	})
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	var doc *core.Document
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		var err error
		doc, err = readValue(tx, makeDocumentKey(id), storage.UnmarshalDocument)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return doc, err
}

// PutOutcome stores the latest outcome for a document.
func (s *DocumentStore) PutOutcome(ctx context.Context, outcome *core.IngestOutcome) error {
	if outcome.DocumentID == "" {
		return fmt.Errorf("%w: outcome without document id", core.ErrInvalidDocument)
	}
	value, err := storage.MarshalOutcome(outcome)
	if err != nil {
		return err
	}
	return s.backend.Update(ctx, func(tx *badger.Txn) error {
		return tx.Set(makeOutcomeKey(outcome.DocumentID), value)
	})
}

// GetOutcome retrieves the latest outcome for a document.
// Returns storage.ErrNotFound if the document was never ingested.
func (s *DocumentStore) GetOutcome(ctx context.Context, documentID string) (*core.IngestOutcome, error) {
	var outcome *core.IngestOutcome
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		var err error
		outcome, err = readValue(tx, makeOutcomeKey(documentID), storage.UnmarshalOutcome)
		if err != nil {
			return err
		}
		if outcome == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return outcome, err
}

// ListOutcomes returns every recorded outcome ordered by document ID.
func (s *DocumentStore) ListOutcomes(ctx context.Context) ([]*core.IngestOutcome, error) {
	var outcomes []*core.IngestOutcome
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(outcomePrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var outcome *core.IngestOutcome
			err := iter.Item().Value(func(val []byte) error {
				var err error
				outcome, err = storage.UnmarshalOutcome(val)
				return err
			})
			if err != nil {
				return err
			}
			outcomes = append(outcomes, outcome)
		}
		return nil
	})
	return outcomes, err
}
