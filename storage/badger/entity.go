package badger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/storage"
)

// GraphStore implements storage.GraphStore for BadgerDB.
//
// Entities live under their ID with two secondary indices: a case-insensitive
// alias index feeding resolution and a type index for similarity candidates.
// Relationships are indexed by both endpoints for traversal.
type GraphStore struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.GraphStore = (*GraphStore)(nil)

// NewGraphStore creates a new GraphStore.
func NewGraphStore(backend *Backend) *GraphStore {
	return &GraphStore{
		backend: backend,
		logger:  slog.Default().With("component", "badger-graph"),
	}
}

// Close releases resources. GraphStore has no resources to release;
// the backend is closed by its owner.
func (s *GraphStore) Close() error {
	return nil
}

// GetEntity retrieves a single entity by ID.
func (s *GraphStore) GetEntity(ctx context.Context, id core.ID) (*core.Entity, error) {
	var result *core.Entity
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = readEntity(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return result, wrapUnavailable(core.ErrGraphUnavailable, err)
}

// GetEntities retrieves multiple entities by their IDs.
func (s *GraphStore) GetEntities(ctx context.Context, ids ...core.ID) ([]*core.Entity, error) {
	var result []*core.Entity
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		result = result[:0]
		for _, id := range ids {
			entity, err := readEntity(tx, id)
			if err != nil {
				return err
			}
			if entity != nil {
				result = append(result, entity)
			}
		}
		return nil
	})
	return result, wrapUnavailable(core.ErrGraphUnavailable, err)
}

// FindByAlias returns the entities carrying alias, ordered by ID.
func (s *GraphStore) FindByAlias(ctx context.Context, alias string) ([]*core.Entity, error) {
	if normalizeAlias(alias) == "" {
		return nil, nil
	}

	var result []*core.Entity
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		var ids []core.ID
		err := scanPrefix(tx, makePartialAliasKey(alias), func(key []byte) error {
			ids = append(ids, idFromKeySuffix(key))
			return nil
		})
		if err != nil {
			return err
		}
		for _, id := range ids {
			entity, err := readEntity(tx, id)
			if err != nil {
				return err
			}
			if entity != nil {
				result = append(result, entity)
			}
		}
		return nil
	})
	return result, wrapUnavailable(core.ErrGraphUnavailable, err)
}

// ListEntities returns all entities of the given type ordered by ID.
func (s *GraphStore) ListEntities(ctx context.Context, entityType core.EntityType) ([]*core.Entity, error) {
	var result []*core.Entity
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		if entityType == "" {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(entityPrefix)
			iter := tx.NewIterator(opts)
			defer iter.Close()

			for iter.Rewind(); iter.Valid(); iter.Next() {
				var entity *core.Entity
				err := iter.Item().Value(func(val []byte) error {
					var err error
					entity, err = storage.UnmarshalEntity(val)
					return err
				})
				if err != nil {
					return err
				}
				result = append(result, entity)
			}
			return nil
		}

		var ids []core.ID
		err := scanPrefix(tx, makePartialTypeKey(entityType), func(key []byte) error {
			ids = append(ids, idFromKeySuffix(key))
			return nil
		})
		if err != nil {
			return err
		}
		for _, id := range ids {
			entity, err := readEntity(tx, id)
			if err != nil {
				return err
			}
			if entity != nil {
				result = append(result, entity)
			}
		}
		return nil
	})
	return result, wrapUnavailable(core.ErrGraphUnavailable, err)
}

// CreateEntity stores a new entity. Returns storage.ErrDuplicateKey if the ID is taken.
func (s *GraphStore) CreateEntity(ctx context.Context, entity *core.Entity) (*core.Entity, error) {
	if err := prepareEntity(entity); err != nil {
		return nil, err
	}

	var stored *core.Entity
	err := s.backend.Update(ctx, func(tx *badger.Txn) error {
		existing, err := readEntity(tx, entity.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: entity %d", storage.ErrDuplicateKey, entity.ID)
		}
		stored = cloneEntity(entity)
		now := time.Now().UTC()
		stored.CreatedAt = now
		stored.UpdatedAt = now
		return writeEntity(tx, stored, nil, true)
	})
	if err != nil {
		return nil, wrapUnavailable(core.ErrGraphUnavailable, err)
	}
	return stored, nil
}

// UpsertEntity creates the entity or merges it into the stored one.
func (s *GraphStore) UpsertEntity(ctx context.Context, entity *core.Entity) (*core.Entity, error) {
	if err := prepareEntity(entity); err != nil {
		return nil, err
	}

	var stored *core.Entity
	err := s.backend.Update(ctx, func(tx *badger.Txn) error {
		existing, err := readEntity(tx, entity.ID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if existing == nil {
			stored = cloneEntity(entity)
			stored.CreatedAt = now
			stored.UpdatedAt = now
			return writeEntity(tx, stored, nil, true)
		}

		previous := slices.Clone(existing.Aliases)
		if !existing.Merge(entity) {
			stored = existing
			return nil
		}
		if err := core.ValidateAttributes(existing.Attributes); err != nil {
			return fmt.Errorf("%w: %w", core.ErrInvalidEntity, err)
		}
		existing.UpdatedAt = now
		stored = existing
		return writeEntity(tx, existing, previous, false)
	})
	if err != nil {
		return nil, wrapUnavailable(core.ErrGraphUnavailable, err)
	}
	return stored, nil
}

// prepareEntity validates an entity and makes its name one of its aliases.
func prepareEntity(entity *core.Entity) error {
	if err := core.ValidateEntity(entity); err != nil {
		return err
	}
	if entity.ID == 0 {
		return fmt.Errorf("%w: id must be set", core.ErrInvalidEntity)
	}
	entity.Name = strings.TrimSpace(entity.Name)
	if !entity.HasAlias(entity.Name) {
		entity.Aliases = append([]string{entity.Name}, entity.Aliases...)
	}
	return nil
}

// writeEntity stores the entity record and indexes every alias not in previous.
// New entities are also added to the type index. Every document the entity
// is mentioned in points back at it.
func writeEntity(tx *badger.Txn, entity *core.Entity, previous []string, isNew bool) error {
	value, err := storage.MarshalEntity(entity)
	if err != nil {
		return err
	}
	if err := tx.Set(makeEntityKey(entity.ID), value); err != nil {
		return err
	}
	if isNew {
		if err := tx.Set(makeTypeKey(entity.Type, entity.ID), nil); err != nil {
			return err
		}
	}
	for _, alias := range entity.Aliases {
		if slices.ContainsFunc(previous, func(p string) bool { return strings.EqualFold(p, alias) }) {
			continue
		}
		if err := tx.Set(makeAliasKey(alias, entity.ID), nil); err != nil {
			return err
		}
	}
	return indexMentions(tx, entity)
}

func indexMentions(tx *badger.Txn, entity *core.Entity) error {
	var docs []string
	for _, m := range entity.Mentions {
		if m.DocumentID == "" || slices.Contains(docs, m.DocumentID) {
			continue
		}
		docs = append(docs, m.DocumentID)
		if err := tx.Set(makeDocEntityKey(m.DocumentID, entity.ID), nil); err != nil {
			return err
		}
	}
	return nil
}

// readEntity reads an entity from the transaction. A missing entity yields nil, nil.
func readEntity(tx *badger.Txn, id core.ID) (*core.Entity, error) {
	return readValue(tx, makeEntityKey(id), storage.UnmarshalEntity)
}

func cloneEntity(e *core.Entity) *core.Entity {
	c := *e
	c.Aliases = slices.Clone(e.Aliases)
	c.Mentions = slices.Clone(e.Mentions)
	if e.Attributes != nil {
		c.Attributes = make(map[string]string, len(e.Attributes))
		for k, v := range e.Attributes {
			c.Attributes[k] = v
		}
	}
	return &c
}
