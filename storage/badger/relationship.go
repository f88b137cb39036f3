package badger

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/storage"
)

// UpsertRelationship creates the relationship or reinforces the stored one.
// The ID is derived from (source, target, normalized type), so re-extracting
// the same fact from the same chunk leaves the stored relationship unchanged.
func (s *GraphStore) UpsertRelationship(ctx context.Context, rel *core.Relationship) (*core.Relationship, error) {
	rel.Type = core.NormalizeRelationType(rel.Type)
	if err := core.ValidateRelationship(rel); err != nil {
		return nil, err
	}
	rel.ID = core.RelationshipID(rel.SourceID, rel.TargetID, rel.Type)

	var stored *core.Relationship
	err := s.backend.Update(ctx, func(tx *badger.Txn) error {
		for _, endpoint := range []core.ID{rel.SourceID, rel.TargetID} {
			if _, err := tx.Get(makeEntityKey(endpoint)); err != nil {
				if err == badger.ErrKeyNotFound {
					return fmt.Errorf("%w: %w: entity %d", core.ErrInvalidRelationship, storage.ErrNotFound, endpoint)
				}
				return err
			}
		}

		existing, err := readRelationship(tx, rel.ID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if existing != nil {
			if !existing.Reinforce(rel) {
				stored = existing
				return nil
			}
			existing.UpdatedAt = now
			stored = existing
			if err := writeRelationship(tx, existing); err != nil {
				return err
			}
			return indexProvenance(tx, existing)
		}

		stored = &core.Relationship{
			ID:         rel.ID,
			SourceID:   rel.SourceID,
			TargetID:   rel.TargetID,
			Type:       rel.Type,
			Confidence: rel.Confidence,
			Provenance: slices.Clone(rel.Provenance),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := writeRelationship(tx, stored); err != nil {
			return err
		}
		if err := tx.Set(makeAdjacencyKey(stored.SourceID, stored.ID), nil); err != nil {
			return err
		}
		if err := tx.Set(makeAdjacencyKey(stored.TargetID, stored.ID), nil); err != nil {
			return err
		}
		return indexProvenance(tx, stored)
	})
	if err != nil {
		return nil, wrapUnavailable(core.ErrGraphUnavailable, err)
	}
	return stored, nil
}

// GetRelationship retrieves a relationship by ID.
func (s *GraphStore) GetRelationship(ctx context.Context, id core.ID) (*core.Relationship, error) {
	var result *core.Relationship
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = readRelationship(tx, id)
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

// RelationshipsOf returns every relationship touching the entity, ordered by ID.
func (s *GraphStore) RelationshipsOf(ctx context.Context, entityID core.ID) ([]*core.Relationship, error) {
	var result []*core.Relationship
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = adjacentRelationships(tx, entityID)
		return err
	})
	return result, wrapUnavailable(core.ErrGraphUnavailable, err)
}

// Traverse walks the graph breadth-first from the seeds, following
// relationships in both directions. A relationship touching a seed is at
// hop 1, one reached through a neighbour at hop 2, and so on. Seeds that do
// not exist are ignored.
func (s *GraphStore) Traverse(ctx context.Context, seeds []core.ID, maxHops int) ([]core.GraphHit, error) {
	if maxHops < 1 {
		return nil, fmt.Errorf("%w: max hops must be positive, got %d", storage.ErrInvalidQuery, maxHops)
	}

	var hits []core.GraphHit
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		hits = hits[:0]
		entities := make(map[core.ID]*core.Entity)
		loadEntity := func(id core.ID) (*core.Entity, error) {
			if e, ok := entities[id]; ok {
				return e, nil
			}
			e, err := readEntity(tx, id)
			if err != nil {
				return nil, err
			}
			entities[id] = e
			return e, nil
		}

		visited := make(map[core.ID]bool)
		seen := make(map[core.ID]bool)
		var frontier []core.ID
		for _, id := range seeds {
			if visited[id] {
				continue
			}
			visited[id] = true
			frontier = append(frontier, id)
		}
		slices.Sort(frontier)

		for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			var next []core.ID
			for _, entityID := range frontier {
				rels, err := adjacentRelationships(tx, entityID)
				if err != nil {
					return err
				}
				for _, rel := range rels {
					if seen[rel.ID] {
						continue
					}
					seen[rel.ID] = true

					source, err := loadEntity(rel.SourceID)
					if err != nil {
						return err
					}
					target, err := loadEntity(rel.TargetID)
					if err != nil {
						return err
					}
					if source == nil || target == nil {
						s.logger.Warn("relationship with missing endpoint", "relationship", rel.ID)
						continue
					}
					hits = append(hits, core.GraphHit{
						Relationship: rel,
						Source:       source,
						Target:       target,
						Hops:         hop,
					})

					other := rel.TargetID
					if other == entityID {
						other = rel.SourceID
					}
					if !visited[other] {
						visited[other] = true
						next = append(next, other)
					}
				}
			}
			slices.Sort(next)
			frontier = next
		}
		return nil
	})
	if err != nil {
		return nil, wrapUnavailable(core.ErrGraphUnavailable, err)
	}
	return hits, nil
}

// Stats reports entity and relationship counts.
func (s *GraphStore) Stats(ctx context.Context) (storage.GraphStats, error) {
	var stats storage.GraphStats
	err := s.backend.View(ctx, func(tx *badger.Txn) error {
		var err error
		if stats.Entities, err = countPrefix(tx, []byte(entityPrefix)); err != nil {
			return err
		}
		stats.Relationships, err = countPrefix(tx, []byte(relationshipPrefix))
		return err
	})
	return stats, wrapUnavailable(core.ErrGraphUnavailable, err)
}

// ForgetDocument removes the mentions and provenance contributed by the
// document's chunks. A relationship left without provenance is deleted along
// with its adjacency entries; entities are kept so aliases keep resolving.
func (s *GraphStore) ForgetDocument(ctx context.Context, documentID string) (storage.ForgetResult, error) {
	var result storage.ForgetResult
	err := s.backend.Update(ctx, func(tx *badger.Txn) error {
		result = storage.ForgetResult{}
		now := time.Now().UTC()

		var relKeys [][]byte
		err := scanPrefix(tx, makePartialDocRelationKey(documentID), func(key []byte) error {
			relKeys = append(relKeys, key)
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range relKeys {
			if err := tx.Delete(key); err != nil {
				return err
			}
			rel, err := readRelationship(tx, idFromKeySuffix(key))
			if err != nil {
				return err
			}
			if rel == nil || !rel.ForgetDocument(documentID) {
				continue
			}
			if len(rel.Provenance) > 0 {
				rel.UpdatedAt = now
				if err := writeRelationship(tx, rel); err != nil {
					return err
				}
				result.Relationships++
				continue
			}
			for _, k := range [][]byte{
				makeRelationshipKey(rel.ID),
				makeAdjacencyKey(rel.SourceID, rel.ID),
				makeAdjacencyKey(rel.TargetID, rel.ID),
			} {
				if err := tx.Delete(k); err != nil {
					return err
				}
			}
			result.DeletedRelationships++
		}

		var entityKeys [][]byte
		err = scanPrefix(tx, makePartialDocEntityKey(documentID), func(key []byte) error {
			entityKeys = append(entityKeys, key)
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range entityKeys {
			if err := tx.Delete(key); err != nil {
				return err
			}
			entity, err := readEntity(tx, idFromKeySuffix(key))
			if err != nil {
				return err
			}
			if entity == nil || !entity.ForgetDocument(documentID) {
				continue
			}
			entity.UpdatedAt = now
			value, err := storage.MarshalEntity(entity)
			if err != nil {
				return err
			}
			if err := tx.Set(makeEntityKey(entity.ID), value); err != nil {
				return err
			}
			result.Entities++
		}
		return nil
	})
	if err != nil {
		return storage.ForgetResult{}, wrapUnavailable(core.ErrGraphUnavailable, err)
	}
	if result != (storage.ForgetResult{}) {
		s.logger.Debug("forgot document", "document", documentID,
			"entities", result.Entities,
			"relationships", result.Relationships,
			"deleted_relationships", result.DeletedRelationships)
	}
	return result, nil
}

func indexProvenance(tx *badger.Txn, rel *core.Relationship) error {
	var docs []string
	for _, p := range rel.Provenance {
		if p.DocumentID == "" || slices.Contains(docs, p.DocumentID) {
			continue
		}
		docs = append(docs, p.DocumentID)
		if err := tx.Set(makeDocRelationKey(p.DocumentID, rel.ID), nil); err != nil {
			return err
		}
	}
	return nil
}

func adjacentRelationships(tx *badger.Txn, entityID core.ID) ([]*core.Relationship, error) {
	var ids []core.ID
	err := scanPrefix(tx, makePartialAdjacencyKey(entityID), func(key []byte) error {
		ids = append(ids, idFromKeySuffix(key))
		return nil
	})
	if err != nil {
		return nil, err
	}

	rels := make([]*core.Relationship, 0, len(ids))
	for _, id := range ids {
		rel, err := readRelationship(tx, id)
		if err != nil {
			return nil, err
		}
		if rel != nil {
			rels = append(rels, rel)
		}
	}
	return rels, nil
}

func writeRelationship(tx *badger.Txn, rel *core.Relationship) error {
	value, err := storage.MarshalRelationship(rel)
	if err != nil {
		return err
	}
	return tx.Set(makeRelationshipKey(rel.ID), value)
}

// readRelationship reads a relationship from the transaction. A missing one yields nil, nil.
func readRelationship(tx *badger.Txn, id core.ID) (*core.Relationship, error) {
	return readValue(tx, makeRelationshipKey(id), storage.UnmarshalRelationship)
}
