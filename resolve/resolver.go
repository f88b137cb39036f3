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

package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/storage"
	"github.com/xrash/smetrics"
)

const (
	// DefaultThreshold is the minimum Jaro-Winkler similarity for a fuzzy merge.
	DefaultThreshold = 0.92

	// Jaro-Winkler parameters: boost above 0.7 with a prefix of up to 4 runes.
	boostThreshold = 0.7
	prefixSize     = 4
)

// Mention is a surface form of an entity found in one chunk.
type Mention struct {
	Name   string
	Type   core.EntityType
	Ref    core.ChunkRef
	Offset int
}

// Resolution is the canonical entity a mention resolved to.
type Resolution struct {
	EntityID core.ID
	Created  bool
	Entity   *core.Entity
	Score    float64 // 1 for exact alias matches and new entities
}

// Resolver maps mentions onto canonical entities held by an EntityStore.
// It is safe for concurrent use; all state lives in the store.
type Resolver struct {
	store     storage.EntityStore
	threshold float64
	logger    *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithThreshold sets the minimum similarity for a fuzzy match, in (0, 1].
func WithThreshold(threshold float64) Option {
	return func(r *Resolver) {
		r.threshold = threshold
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a Resolver over store.
func New(store storage.EntityStore, opts ...Option) (*Resolver, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: resolver needs an entity store", core.ErrConfig)
	}
	r := &Resolver{
		store:     store,
		threshold: DefaultThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.threshold <= 0 || r.threshold > 1 {
		return nil, fmt.Errorf("%w: similarity threshold %v outside (0, 1]", core.ErrConfig, r.threshold)
	}
	r.logger = r.logger.With("component", "resolver")
	return r, nil
}

// Threshold returns the fuzzy match threshold.
func (r *Resolver) Threshold() float64 {
	return r.threshold
}

// Resolve returns the canonical entity for m, creating it when nothing
// matches. The created entity carries only the name; mentions are recorded
// when the graph writer upserts it.
func (r *Resolver) Resolve(ctx context.Context, m Mention) (*Resolution, error) {
	name := strings.TrimSpace(m.Name)
	normalized := Normalize(name)
	if normalized == "" {
		return nil, fmt.Errorf("%w: %w: %q", core.ErrInvalidEntity, core.ErrEmptyName, m.Name)
	}
	entityType := m.Type
	if !entityType.IsValid() {
		entityType = core.ParseEntityType(string(m.Type))
	}

	res, err := r.match(ctx, name, normalized, entityType)
	if err != nil {
		return nil, err
	}
	if res != nil {
		return res, nil
	}

	entity := &core.Entity{
		ID:   core.EntityID(entityType, normalized),
		Type: entityType,
		Name: name,
	}
	created, err := r.store.CreateEntity(ctx, entity)
	if err == nil {
		r.logger.Debug("created entity", "name", name, "type", entityType, "id", created.ID)
		return &Resolution{EntityID: created.ID, Created: true, Entity: created, Score: 1}, nil
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		return nil, err
	}

	// Someone else created it first; look again.
	existing, findErr := r.store.GetEntity(ctx, entity.ID)
	if findErr != nil {
		return nil, errors.Join(err, findErr)
	}
	return &Resolution{EntityID: existing.ID, Entity: existing, Score: 1}, nil
}

// Lookup resolves a query-time name without minting. An empty type matches
// entities of any type. Returns storage.ErrNotFound when nothing matches.
func (r *Resolver) Lookup(ctx context.Context, name string, entityType core.EntityType) (*Resolution, error) {
	name = strings.TrimSpace(name)
	normalized := Normalize(name)
	if normalized == "" {
		return nil, fmt.Errorf("%w: empty name", storage.ErrNotFound)
	}
	if entityType == "" {
		entityType = core.EntityOther
	}

	res, err := r.match(ctx, name, normalized, entityType)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: no entity matches %q", storage.ErrNotFound, name)
	}
	return res, nil
}

// match applies the exact-alias then fuzzy policy. Returns nil, nil on no match.
func (r *Resolver) match(ctx context.Context, name, normalized string, entityType core.EntityType) (*Resolution, error) {
	exact, err := r.store.FindByAlias(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, e := range exact {
		if typesCompatible(entityType, e.Type) {
			return &Resolution{EntityID: e.ID, Entity: e, Score: 1}, nil
		}
	}

	listType := entityType
	if entityType == core.EntityOther {
		listType = ""
	}
	candidates, err := r.store.ListEntities(ctx, listType)
	if err != nil {
		return nil, err
	}

	var (
		best      *core.Entity
		bestScore float64
	)
	for _, e := range candidates {
		score := bestAliasScore(normalized, e)
		if score < r.threshold {
			continue
		}
		// Candidates arrive in ID order, so strict > keeps the lowest ID on ties.
		if best == nil || score > bestScore {
			best, bestScore = e, score
		}
	}
	if best == nil {
		return nil, nil
	}
	r.logger.Debug("fuzzy entity match", "name", name, "entity", best.Name, "score", bestScore)
	return &Resolution{EntityID: best.ID, Entity: best, Score: bestScore}, nil
}

// Similarity returns the Jaro-Winkler similarity of two normalized names.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return smetrics.JaroWinkler(a, b, boostThreshold, prefixSize)
}

func bestAliasScore(normalized string, e *core.Entity) float64 {
	best := Similarity(normalized, Normalize(e.Name))
	for _, alias := range e.Aliases {
		if s := Similarity(normalized, Normalize(alias)); s > best {
			best = s
		}
	}
	return best
}

// typesCompatible reports whether a mention typed want may resolve to an
// entity typed have. The "other" type is compatible with everything.
func typesCompatible(want, have core.EntityType) bool {
	return want == have || want == core.EntityOther || have == core.EntityOther
}
