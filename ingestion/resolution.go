package ingestion

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/resolve"
	"github.com/santhosh0997/Multimodal-Rag-System/retry"
)

// resolved is the canonical graph data of one document, ready to persist.
type resolved struct {
	entities      []*core.Entity
	relationships []*core.Relationship
}

// resolveBatch maps every extracted mention of b onto a canonical entity and
// rewrites the extracted triples in terms of entity IDs. Entities that fail
// validation are skipped; a store failure aborts the document.
func (p *Pipeline) resolveBatch(ctx context.Context, b *batch) (*resolved, error) {
	out := &resolved{}
	byID := make(map[core.ID]*core.Entity)

	for i, extraction := range b.extractions {
		if extraction == nil {
			continue
		}
		chunk := b.chunks[i]
		ref := chunk.Ref()

		// Surface name (lowercased) -> canonical ID, scoped to this chunk.
		local := make(map[string]core.ID, len(extraction.Entities))
		for _, extracted := range extraction.Entities {
			mention := resolve.Mention{
				Name:   extracted.Name,
				Type:   core.ParseEntityType(extracted.Type),
				Ref:    ref,
				Offset: mentionOffset(chunk, extracted.Name),
			}
			res, err := retry.DoValue(ctx, p.retryPolicy, func(ctx context.Context) (*resolve.Resolution, error) {
				return p.resolver.Resolve(ctx, mention)
			})
			if err != nil {
				if errors.Is(err, core.ErrInvalidEntity) {
					p.logger.Debug("skipping invalid entity", "name", extracted.Name, "err", err)
					continue
				}
				return nil, retry.Classify(core.ErrGraphUnavailable, err)
			}
			local[strings.ToLower(strings.TrimSpace(extracted.Name))] = res.EntityID

			m := core.Mention{ChunkID: chunk.ID, DocumentID: chunk.DocumentID, Offset: mention.Offset}
			entity, ok := byID[res.EntityID]
			if !ok {
				entity = &core.Entity{
					ID:   res.EntityID,
					Type: res.Entity.Type,
					Name: res.Entity.Name,
				}
				byID[res.EntityID] = entity
				out.entities = append(out.entities, entity)
			}
			if name := strings.TrimSpace(extracted.Name); !entity.HasAlias(name) {
				entity.Aliases = append(entity.Aliases, name)
			}
			if !entity.HasMention(m) {
				entity.Mentions = append(entity.Mentions, m)
			}
			p.mergeAttributes(entity, extracted.Attributes)
		}

		for _, rel := range extraction.Relationships {
			sourceID, okSource := local[strings.ToLower(strings.TrimSpace(rel.Source))]
			targetID, okTarget := local[strings.ToLower(strings.TrimSpace(rel.Target))]
			if !okSource || !okTarget {
				continue
			}
			if sourceID == targetID {
				p.logger.Debug("skipping self relationship", "entity", rel.Source, "relation", rel.Relation)
				continue
			}
			out.relationships = append(out.relationships, &core.Relationship{
				SourceID:   sourceID,
				TargetID:   targetID,
				Type:       core.NormalizeRelationType(rel.Relation),
				Confidence: rel.Confidence,
				Provenance: []core.ChunkRef{ref},
			})
		}
	}
	return out, nil
}

// mergeAttributes copies extracted attributes onto entity under normalized
// keys. Pairs that would fail validation are dropped one by one so a single
// bad attribute never costs the entity.
func (p *Pipeline) mergeAttributes(entity *core.Entity, attrs map[string]string) {
	for _, k := range slices.Sorted(maps.Keys(attrs)) {
		key := core.NormalizeRelationType(k)
		pair := map[string]string{key: attrs[k]}
		if err := core.ValidateAttributes(pair); err != nil {
			p.logger.Debug("dropping entity attribute", "entity", entity.Name, "key", k, "err", err)
			continue
		}
		if entity.Attributes == nil {
			entity.Attributes = make(map[string]string)
		}
		entity.Attributes[key] = attrs[k]
	}
}

// mentionOffset returns the rune offset of name within the chunk text,
// or 0 when the extractor paraphrased it.
func mentionOffset(chunk *core.Chunk, name string) int {
	i := strings.Index(chunk.Text, strings.TrimSpace(name))
	if i < 0 {
		i = strings.Index(strings.ToLower(chunk.Text), strings.ToLower(strings.TrimSpace(name)))
	}
	if i < 0 || i > len(chunk.Text) {
		return 0
	}
	return utf8.RuneCountInString(chunk.Text[:i])
}
