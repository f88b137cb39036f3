package ai

import (
	"strings"

	"github.com/santhosh0997/Multimodal-Rag-System/core"
)

// EntityTypeNames lists the entity type labels offered to extraction models.
func EntityTypeNames() []string {
	names := make([]string, len(core.EntityTypes))
	for i, t := range core.EntityTypes {
		names[i] = string(t)
	}
	return names
}

// Sanitize drops relationships whose endpoints are missing from the entity
// set and removes empty or duplicate entities. Entity matching is
// case-insensitive. The returned slice holds the dropped relationships.
func (e *Extraction) Sanitize() []ExtractedRelationship {
	known := make(map[string]bool, len(e.Entities))
	entities := e.Entities[:0]
	for _, ent := range e.Entities {
		name := strings.TrimSpace(ent.Name)
		key := strings.ToLower(name)
		if name == "" || known[key] {
			continue
		}
		known[key] = true
		ent.Name = name
		entities = append(entities, ent)
	}
	e.Entities = entities

	var dropped []ExtractedRelationship
	rels := e.Relationships[:0]
	for _, rel := range e.Relationships {
		rel.Source = strings.TrimSpace(rel.Source)
		rel.Target = strings.TrimSpace(rel.Target)
		if strings.TrimSpace(rel.Relation) == "" ||
			!known[strings.ToLower(rel.Source)] ||
			!known[strings.ToLower(rel.Target)] {
			dropped = append(dropped, rel)
			continue
		}
		if rel.Confidence <= 0 || rel.Confidence > 1 {
			rel.Confidence = 1
		}
		rels = append(rels, rel)
	}
	e.Relationships = rels
	return dropped
}
