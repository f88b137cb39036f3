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

package core

import (
	"fmt"
	"strings"
)

const (
	maxMetadataKeyLen  = 64
	maxAttributeValLen = 1024
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Text must not be empty or whitespace only
//   - Metadata keys must be non-empty and at most 64 bytes
//
// NOT validated:
//   - ID (minted by the orchestrator when empty)
//   - Origin (optional)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if strings.TrimSpace(doc.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyContent)
	}

	for k := range doc.Metadata {
		if k == "" || len(k) > maxMetadataKeyLen {
			return fmt.Errorf("%w: metadata key %q must be 1-%d bytes", ErrInvalidDocument, k, maxMetadataKeyLen)
		}
	}

	return nil
}

// ValidateAttributes validates an open attribute mapping.
// Keys are lower snake case identifiers; values are bounded in size.
func ValidateAttributes(attrs map[string]string) error {
	for k, v := range attrs {
		if k == "" || len(k) > maxMetadataKeyLen {
			return fmt.Errorf("%w: key %q must be 1-%d bytes", ErrInvalidAttributes, k, maxMetadataKeyLen)
		}
		for _, r := range k {
			if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '_' {
				return fmt.Errorf("%w: key %q must match [a-z0-9_]+", ErrInvalidAttributes, k)
			}
		}
		if len(v) > maxAttributeValLen {
			return fmt.Errorf("%w: value for %q exceeds %d bytes", ErrInvalidAttributes, k, maxAttributeValLen)
		}
	}
	return nil
}

// ValidateEntity validates an Entity according to domain rules.
//
// Validation rules:
//   - Name must not be empty
//   - Type must belong to the closed set
//   - Attributes must pass ValidateAttributes
func ValidateEntity(entity *Entity) error {
	if entity == nil {
		return fmt.Errorf("%w: entity is nil", ErrInvalidEntity)
	}

	if strings.TrimSpace(entity.Name) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrEmptyName)
	}

	if !entity.Type.IsValid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidEntity, ErrInvalidEntityType, entity.Type)
	}

	if err := ValidateAttributes(entity.Attributes); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, err)
	}

	return nil
}

// ValidateRelationship validates a Relationship according to domain rules.
//
// Validation rules:
//   - SourceID and TargetID must be set
//   - Type must not be empty
//   - Confidence must be within [0, 1]
//
// Endpoint existence is checked by the graph store, not here.
func ValidateRelationship(rel *Relationship) error {
	if rel == nil {
		return fmt.Errorf("%w: relationship is nil", ErrInvalidRelationship)
	}

	if rel.SourceID == 0 || rel.TargetID == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRelationship, ErrMissingEndpoint)
	}

	if strings.TrimSpace(rel.Type) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRelationship, ErrEmptyName)
	}

	if rel.Confidence < 0 || rel.Confidence > 1 {
		return fmt.Errorf("%w: %w", ErrInvalidRelationship, ErrConfidenceRange)
	}

	return nil
}
