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

package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/mus-format/mus-go"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
)

// MarshalID serializes an ID to 8 big-endian bytes, so encoded IDs sort numerically.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: id needs 8 bytes, got %d", ErrSerializationFailed, len(data))
	}
	return core.ID(binary.BigEndian.Uint64(data)), nil
}

// Marshal serializes a stored value with its MUS serializer.
func Marshal[T any](ser mus.Serializer[T], v *T) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil value", ErrSerializationFailed)
	}
	buf := make([]byte, ser.Size(*v))
	ser.Marshal(*v, buf)
	return buf, nil
}

// Unmarshal deserializes a stored value. Trailing bytes are an error.
func Unmarshal[T any](ser mus.Serializer[T], data []byte) (*T, error) {
	v, n, err := ser.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, len(data)-n)
	}
	return &v, nil
}

// MarshalEntity serializes an Entity to bytes.
func MarshalEntity(entity *core.Entity) ([]byte, error) { return Marshal(core.EntityMUS, entity) }

// UnmarshalEntity deserializes an Entity from bytes.
func UnmarshalEntity(data []byte) (*core.Entity, error) { return Unmarshal[core.Entity](core.EntityMUS, data) }

// MarshalRelationship serializes a Relationship to bytes.
func MarshalRelationship(rel *core.Relationship) ([]byte, error) {
	return Marshal(core.RelationshipMUS, rel)
}

// UnmarshalRelationship deserializes a Relationship from bytes.
func UnmarshalRelationship(data []byte) (*core.Relationship, error) {
	return Unmarshal[core.Relationship](core.RelationshipMUS, data)
}

// MarshalChunk serializes a Chunk, embedding included, to bytes.
func MarshalChunk(chunk *core.Chunk) ([]byte, error) { return Marshal(core.ChunkMUS, chunk) }

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) { return Unmarshal[core.Chunk](core.ChunkMUS, data) }

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) ([]byte, error) { return Marshal(core.DocumentMUS, doc) }

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	return Unmarshal[core.Document](core.DocumentMUS, data)
}

// MarshalOutcome serializes an IngestOutcome to bytes.
func MarshalOutcome(outcome *core.IngestOutcome) ([]byte, error) {
	return Marshal(core.OutcomeMUS, outcome)
}

// UnmarshalOutcome deserializes an IngestOutcome from bytes.
func UnmarshalOutcome(data []byte) (*core.IngestOutcome, error) {
	return Unmarshal[core.IngestOutcome](core.OutcomeMUS, data)
}
