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
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the records the stores persist. Fields are written in
// declaration order; adding a field means appending it and migrating data.
var (
	IDMUS           = idMUS{}
	DocumentMUS     = documentMUS{}
	ChunkMUS        = chunkMUS{}
	ChunkRefMUS     = chunkRefMUS{}
	MentionMUS      = mentionMUS{}
	EntityMUS       = entityMUS{}
	RelationshipMUS = relationshipMUS{}
	ChunkFailureMUS = chunkFailureMUS{}
	OutcomeMUS      = outcomeMUS{}
)

var (
	_ mus.Serializer[Entity]        = EntityMUS
	_ mus.Serializer[Relationship]  = RelationshipMUS
	_ mus.Serializer[Chunk]         = ChunkMUS
	_ mus.Serializer[Document]      = DocumentMUS
	_ mus.Serializer[IngestOutcome] = OutcomeMUS
)

var (
	stringsMUS    = nilable[[]string](ord.NewSliceSer[string](ord.String))
	stringMapMUS  = nilable[map[string]string](ord.NewMapSer[string, string](ord.String, ord.String))
	embeddingMUS  = nilable[[]float32](ord.NewSliceSer[float32](raw.Float32))
	mentionsMUS   = nilable[[]Mention](ord.NewSliceSer[Mention](MentionMUS))
	chunkRefsMUS  = nilable[[]ChunkRef](ord.NewSliceSer[ChunkRef](ChunkRefMUS))
	supportMUS    = nilable[map[ID]float64](ord.NewMapSer[ID, float64](IDMUS, raw.Float64))
	failuresMUS   = nilable[[]ChunkFailure](ord.NewSliceSer[ChunkFailure](ChunkFailureMUS))
	entityTypeMUS = stringKind[EntityType]{}
	stateMUS      = stringKind[IngestState]{}
	timeMUS       = timeSer{}
)

// recordReader decodes consecutive fields, stopping at the first error.
type recordReader struct {
	bs  []byte
	n   int
	err error
}

func read[T any](r *recordReader, ser mus.Serializer[T], dst *T) {
	if r.err != nil {
		return
	}
	v, n, err := ser.Unmarshal(r.bs[r.n:])
	r.n += n
	if err != nil {
		r.err = err
		return
	}
	*dst = v
}

func skip[T any](r *recordReader, ser mus.Serializer[T]) {
	if r.err != nil {
		return
	}
	n, err := ser.Skip(r.bs[r.n:])
	r.n += n
	r.err = err
}

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) (n int) { return varint.Uint64.Marshal(uint64(v), bs) }
func (idMUS) Size(v ID) int                   { return varint.Uint64.Size(uint64(v)) }
func (idMUS) Skip(bs []byte) (int, error)     { return varint.Uint64.Skip(bs) }

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

// stringKind serializes string-based enumerations.
type stringKind[T ~string] struct{}

func (stringKind[T]) Marshal(v T, bs []byte) (n int) { return ord.String.Marshal(string(v), bs) }
func (stringKind[T]) Size(v T) int                   { return ord.String.Size(string(v)) }
func (stringKind[T]) Skip(bs []byte) (int, error)    { return ord.String.Skip(bs) }

func (stringKind[T]) Unmarshal(bs []byte) (T, int, error) {
	v, n, err := ord.String.Unmarshal(bs)
	return T(v), n, err
}

// timeSer stores times as UTC Unix nanoseconds. The zero time is stored as 0.
type timeSer struct{}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func (timeSer) Marshal(v time.Time, bs []byte) (n int) { return varint.Int64.Marshal(unixNano(v), bs) }
func (timeSer) Size(v time.Time) int                   { return varint.Int64.Size(unixNano(v)) }
func (timeSer) Skip(bs []byte) (int, error)            { return varint.Int64.Skip(bs) }

func (timeSer) Unmarshal(bs []byte) (time.Time, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || v == 0 {
		return time.Time{}, n, err
	}
	return time.Unix(0, v).UTC(), n, nil
}

// nilableSer keeps a nil slice or map apart from an empty one.
type nilableSer[T any] struct {
	ser mus.Serializer[T]
}

func nilable[T any](ser mus.Serializer[T]) nilableSer[T] {
	return nilableSer[T]{ser: ser}
}

func isNil(v any) bool {
	switch x := v.(type) {
	case []string:
		return x == nil
	case []float32:
		return x == nil
	case []Mention:
		return x == nil
	case []ChunkRef:
		return x == nil
	case []ChunkFailure:
		return x == nil
	case map[string]string:
		return x == nil
	case map[ID]float64:
		return x == nil
	}
	return false
}

func (s nilableSer[T]) Marshal(v T, bs []byte) (n int) {
	if isNil(v) {
		return ord.Bool.Marshal(false, bs)
	}
	n = ord.Bool.Marshal(true, bs)
	return n + s.ser.Marshal(v, bs[n:])
}

func (s nilableSer[T]) Unmarshal(bs []byte) (v T, n int, err error) {
	present, n, err := ord.Bool.Unmarshal(bs)
	if err != nil || !present {
		return v, n, err
	}
	v, n1, err := s.ser.Unmarshal(bs[n:])
	return v, n + n1, err
}

func (s nilableSer[T]) Size(v T) int {
	if isNil(v) {
		return ord.Bool.Size(false)
	}
	return ord.Bool.Size(true) + s.ser.Size(v)
}

func (s nilableSer[T]) Skip(bs []byte) (int, error) {
	present, n, err := ord.Bool.Unmarshal(bs)
	if err != nil || !present {
		return n, err
	}
	n1, err := s.ser.Skip(bs[n:])
	return n + n1, err
}

type documentMUS struct{}

func (documentMUS) Marshal(v Document, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.Origin, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += stringMapMUS.Marshal(v.Metadata, bs[n:])
	return n + timeMUS.Marshal(v.IngestedAt, bs[n:])
}

func (documentMUS) Unmarshal(bs []byte) (v Document, n int, err error) {
	r := &recordReader{bs: bs}
	read(r, ord.String, &v.ID)
	read(r, ord.String, &v.Origin)
	read(r, ord.String, &v.Text)
	read(r, stringMapMUS, &v.Metadata)
	read(r, timeMUS, &v.IngestedAt)
	return v, r.n, r.err
}

func (documentMUS) Size(v Document) int {
	return ord.String.Size(v.ID) +
		ord.String.Size(v.Origin) +
		ord.String.Size(v.Text) +
		stringMapMUS.Size(v.Metadata) +
		timeMUS.Size(v.IngestedAt)
}

func (documentMUS) Skip(bs []byte) (int, error) {
	r := &recordReader{bs: bs}
	skip[string](r, ord.String)
	skip[string](r, ord.String)
	skip[string](r, ord.String)
	skip[map[string]string](r, stringMapMUS)
	skip[time.Time](r, timeMUS)
	return r.n, r.err
}

type chunkMUS struct{}

func (chunkMUS) Marshal(v Chunk, bs []byte) (n int) {
	n = IDMUS.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.DocumentID, bs[n:])
	n += varint.Int.Marshal(v.Index, bs[n:])
	n += varint.Int.Marshal(v.Start, bs[n:])
	n += varint.Int.Marshal(v.End, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += embeddingMUS.Marshal(v.Embedding, bs[n:])
	return n + stringMapMUS.Marshal(v.Metadata, bs[n:])
}

func (chunkMUS) Unmarshal(bs []byte) (v Chunk, n int, err error) {
	r := &recordReader{bs: bs}
	read(r, IDMUS, &v.ID)
	read(r, ord.String, &v.DocumentID)
	read(r, varint.Int, &v.Index)
	read(r, varint.Int, &v.Start)
	read(r, varint.Int, &v.End)
	read(r, ord.String, &v.Text)
	read(r, embeddingMUS, &v.Embedding)
	read(r, stringMapMUS, &v.Metadata)
	return v, r.n, r.err
}

func (chunkMUS) Size(v Chunk) int {
	return IDMUS.Size(v.ID) +
		ord.String.Size(v.DocumentID) +
		varint.Int.Size(v.Index) +
		varint.Int.Size(v.Start) +
		varint.Int.Size(v.End) +
		ord.String.Size(v.Text) +
		embeddingMUS.Size(v.Embedding) +
		stringMapMUS.Size(v.Metadata)
}

func (chunkMUS) Skip(bs []byte) (int, error) {
	r := &recordReader{bs: bs}
	skip[ID](r, IDMUS)
	skip[string](r, ord.String)
	skip[int](r, varint.Int)
	skip[int](r, varint.Int)
	skip[int](r, varint.Int)
	skip[string](r, ord.String)
	skip[[]float32](r, embeddingMUS)
	skip[map[string]string](r, stringMapMUS)
	return r.n, r.err
}

type chunkRefMUS struct{}

func (chunkRefMUS) Marshal(v ChunkRef, bs []byte) (n int) {
	n = IDMUS.Marshal(v.ChunkID, bs)
	n += ord.String.Marshal(v.DocumentID, bs[n:])
	n += varint.Int.Marshal(v.Start, bs[n:])
	return n + varint.Int.Marshal(v.End, bs[n:])
}

func (chunkRefMUS) Unmarshal(bs []byte) (v ChunkRef, n int, err error) {
	r := &recordReader{bs: bs}
	read(r, IDMUS, &v.ChunkID)
	read(r, ord.String, &v.DocumentID)
	read(r, varint.Int, &v.Start)
	read(r, varint.Int, &v.End)
	return v, r.n, r.err
}

func (chunkRefMUS) Size(v ChunkRef) int {
	return IDMUS.Size(v.ChunkID) +
		ord.String.Size(v.DocumentID) +
		varint.Int.Size(v.Start) +
		varint.Int.Size(v.End)
}

func (chunkRefMUS) Skip(bs []byte) (int, error) {
	r := &recordReader{bs: bs}
	skip[ID](r, IDMUS)
	skip[string](r, ord.String)
	skip[int](r, varint.Int)
	skip[int](r, varint.Int)
	return r.n, r.err
}

type mentionMUS struct{}

func (mentionMUS) Marshal(v Mention, bs []byte) (n int) {
	n = IDMUS.Marshal(v.ChunkID, bs)
	n += ord.String.Marshal(v.DocumentID, bs[n:])
	return n + varint.Int.Marshal(v.Offset, bs[n:])
}

func (mentionMUS) Unmarshal(bs []byte) (v Mention, n int, err error) {
	r := &recordReader{bs: bs}
	read(r, IDMUS, &v.ChunkID)
	read(r, ord.String, &v.DocumentID)
	read(r, varint.Int, &v.Offset)
	return v, r.n, r.err
}

func (mentionMUS) Size(v Mention) int {
	return IDMUS.Size(v.ChunkID) + ord.String.Size(v.DocumentID) + varint.Int.Size(v.Offset)
}

func (mentionMUS) Skip(bs []byte) (int, error) {
	r := &recordReader{bs: bs}
	skip[ID](r, IDMUS)
	skip[string](r, ord.String)
	skip[int](r, varint.Int)
	return r.n, r.err
}

type entityMUS struct{}

func (entityMUS) Marshal(v Entity, bs []byte) (n int) {
	n = IDMUS.Marshal(v.ID, bs)
	n += entityTypeMUS.Marshal(v.Type, bs[n:])
	n += ord.String.Marshal(v.Name, bs[n:])
	n += stringsMUS.Marshal(v.Aliases, bs[n:])
	n += mentionsMUS.Marshal(v.Mentions, bs[n:])
	n += stringMapMUS.Marshal(v.Attributes, bs[n:])
	n += timeMUS.Marshal(v.CreatedAt, bs[n:])
	return n + timeMUS.Marshal(v.UpdatedAt, bs[n:])
}

func (entityMUS) Unmarshal(bs []byte) (v Entity, n int, err error) {
	r := &recordReader{bs: bs}
	read(r, IDMUS, &v.ID)
	read(r, entityTypeMUS, &v.Type)
	read(r, ord.String, &v.Name)
	read(r, stringsMUS, &v.Aliases)
	read(r, mentionsMUS, &v.Mentions)
	read(r, stringMapMUS, &v.Attributes)
	read(r, timeMUS, &v.CreatedAt)
	read(r, timeMUS, &v.UpdatedAt)
	return v, r.n, r.err
}

func (entityMUS) Size(v Entity) int {
	return IDMUS.Size(v.ID) +
		entityTypeMUS.Size(v.Type) +
		ord.String.Size(v.Name) +
		stringsMUS.Size(v.Aliases) +
		mentionsMUS.Size(v.Mentions) +
		stringMapMUS.Size(v.Attributes) +
		timeMUS.Size(v.CreatedAt) +
		timeMUS.Size(v.UpdatedAt)
}

func (entityMUS) Skip(bs []byte) (int, error) {
	r := &recordReader{bs: bs}
	skip[ID](r, IDMUS)
	skip[EntityType](r, entityTypeMUS)
	skip[string](r, ord.String)
	skip[[]string](r, stringsMUS)
	skip[[]Mention](r, mentionsMUS)
	skip[map[string]string](r, stringMapMUS)
	skip[time.Time](r, timeMUS)
	skip[time.Time](r, timeMUS)
	return r.n, r.err
}

type relationshipMUS struct{}

func (relationshipMUS) Marshal(v Relationship, bs []byte) (n int) {
	n = IDMUS.Marshal(v.ID, bs)
	n += IDMUS.Marshal(v.SourceID, bs[n:])
	n += IDMUS.Marshal(v.TargetID, bs[n:])
	n += ord.String.Marshal(v.Type, bs[n:])
	n += raw.Float64.Marshal(v.Confidence, bs[n:])
	n += chunkRefsMUS.Marshal(v.Provenance, bs[n:])
	n += supportMUS.Marshal(v.Support, bs[n:])
	n += timeMUS.Marshal(v.CreatedAt, bs[n:])
	return n + timeMUS.Marshal(v.UpdatedAt, bs[n:])
}

func (relationshipMUS) Unmarshal(bs []byte) (v Relationship, n int, err error) {
	r := &recordReader{bs: bs}
	read(r, IDMUS, &v.ID)
	read(r, IDMUS, &v.SourceID)
	read(r, IDMUS, &v.TargetID)
	read(r, ord.String, &v.Type)
	read(r, raw.Float64, &v.Confidence)
	read(r, chunkRefsMUS, &v.Provenance)
	read(r, supportMUS, &v.Support)
	read(r, timeMUS, &v.CreatedAt)
	read(r, timeMUS, &v.UpdatedAt)
	return v, r.n, r.err
}

func (relationshipMUS) Size(v Relationship) int {
	return IDMUS.Size(v.ID) +
		IDMUS.Size(v.SourceID) +
		IDMUS.Size(v.TargetID) +
		ord.String.Size(v.Type) +
		raw.Float64.Size(v.Confidence) +
		chunkRefsMUS.Size(v.Provenance) +
		supportMUS.Size(v.Support) +
		timeMUS.Size(v.CreatedAt) +
		timeMUS.Size(v.UpdatedAt)
}

func (relationshipMUS) Skip(bs []byte) (int, error) {
	r := &recordReader{bs: bs}
	skip[ID](r, IDMUS)
	skip[ID](r, IDMUS)
	skip[ID](r, IDMUS)
	skip[string](r, ord.String)
	skip[float64](r, raw.Float64)
	skip[[]ChunkRef](r, chunkRefsMUS)
	skip[map[ID]float64](r, supportMUS)
	skip[time.Time](r, timeMUS)
	skip[time.Time](r, timeMUS)
	return r.n, r.err
}

type chunkFailureMUS struct{}

func (chunkFailureMUS) Marshal(v ChunkFailure, bs []byte) (n int) {
	n = IDMUS.Marshal(v.ChunkID, bs)
	n += varint.Int.Marshal(v.Index, bs[n:])
	n += ord.String.Marshal(v.Reason, bs[n:])
	return n + ord.String.Marshal(v.Message, bs[n:])
}

func (chunkFailureMUS) Unmarshal(bs []byte) (v ChunkFailure, n int, err error) {
	r := &recordReader{bs: bs}
	read(r, IDMUS, &v.ChunkID)
	read(r, varint.Int, &v.Index)
	read(r, ord.String, &v.Reason)
	read(r, ord.String, &v.Message)
	return v, r.n, r.err
}

func (chunkFailureMUS) Size(v ChunkFailure) int {
	return IDMUS.Size(v.ChunkID) +
		varint.Int.Size(v.Index) +
		ord.String.Size(v.Reason) +
		ord.String.Size(v.Message)
}

func (chunkFailureMUS) Skip(bs []byte) (int, error) {
	r := &recordReader{bs: bs}
	skip[ID](r, IDMUS)
	skip[int](r, varint.Int)
	skip[string](r, ord.String)
	skip[string](r, ord.String)
	return r.n, r.err
}

type outcomeMUS struct{}

func (outcomeMUS) Marshal(v IngestOutcome, bs []byte) (n int) {
	n = ord.String.Marshal(v.DocumentID, bs)
	n += IDMUS.Marshal(v.ContentHash, bs[n:])
	n += stateMUS.Marshal(v.State, bs[n:])
	n += ord.String.Marshal(v.Reason, bs[n:])
	n += ord.String.Marshal(v.Message, bs[n:])
	n += varint.Int.Marshal(v.Chunks, bs[n:])
	n += varint.Int.Marshal(v.Entities, bs[n:])
	n += varint.Int.Marshal(v.Relationships, bs[n:])
	n += ord.Bool.Marshal(v.PartialExtraction, bs[n:])
	n += failuresMUS.Marshal(v.ExtractionFailures, bs[n:])
	n += ord.Bool.Marshal(v.Skipped, bs[n:])
	n += timeMUS.Marshal(v.StartedAt, bs[n:])
	return n + timeMUS.Marshal(v.FinishedAt, bs[n:])
}

func (outcomeMUS) Unmarshal(bs []byte) (v IngestOutcome, n int, err error) {
	r := &recordReader{bs: bs}
	read(r, ord.String, &v.DocumentID)
	read(r, IDMUS, &v.ContentHash)
	read(r, stateMUS, &v.State)
	read(r, ord.String, &v.Reason)
	read(r, ord.String, &v.Message)
	read(r, varint.Int, &v.Chunks)
	read(r, varint.Int, &v.Entities)
	read(r, varint.Int, &v.Relationships)
	read(r, ord.Bool, &v.PartialExtraction)
	read(r, failuresMUS, &v.ExtractionFailures)
	read(r, ord.Bool, &v.Skipped)
	read(r, timeMUS, &v.StartedAt)
	read(r, timeMUS, &v.FinishedAt)
	return v, r.n, r.err
}

func (outcomeMUS) Size(v IngestOutcome) int {
	return ord.String.Size(v.DocumentID) +
		IDMUS.Size(v.ContentHash) +
		stateMUS.Size(v.State) +
		ord.String.Size(v.Reason) +
		ord.String.Size(v.Message) +
		varint.Int.Size(v.Chunks) +
		varint.Int.Size(v.Entities) +
		varint.Int.Size(v.Relationships) +
		ord.Bool.Size(v.PartialExtraction) +
		failuresMUS.Size(v.ExtractionFailures) +
		ord.Bool.Size(v.Skipped) +
		timeMUS.Size(v.StartedAt) +
		timeMUS.Size(v.FinishedAt)
}

func (outcomeMUS) Skip(bs []byte) (int, error) {
	r := &recordReader{bs: bs}
	skip[string](r, ord.String)
	skip[ID](r, IDMUS)
	skip[IngestState](r, stateMUS)
	skip[string](r, ord.String)
	skip[string](r, ord.String)
	skip[int](r, varint.Int)
	skip[int](r, varint.Int)
	skip[int](r, varint.Int)
	skip[bool](r, ord.Bool)
	skip[[]ChunkFailure](r, failuresMUS)
	skip[bool](r, ord.Bool)
	skip[time.Time](r, timeMUS)
	skip[time.Time](r, timeMUS)
	return r.n, r.err
}
