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

// Package chunking splits normalized document text into overlapping passages.
//
// Chunks are fixed-size windows measured in characters (runes). Consecutive
// chunks share exactly Overlap characters, the last chunk ends at the end of
// the text, and boundaries depend only on the text and the configuration, so
// re-chunking an unchanged document yields identical chunk IDs.
package chunking

import (
	"fmt"
	"iter"
	"strconv"

	"github.com/santhosh0997/Multimodal-Rag-System/core"
)

const (
	// DefaultMaxChunkSize is the default window size in characters.
	DefaultMaxChunkSize = 1000

	// DefaultOverlap is the default number of characters shared by neighbours.
	DefaultOverlap = 100
)

// Metadata keys stamped on every chunk.
const (
	MetaSourceFile = "source_file"
	MetaChunkIndex = "chunk_index"
)

// Config holds chunking parameters.
type Config struct {
	MaxChunkSize int
	Overlap      int
}

// DefaultConfig returns the default chunking configuration.
func DefaultConfig() Config {
	return Config{
		MaxChunkSize: DefaultMaxChunkSize,
		Overlap:      DefaultOverlap,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxChunkSize < 1 {
		return fmt.Errorf("%w: max chunk size must be positive, got %d", core.ErrInvalidChunkConfig, c.MaxChunkSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", core.ErrInvalidChunkConfig, c.Overlap)
	}
	if c.Overlap >= c.MaxChunkSize {
		return fmt.Errorf("%w: overlap %d must be smaller than max chunk size %d",
			core.ErrInvalidChunkConfig, c.Overlap, c.MaxChunkSize)
	}
	return nil
}

// Chunker produces overlapping chunks for documents.
// A Chunker is immutable and safe for concurrent use.
type Chunker struct {
	config Config
}

// New creates a Chunker, failing with core.ErrInvalidChunkConfig on a bad config.
func New(config Config) (*Chunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{config: config}, nil
}

// Config returns the chunker configuration.
func (c *Chunker) Config() Config {
	return c.config
}

// Chunks returns a lazy sequence of the document's chunks.
// The sequence is restartable: each range walks the text again from the start.
func (c *Chunker) Chunks(doc *core.Document) iter.Seq[core.Chunk] {
	return func(yield func(core.Chunk) bool) {
		runes := []rune(doc.Text)
		n := len(runes)
		if n == 0 {
			return
		}
		hash := doc.ContentHash()

		stride := c.config.MaxChunkSize - c.config.Overlap
		index := 0
		for start := 0; ; start += stride {
			end := start + c.config.MaxChunkSize
			if end > n {
				end = n
			}

			chunk := core.Chunk{
				ID:         core.ChunkID(doc.ID, hash, start, end),
				DocumentID: doc.ID,
				Index:      index,
				Start:      start,
				End:        end,
				Text:       string(runes[start:end]),
				Metadata:   chunkMetadata(doc, index),
			}
			if !yield(chunk) {
				return
			}
			if end == n {
				return
			}
			index++
		}
	}
}

// Split collects every chunk of the document.
func (c *Chunker) Split(doc *core.Document) []core.Chunk {
	var chunks []core.Chunk
	for chunk := range c.Chunks(doc) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func chunkMetadata(doc *core.Document, index int) map[string]string {
	meta := make(map[string]string, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	meta[MetaSourceFile] = doc.Origin
	meta[MetaChunkIndex] = strconv.Itoa(index)
	return meta
}
