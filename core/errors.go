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
	"context"
	"errors"
	"fmt"
)

// Error taxonomy
var (
	// ErrConfig indicates caller misconfiguration. It is never retried.
	ErrConfig = errors.New("configuration error")

	// ErrProviderUnavailable indicates a transport, quota or timeout failure
	// of an external collaborator. It is retryable.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrMalformedResponse indicates a provider returned an unusable structure.
	// The affected unit is skipped, not retried.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrRetrievalUnavailable indicates every retrieval backend failed for one call.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
)

// Specific failures, each wrapping one taxonomy class.
var (
	// ErrInvalidChunkConfig indicates overlap >= max chunk size or a non-positive size.
	ErrInvalidChunkConfig = fmt.Errorf("%w: invalid chunk configuration", ErrConfig)

	// ErrDimensionMismatch indicates an embedding does not match the stored dimensionality.
	ErrDimensionMismatch = fmt.Errorf("%w: embedding dimension mismatch", ErrConfig)

	// ErrEmbeddingUnavailable indicates the embedding provider failed.
	ErrEmbeddingUnavailable = fmt.Errorf("%w: embedding", ErrProviderUnavailable)

	// ErrExtractionUnavailable indicates the extraction provider failed.
	ErrExtractionUnavailable = fmt.Errorf("%w: extraction", ErrProviderUnavailable)

	// ErrGraphUnavailable indicates the knowledge graph store failed.
	ErrGraphUnavailable = fmt.Errorf("%w: graph store", ErrProviderUnavailable)

	// ErrVectorUnavailable indicates the vector store failed.
	ErrVectorUnavailable = fmt.Errorf("%w: vector store", ErrProviderUnavailable)

	// ErrExtractionMalformed indicates the extraction model returned unparsable output.
	ErrExtractionMalformed = fmt.Errorf("%w: extraction", ErrMalformedResponse)
)

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidEntity indicates an Entity failed validation.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInvalidRelationship indicates a Relationship failed validation.
	ErrInvalidRelationship = errors.New("invalid relationship")

	// ErrInvalidAttributes indicates an attribute map failed validation.
	ErrInvalidAttributes = errors.New("invalid attributes")

	// ErrInvalidQuery indicates a retrieval query failed validation.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidTransition indicates an illegal ingest state change.
	ErrInvalidTransition = errors.New("invalid ingest state transition")

	// ErrEmptyContent indicates the document text is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyName indicates an entity name is empty.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrInvalidEntityType indicates a type outside the closed set.
	ErrInvalidEntityType = errors.New("invalid entity type")

	// ErrMissingEndpoint indicates a relationship without a source or target.
	ErrMissingEndpoint = errors.New("relationship endpoint missing")

	// ErrConfidenceRange indicates a confidence outside [0, 1].
	ErrConfidenceRange = errors.New("confidence must be between 0 and 1")
)

// Machine-readable reason codes.
const (
	ReasonConfig                = "config_error"
	ReasonInvalidInput          = "invalid_input"
	ReasonEmbeddingUnavailable  = "embedding_unavailable"
	ReasonExtractionUnavailable = "extraction_unavailable"
	ReasonExtractionMalformed   = "extraction_malformed"
	ReasonGraphUnavailable      = "graph_unavailable"
	ReasonVectorUnavailable     = "vector_unavailable"
	ReasonRetrievalUnavailable  = "retrieval_unavailable"
	ReasonCanceled              = "canceled"
	ReasonInternal              = "internal"
)

// Reason maps err onto a machine-readable reason code.
// The most specific match wins.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, ErrRetrievalUnavailable):
		return ReasonRetrievalUnavailable
	case errors.Is(err, ErrEmbeddingUnavailable):
		return ReasonEmbeddingUnavailable
	case errors.Is(err, ErrExtractionUnavailable):
		return ReasonExtractionUnavailable
	case errors.Is(err, ErrExtractionMalformed):
		return ReasonExtractionMalformed
	case errors.Is(err, ErrGraphUnavailable):
		return ReasonGraphUnavailable
	case errors.Is(err, ErrVectorUnavailable):
		return ReasonVectorUnavailable
	case errors.Is(err, ErrConfig):
		return ReasonConfig
	case errors.Is(err, ErrInvalidDocument),
		errors.Is(err, ErrInvalidEntity),
		errors.Is(err, ErrInvalidRelationship),
		errors.Is(err, ErrInvalidAttributes),
		errors.Is(err, ErrInvalidQuery):
		return ReasonInvalidInput
	default:
		return ReasonInternal
	}
}

// IsRetryable reports whether err belongs to the retryable class.
// Per-attempt deadlines count as provider failures.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) || errors.Is(err, context.DeadlineExceeded)
}
