package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     *Document
		wantErr error
	}{
		{
			name:    "valid document",
			doc:     &Document{ID: "a", Text: "Acme Corp acquired Zenith Inc in 2020."},
			wantErr: nil,
		},
		{
			name:    "valid document without id",
			doc:     &Document{Text: "text"},
			wantErr: nil,
		},
		{
			name:    "nil document",
			doc:     nil,
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "empty text",
			doc:     &Document{ID: "a", Text: ""},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "whitespace text",
			doc:     &Document{ID: "a", Text: " \n\t "},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "empty metadata key",
			doc:     &Document{ID: "a", Text: "x", Metadata: map[string]string{"": "v"}},
			wantErr: ErrInvalidDocument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateDocument() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDocument() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateEntity(t *testing.T) {
	tests := []struct {
		name    string
		entity  *Entity
		wantErr error
	}{
		{
			name:   "valid entity",
			entity: &Entity{Name: "Acme Corp", Type: EntityOrganization},
		},
		{
			name:   "valid entity with attributes",
			entity: &Entity{Name: "Acme Corp", Type: EntityOrganization, Attributes: map[string]string{"founded_year": "1999"}},
		},
		{
			name:    "nil entity",
			wantErr: ErrInvalidEntity,
		},
		{
			name:    "empty name",
			entity:  &Entity{Name: "  ", Type: EntityPerson},
			wantErr: ErrEmptyName,
		},
		{
			name:    "type outside closed set",
			entity:  &Entity{Name: "X", Type: EntityType("spaceship")},
			wantErr: ErrInvalidEntityType,
		},
		{
			name:    "bad attribute key",
			entity:  &Entity{Name: "X", Type: EntityOther, Attributes: map[string]string{"Founded Year": "1999"}},
			wantErr: ErrInvalidAttributes,
		},
		{
			name:    "oversized attribute value",
			entity:  &Entity{Name: "X", Type: EntityOther, Attributes: map[string]string{"bio": strings.Repeat("x", 2000)}},
			wantErr: ErrInvalidAttributes,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntity(tt.entity)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateEntity() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateEntity() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRelationship(t *testing.T) {
	tests := []struct {
		name    string
		rel     *Relationship
		wantErr error
	}{
		{
			name: "valid relationship",
			rel:  &Relationship{SourceID: 1, TargetID: 2, Type: "acquired", Confidence: 0.9},
		},
		{
			name:    "missing source",
			rel:     &Relationship{TargetID: 2, Type: "acquired", Confidence: 0.9},
			wantErr: ErrMissingEndpoint,
		},
		{
			name:    "empty type",
			rel:     &Relationship{SourceID: 1, TargetID: 2, Confidence: 0.9},
			wantErr: ErrEmptyName,
		},
		{
			name:    "confidence above one",
			rel:     &Relationship{SourceID: 1, TargetID: 2, Type: "acquired", Confidence: 1.5},
			wantErr: ErrConfidenceRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRelationship(tt.rel)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateRelationship() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRelationship() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrInvalidChunkConfig, ReasonConfig},
		{ErrDimensionMismatch, ReasonConfig},
		{fmt.Errorf("%w: timeout", ErrEmbeddingUnavailable), ReasonEmbeddingUnavailable},
		{fmt.Errorf("%w: bad json", ErrExtractionMalformed), ReasonExtractionMalformed},
		{ErrExtractionUnavailable, ReasonExtractionUnavailable},
		{ErrGraphUnavailable, ReasonGraphUnavailable},
		{ErrVectorUnavailable, ReasonVectorUnavailable},
		{errors.Join(ErrRetrievalUnavailable, ErrGraphUnavailable), ReasonRetrievalUnavailable},
		{fmt.Errorf("wrapped: %w", context.Canceled), ReasonCanceled},
		{fmt.Errorf("%w: %w", ErrInvalidEntity, ErrEmptyName), ReasonInvalidInput},
		{errors.New("boom"), ReasonInternal},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			if got := Reason(tt.err); got != tt.want {
				t.Errorf("Reason() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(ErrEmbeddingUnavailable) {
		t.Errorf("embedding unavailability should be retryable")
	}
	if !IsRetryable(fmt.Errorf("call: %w", context.DeadlineExceeded)) {
		t.Errorf("per-call timeouts should be retryable")
	}
	if IsRetryable(ErrExtractionMalformed) {
		t.Errorf("malformed responses must not be retried")
	}
	if IsRetryable(ErrInvalidChunkConfig) {
		t.Errorf("configuration errors must not be retried")
	}
}
