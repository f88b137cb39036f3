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

package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh0997/Multimodal-Rag-System/ai"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Extractor implements ai.Extractor using OpenAI-compatible chat APIs.
type Extractor struct {
	client        llms.Model
	minConfidence float64
	logger        *slog.Logger
}

// response is the wrapper structure for the model's JSON output.
type response struct {
	Entities      []entity                   `json:"entities"`
	Relationships []ai.ExtractedRelationship `json:"relationships"`
}

// entity accepts attribute values of any JSON type; models often emit
// numbers where a string was asked for.
type entity struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

// attributes keeps scalar values as strings. Objects, arrays and nulls are dropped.
func (e entity) attributes() map[string]string {
	var attrs map[string]string
	for k, v := range e.Attributes {
		var s string
		switch x := v.(type) {
		case string:
			s = strings.TrimSpace(x)
		case float64, bool:
			s = fmt.Sprint(x)
		default:
			continue
		}
		if s == "" {
			continue
		}
		if attrs == nil {
			attrs = make(map[string]string)
		}
		attrs[k] = s
	}
	return attrs
}

// newExtractor is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newExtractor(config *ai.Config) (*Extractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ExtractionHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.ExtractionModel),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfig, err)
	}

	return &Extractor{
		client:        client,
		minConfidence: config.MinConfidence,
		logger:        slog.Default().With("component", "openai-extractor"),
	}, nil
}

// NewExtractor creates a new extractor using the provided configuration.
//
// Returns ai.Extractor interface to enforce abstraction.
func NewExtractor(config *ai.Config) (ai.Extractor, error) {
	return newExtractor(config)
}

// Extract asks the model for entities (and, in ingestion mode, relationships).
// Transport failures wrap core.ErrExtractionUnavailable. Output that still
// fails to parse after fence stripping and repair wraps
// core.ErrExtractionMalformed; it is not re-requested.
func (e *Extractor) Extract(ctx context.Context, text string, mode ai.Mode) (*ai.Extraction, error) {
	text = scrubString(text)
	if text == "" {
		return &ai.Extraction{}, nil
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(buildSystemPrompt(mode))},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(text)},
		},
	}

	resp, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Error("failed to generate content", "mode", mode, "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrExtractionUnavailable, err)
	}

	if len(resp.Choices) < 1 {
		e.logger.Debug("no choices returned from model", "mode", mode)
		return &ai.Extraction{}, nil
	}

	extraction, err := parseExtraction(resp.Choices[0].Content, mode, e.minConfidence)
	if err != nil {
		e.logger.Warn("error parsing extraction response", "mode", mode, "err", err)
		return nil, err
	}

	if dropped := extraction.Sanitize(); len(dropped) > 0 {
		e.logger.Debug("dropped relationships with unknown endpoints", "count", len(dropped))
	}

	e.logger.Debug("extracted",
		"mode", mode,
		"entities", len(extraction.Entities),
		"relationships", len(extraction.Relationships))
	return extraction, nil
}

// parseExtraction turns raw model output into an Extraction.
// Query mode ignores any relationships the model volunteers.
func parseExtraction(raw string, mode ai.Mode, minConfidence float64) (*ai.Extraction, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	text = repairJSON(text)

	var result response
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrExtractionMalformed, err)
	}

	extraction := &ai.Extraction{Entities: make([]ai.ExtractedEntity, 0, len(result.Entities))}
	for _, e := range result.Entities {
		extracted := ai.ExtractedEntity{Name: e.Name, Type: e.Type}
		if mode == ai.ModeIngestion {
			extracted.Attributes = e.attributes()
		}
		extraction.Entities = append(extraction.Entities, extracted)
	}
	if mode == ai.ModeQuery {
		return extraction, nil
	}

	for _, rel := range result.Relationships {
		if rel.Confidence < minConfidence {
			continue
		}
		extraction.Relationships = append(extraction.Relationships, rel)
	}
	return extraction, nil
}
