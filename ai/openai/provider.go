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
	"fmt"
	"log/slog"

	"github.com/santhosh0997/Multimodal-Rag-System/ai"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
)

// Provider implements ai.AIProvider on an OpenAI-compatible endpoint pair.
// Embedding and extraction may point at different hosts.
type Provider struct {
	embedder  *Embedder
	extractor *Extractor
	logger    *slog.Logger
}

// NewProvider validates config and builds both services from it. When
// config.RequestsPerSecond is positive the services share a rate limiter.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: nil AI config", core.ErrConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, fmt.Errorf("embedding service: %w", err)
	}
	extractor, err := newExtractor(config)
	if err != nil {
		return nil, fmt.Errorf("extraction service: %w", err)
	}

	logger := slog.Default().With("component", "openai-provider")
	logger.Debug("provider ready",
		"embedding_host", config.EmbeddingHost,
		"embedding_model", config.EmbeddingModel,
		"extraction_host", config.ExtractionHost,
		"extraction_model", config.ExtractionModel,
		"rps", config.RequestsPerSecond)

	p := &Provider{embedder: embedder, extractor: extractor, logger: logger}
	return ai.NewRateLimitedProvider(p, config.RequestsPerSecond), nil
}

func (p *Provider) Embedder() ai.Embedder   { return p.embedder }
func (p *Provider) Extractor() ai.Extractor { return p.extractor }

// Close is a no-op; the langchaingo clients hold no connections of their own.
func (p *Provider) Close() error {
	p.logger.Debug("closing provider")
	return nil
}
