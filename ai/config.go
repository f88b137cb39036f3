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

package ai

import (
	"fmt"
	"strings"

	"github.com/santhosh0997/Multimodal-Rag-System/core"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for a local OpenAI-compatible server
	EmbeddingHost string

	// ExtractionHost is the base URL for the entity extraction service API.
	ExtractionHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "nomic-embed-text", "text-embedding-3-small"
	EmbeddingModel string

	// ExtractionModel is the chat model used for entity and relationship extraction.
	// Example: "qwen2.5:7b", "gpt-4o-mini"
	ExtractionModel string

	// APIKey is sent as the bearer token. Local servers accept "none".
	APIKey string

	// MinConfidence drops extracted relationships scored below it.
	// Default: 0.5
	MinConfidence float64

	// RequestsPerSecond caps provider calls when positive. Zero disables limiting.
	RequestsPerSecond float64
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithExtractionHost sets the extraction service host URL.
func WithExtractionHost(host string) ConfigOption {
	return func(c *Config) {
		c.ExtractionHost = host
	}
}

// WithHost sets both embedding and extraction hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.ExtractionHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithExtractionModel sets the extraction model identifier.
func WithExtractionModel(model string) ConfigOption {
	return func(c *Config) {
		c.ExtractionModel = model
	}
}

// WithAPIKey sets the provider API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithMinConfidence sets the relationship confidence floor.
func WithMinConfidence(min float64) ConfigOption {
	return func(c *Config) {
		c.MinConfidence = min
	}
}

// WithRequestsPerSecond enables client-side rate limiting.
func WithRequestsPerSecond(rps float64) ConfigOption {
	return func(c *Config) {
		c.RequestsPerSecond = rps
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:   defaultHost,
		ExtractionHost:  defaultHost,
		EmbeddingModel:  "nomic-embed-text",
		ExtractionModel: "qwen2.5:7b",
		APIKey:          "none",
		MinConfidence:   0.5,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithEmbeddingHost("http://localhost:11434/v1"),
//	    WithExtractionHost("http://localhost:9100/v1"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures hosts carry the /v1 suffix expected by OpenAI-compatible APIs.
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.ExtractionHost = normalizeHost(c.ExtractionHost)
	if c.APIKey == "" {
		c.APIKey = "none"
	}
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration first. Errors wrap core.ErrConfig.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return fmt.Errorf("%w: ai config: EmbeddingHost is required", core.ErrConfig)
	}
	if c.ExtractionHost == "" {
		return fmt.Errorf("%w: ai config: ExtractionHost is required", core.ErrConfig)
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("%w: ai config: EmbeddingModel is required", core.ErrConfig)
	}
	if c.ExtractionModel == "" {
		return fmt.Errorf("%w: ai config: ExtractionModel is required", core.ErrConfig)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("%w: ai config: MinConfidence must be between 0 and 1", core.ErrConfig)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: ai config: RequestsPerSecond must not be negative", core.ErrConfig)
	}
	return nil
}
