package ai

import (
	"testing"

	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		EmbeddingHost:   "http://localhost:11434",
		ExtractionHost:  "http://localhost:11434",
		EmbeddingModel:  "nomic-embed-text",
		ExtractionModel: "qwen2.5:7b",
		MinConfidence:   0.5,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://localhost:11434/v1", cfg.ExtractionHost)
	assert.Equal(t, "nomic-embed-text", cfg.EmbeddingModel)
	assert.Equal(t, "qwen2.5:7b", cfg.ExtractionModel)
	assert.Equal(t, 0.5, cfg.MinConfidence)
	assert.Zero(t, cfg.RequestsPerSecond)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with shared host", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080/v1"))

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://custom:8080/v1", cfg.ExtractionHost)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithExtractionHost("http://extract:9090/v1"),
			WithEmbeddingModel("text-embedding-3-small"),
			WithExtractionModel("gpt-4o-mini"),
			WithAPIKey("sk-test"),
			WithMinConfidence(0.7),
			WithRequestsPerSecond(5),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://extract:9090/v1", cfg.ExtractionHost)
		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
		assert.Equal(t, "gpt-4o-mini", cfg.ExtractionModel)
		assert.Equal(t, "sk-test", cfg.APIKey)
		assert.Equal(t, 0.7, cfg.MinConfidence)
		assert.Equal(t, 5.0, cfg.RequestsPerSecond)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		expected string
	}{
		{"already has /v1", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"missing /v1", "http://localhost:11434", "http://localhost:11434/v1"},
		{"has trailing slash", "http://localhost:11434/", "http://localhost:11434/v1"},
		{"empty host", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{EmbeddingHost: tt.host, ExtractionHost: tt.host}
			cfg.Normalize()

			assert.Equal(t, tt.expected, cfg.EmbeddingHost)
			assert.Equal(t, tt.expected, cfg.ExtractionHost)
			assert.Equal(t, "none", cfg.APIKey)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := validConfig()
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing embedding host", func(c *Config) { c.EmbeddingHost = "" }, "EmbeddingHost"},
		{"missing extraction host", func(c *Config) { c.ExtractionHost = "" }, "ExtractionHost"},
		{"missing embedding model", func(c *Config) { c.EmbeddingModel = "" }, "EmbeddingModel"},
		{"missing extraction model", func(c *Config) { c.ExtractionModel = "" }, "ExtractionModel"},
		{"confidence too high", func(c *Config) { c.MinConfidence = 1.5 }, "MinConfidence"},
		{"confidence negative", func(c *Config) { c.MinConfidence = -0.1 }, "MinConfidence"},
		{"negative rate", func(c *Config) { c.RequestsPerSecond = -1 }, "RequestsPerSecond"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrConfig)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestConfigValidate_Integration(t *testing.T) {
	require.NoError(t, NewConfig().Validate())
	require.NoError(t, DefaultConfig().Validate())
}
