package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	ragcore "github.com/santhosh0997/Multimodal-Rag-System"
	"github.com/santhosh0997/Multimodal-Rag-System/ai/mock"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "./ragcore-data", cfg.DataDir)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 100, cfg.ChunkOverlap)
	assert.Equal(t, 0.92, cfg.ResolveThreshold)
	assert.Equal(t, retrieval.DefaultWeights(), cfg.Weights())
	assert.Equal(t, retrieval.Budget{}, cfg.Budget())
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)
	assert.False(t, cfg.HasPostgres())
}

func TestLoad_WithEnvVars(t *testing.T) {
	t.Setenv("RAG_DATA_DIR", "/var/lib/rag")
	t.Setenv("RAG_IN_MEMORY", "true")
	t.Setenv("RAG_EMBEDDING_MODEL", "text-embedding-3-small")
	t.Setenv("RAG_CHUNK_SIZE", "500")
	t.Setenv("RAG_CHUNK_OVERLAP", "50")
	t.Setenv("RAG_CALL_TIMEOUT", "5s")
	t.Setenv("RAG_VECTOR_WEIGHT", "0.5")
	t.Setenv("RAG_GRAPH_WEIGHT", "0.5")
	t.Setenv("RAG_MAX_EVIDENCE", "8")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/rag", cfg.DataDir)
	assert.True(t, cfg.InMemory)
	assert.Equal(t, "text-embedding-3-small", cfg.AIConfig().EmbeddingModel)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 5*time.Second, cfg.RetryPolicy().Timeout)
	assert.Equal(t, retrieval.Weights{Vector: 0.5, Graph: 0.5}, cfg.Weights())
	assert.Equal(t, 8, cfg.Budget().MaxEvidence)
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("RAG_TOP_K=25\nRAG_MAX_HOPS=3\n"), 0644))
	t.Cleanup(func() {
		os.Unsetenv("RAG_TOP_K")
		os.Unsetenv("RAG_MAX_HOPS")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.TopK)
	assert.Equal(t, 3, cfg.MaxHops)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"overlap not below size", "RAG_CHUNK_OVERLAP", "1000"},
		{"negative weight", "RAG_GRAPH_WEIGHT", "-1"},
		{"negative budget", "RAG_MAX_TOKENS", "-5"},
		{"threshold above one", "RAG_RESOLVE_THRESHOLD", "1.5"},
		{"zero hops", "RAG_MAX_HOPS", "0"},
		{"zero attempts", "RAG_RETRY_ATTEMPTS", "0"},
		{"confidence above one", "RAG_MIN_CONFIDENCE", "2"},
		{"not a number", "RAG_TOP_K", "many"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrConfig)
		})
	}
}

func TestEngineOptions(t *testing.T) {
	t.Setenv("RAG_IN_MEMORY", "true")
	t.Setenv("RAG_POOL_SIZE", "2")
	t.Setenv("RAG_MAX_EVIDENCE", "4")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	opts, err := cfg.EngineOptions(context.Background())
	require.NoError(t, err)

	engine, err := ragcore.Open(cfg.DataDir, append(opts, ragcore.WithProvider(mock.NewMockProvider()))...)
	require.NoError(t, err)
	defer engine.Close()

	outcome, err := engine.Ingest(context.Background(), &core.Document{ID: "d", Text: "Acme Corp acquired Zenith Inc."})
	require.NoError(t, err)
	assert.Equal(t, core.StateDone, outcome.State)

	_, err = os.Stat(cfg.DataDir)
	assert.True(t, os.IsNotExist(err), "in-memory engine must not create the data dir")
}

func TestEngineOptions_UnknownEncoding(t *testing.T) {
	t.Setenv("RAG_TOKEN_ENCODING", "no_such_encoding")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	_, err = cfg.EngineOptions(context.Background())
	assert.ErrorIs(t, err, core.ErrConfig)
}
