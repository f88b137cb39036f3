// Package config loads binary configuration from the environment and an
// optional .env file.
package config

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	ragcore "github.com/santhosh0997/Multimodal-Rag-System"
	"github.com/santhosh0997/Multimodal-Rag-System/ai"
	"github.com/santhosh0997/Multimodal-Rag-System/chunking"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/ingestion"
	"github.com/santhosh0997/Multimodal-Rag-System/retrieval"
	"github.com/santhosh0997/Multimodal-Rag-System/retry"
	"github.com/santhosh0997/Multimodal-Rag-System/storage/postgres"
)

// Prefix is prepended to every variable name, e.g. RAG_DATA_DIR.
const Prefix = "RAG"

type Config struct {
	DataDir    string `envconfig:"DATA_DIR" default:"./ragcore-data"`
	InMemory   bool   `envconfig:"IN_MEMORY" default:"false"`
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`

	EmbeddingHost     string  `envconfig:"EMBEDDING_HOST" default:"http://localhost:11434/v1"`
	ExtractionHost    string  `envconfig:"EXTRACTION_HOST" default:"http://localhost:11434/v1"`
	EmbeddingModel    string  `envconfig:"EMBEDDING_MODEL" default:"nomic-embed-text"`
	ExtractionModel   string  `envconfig:"EXTRACTION_MODEL" default:"qwen2.5:7b"`
	APIKey            string  `envconfig:"API_KEY" default:"none"`
	MinConfidence     float64 `envconfig:"MIN_CONFIDENCE" default:"0.5"`
	RequestsPerSecond float64 `envconfig:"REQUESTS_PER_SECOND" default:"0"`

	// Postgres replaces the Badger vector store when set
	PostgresDSN   string `envconfig:"POSTGRES_DSN"`
	PostgresTable string `envconfig:"POSTGRES_TABLE" default:"rag_chunks"`

	ChunkSize           int `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap        int `envconfig:"CHUNK_OVERLAP" default:"100"`
	PoolSize            int `envconfig:"POOL_SIZE" default:"0"`
	DocumentConcurrency int `envconfig:"DOCUMENT_CONCURRENCY" default:"2"`
	EmbedBatchSize      int `envconfig:"EMBED_BATCH_SIZE" default:"32"`

	RetryAttempts  int           `envconfig:"RETRY_ATTEMPTS" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"RETRY_BASE_DELAY" default:"500ms"`
	RetryMaxDelay  time.Duration `envconfig:"RETRY_MAX_DELAY" default:"10s"`
	CallTimeout    time.Duration `envconfig:"CALL_TIMEOUT" default:"30s"`

	ResolveThreshold float64 `envconfig:"RESOLVE_THRESHOLD" default:"0.92"`
	MaxHops          int     `envconfig:"MAX_HOPS" default:"2"`
	TopK             int     `envconfig:"TOP_K" default:"10"`
	VectorWeight     float64 `envconfig:"VECTOR_WEIGHT" default:"0.6"`
	GraphWeight      float64 `envconfig:"GRAPH_WEIGHT" default:"0.4"`
	MaxEvidence      int     `envconfig:"MAX_EVIDENCE" default:"0"`
	MaxTokens        int     `envconfig:"MAX_TOKENS" default:"0"`

	// TokenEncoding selects a tiktoken encoding for token budgets.
	// Empty uses the word-based estimate.
	TokenEncoding string `envconfig:"TOKEN_ENCODING"`

	MetricsNamespace string `envconfig:"METRICS_NAMESPACE" default:"ragcore"`
}

// Load reads the given .env files (default ".env"), then the environment.
// Missing .env files are ignored.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to process config: %w", core.ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks the values the library options would otherwise reject late.
func (c *Config) Validate() error {
	if _, err := chunking.New(c.chunkConfig()); err != nil {
		return err
	}
	if err := c.RetryPolicy().Validate(); err != nil {
		return err
	}
	if err := c.Weights().Validate(); err != nil {
		return err
	}
	if err := c.Budget().Validate(); err != nil {
		return err
	}
	if c.ResolveThreshold <= 0 || c.ResolveThreshold > 1 {
		return fmt.Errorf("%w: RESOLVE_THRESHOLD must be in (0, 1]", core.ErrConfig)
	}
	if c.MaxHops < 1 || c.TopK < 1 {
		return fmt.Errorf("%w: MAX_HOPS and TOP_K must be positive", core.ErrConfig)
	}
	if c.EmbedBatchSize < 1 {
		return fmt.Errorf("%w: EMBED_BATCH_SIZE must be positive", core.ErrConfig)
	}
	return c.AIConfig().Validate()
}

func (c *Config) HasPostgres() bool {
	return c.PostgresDSN != ""
}

// AIConfig converts the provider settings.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.EmbeddingHost),
		ai.WithExtractionHost(c.ExtractionHost),
		ai.WithEmbeddingModel(c.EmbeddingModel),
		ai.WithExtractionModel(c.ExtractionModel),
		ai.WithAPIKey(c.APIKey),
		ai.WithMinConfidence(c.MinConfidence),
		ai.WithRequestsPerSecond(c.RequestsPerSecond),
	)
}

func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.RetryAttempts,
		BaseDelay:   c.RetryBaseDelay,
		MaxDelay:    c.RetryMaxDelay,
		Timeout:     c.CallTimeout,
	}
}

func (c *Config) Weights() retrieval.Weights {
	return retrieval.Weights{Vector: c.VectorWeight, Graph: c.GraphWeight}
}

func (c *Config) Budget() retrieval.Budget {
	return retrieval.Budget{MaxEvidence: c.MaxEvidence, MaxTokens: c.MaxTokens}
}

func (c *Config) chunkConfig() chunking.Config {
	return chunking.Config{MaxChunkSize: c.ChunkSize, Overlap: c.ChunkOverlap}
}

// EngineOptions converts the configuration into engine options. When a
// Postgres DSN is set it connects and prepares the schema; the returned
// options hand the store to the engine, which closes it.
func (c *Config) EngineOptions(ctx context.Context) ([]ragcore.Option, error) {
	chunker, err := chunking.New(c.chunkConfig())
	if err != nil {
		return nil, err
	}
	policy := c.RetryPolicy()

	ingestionOpts := []ingestion.Option{
		ingestion.WithChunker(chunker),
		ingestion.WithRetryPolicy(policy),
		ingestion.WithEmbedBatchSize(c.EmbedBatchSize),
		ingestion.WithDocumentConcurrency(c.DocumentConcurrency),
	}
	if c.PoolSize > 0 {
		ingestionOpts = append(ingestionOpts, ingestion.WithPoolSize(c.PoolSize))
	}

	rankerOpts := []retrieval.RankerOption{retrieval.WithWeights(c.Weights())}
	if c.TokenEncoding != "" {
		counter, err := retrieval.NewTiktokenCounter(c.TokenEncoding)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrConfig, err)
		}
		rankerOpts = append(rankerOpts, retrieval.WithTokenCounter(counter))
	}

	opts := []ragcore.Option{
		ragcore.WithAIConfig(c.AIConfig()),
		ragcore.WithBudget(c.Budget()),
		ragcore.WithResolveThreshold(c.ResolveThreshold),
		ragcore.WithIngestionOptions(ingestionOpts...),
		ragcore.WithPlannerOptions(
			retrieval.WithMaxHops(c.MaxHops),
			retrieval.WithTopK(c.TopK),
			retrieval.WithRetryPolicy(policy),
		),
		ragcore.WithRankerOptions(rankerOpts...),
	}
	if c.InMemory {
		opts = append(opts, ragcore.InMemory())
	}

	if c.HasPostgres() {
		vectors, err := postgres.Open(ctx, c.PostgresDSN, postgres.WithTable(c.PostgresTable))
		if err != nil {
			return nil, err
		}
		opts = append(opts, ragcore.WithVectorStore(vectors))
	}
	return opts, nil
}
