package config

import (
	"log/slog"

	"github.com/caarlos0/env/v10"
)

// Config holds runtime configuration for all binaries. Extend as needed.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Batch input/output
	InputFile      string `env:"INPUT_FILE" envDefault:"private_test.json"`
	OutputDir      string `env:"OUTPUT_DIR" envDefault:"output"`
	CheckpointFile string `env:"CHECKPOINT_FILE" envDefault:"output/results.json"`

	// Worker pool
	Workers int `env:"WORKERS" envDefault:"4"`

	// LLM gateway
	LLMBaseURL      string  `env:"LLM_BASE_URL" envDefault:"https://api.idg.vnpt.vn/data-service/v1"`
	LLMModel        string  `env:"LLM_MODEL" envDefault:"vnptai_hackathon_small"`
	CredentialsFile string  `env:"CREDENTIALS_FILE" envDefault:"api-keys.json"`
	Temperature     float64 `env:"TEMPERATURE" envDefault:"0.0"`
	Seed            int64   `env:"SEED" envDefault:"42"`
	MaxTokens       int64   `env:"MAX_TOKENS" envDefault:"2048"`
	MaxAttempts     int     `env:"MAX_ATTEMPTS" envDefault:"5"`
	RequestTimeout  int     `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"300"`
	BackoffBaseMS   int     `env:"BACKOFF_BASE_MS" envDefault:"5000"`

	// Prompting
	PromptMode    string `env:"PROMPT_MODE" envDefault:"auto"` // "direct", "cot", or "auto" (CoT when context present)
	MaxInputChars int    `env:"MAX_INPUT_CHARS" envDefault:"105000"`

	// Retrieval
	RetrieverProvider string `env:"RETRIEVER_PROVIDER" envDefault:"none"` // "postgres" (pgvector knowledge base) or "none"
	DBURL             string `env:"DB_URL"`
	TopK              int    `env:"TOP_K" envDefault:"3"`
	EmbeddingModel    string `env:"EMBEDDING_MODEL" envDefault:"vnptai_hackathon_embedding"`
	EmbeddingDim      int    `env:"EMBEDDING_DIM" envDefault:"1024"`

	// Context refinement (long embedded passages)
	RefineThreshold  int `env:"REFINE_THRESHOLD" envDefault:"1500"`
	RefineChunkWords int `env:"REFINE_CHUNK_WORDS" envDefault:"200"`
	RefineTopK       int `env:"REFINE_TOP_K" envDefault:"5"`

	// Cache
	CacheProvider string `env:"CACHE_PROVIDER" envDefault:"noop"` // "redis" or "noop"
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	CacheTTL      int    `env:"CACHE_TTL" envDefault:"3600"` // seconds

	// Queue (distributed answering)
	QueueProvider string `env:"QUEUE_PROVIDER" envDefault:"none"` // "nats" or "none"
	QueueURL      string `env:"QUEUE_URL"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}
