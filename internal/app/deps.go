// Package app wires configuration and shared components into the
// dependency bundle the binaries run on.
package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"mcq-agents/internal/cache"
	"mcq-agents/internal/config"
	"mcq-agents/internal/credentials"
	"mcq-agents/internal/embeddings"
	"mcq-agents/internal/llm"
	"mcq-agents/internal/logger"
	"mcq-agents/internal/pipeline"
	"mcq-agents/internal/prompt"
	"mcq-agents/internal/queue"
	"mcq-agents/internal/refine"
	"mcq-agents/internal/retriever"
	"mcq-agents/internal/splitter"
	"mcq-agents/internal/store"
)

// Deps bundles common runtime dependencies for the binaries. Optional
// components are nil interfaces replaced by their null implementations
// where one exists.
type Deps struct {
	Config    config.Config
	Log       *slog.Logger
	Pool      *credentials.Pool
	LLM       llm.Client
	Embedder  embeddings.Embedder
	Store     store.Store // nil unless RETRIEVER_PROVIDER=postgres
	Retriever retriever.Retriever
	Refiner   *refine.Refiner
	Cache     cache.Cache
	Queue     queue.Queue // nil unless QUEUE_PROVIDER=nats
}

// Build loads env, config, and shared components. A missing .env file is
// fine; the environment itself still applies.
func Build() (Deps, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Deps{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	pool, err := buildPool(cfg, log)
	if err != nil {
		return Deps{}, err
	}
	llmClient, err := buildLLM(cfg, log, pool)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	embedder, err := buildEmbedder(cfg, log, pool)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	st, rt, err := buildRetriever(cfg, log, embedder)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize retriever: %w", err)
	}
	c, err := buildCache(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize cache: %w", err)
	}
	q, err := buildQueue(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}

	return Deps{
		Config:    cfg,
		Log:       log,
		Pool:      pool,
		LLM:       llmClient,
		Embedder:  embedder,
		Store:     st,
		Retriever: rt,
		Refiner: refine.New(log, embedder, refine.Options{
			Threshold:  cfg.RefineThreshold,
			ChunkWords: cfg.RefineChunkWords,
			TopK:       cfg.RefineTopK,
			MaxChars:   cfg.MaxInputChars,
		}),
		Cache: c,
		Queue: q,
	}, nil
}

// LocalResolver assembles the in-process resolver from the bundle.
func (d Deps) LocalResolver() *pipeline.Local {
	return pipeline.NewLocal(d.Log,
		splitter.New(splitter.DefaultOptions()),
		d.Retriever,
		d.Refiner,
		prompt.NewBuilder(prompt.Mode(d.Config.PromptMode)),
		d.LLM,
		d.Cache,
		pipeline.LocalOptions{
			TopK:     d.Config.TopK,
			CacheTTL: time.Duration(d.Config.CacheTTL) * time.Second,
		})
}

// Resolver returns the remote resolver when a queue is configured, the
// local one otherwise.
func (d Deps) Resolver() pipeline.Resolver {
	if d.Queue != nil {
		return pipeline.NewRemote(d.Log, d.Queue)
	}
	return d.LocalResolver()
}

func buildPool(cfg config.Config, log *slog.Logger) (*credentials.Pool, error) {
	creds, err := credentials.Load(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	pool := credentials.NewPool(creds)
	if pool.Valid() == 0 {
		return nil, fmt.Errorf("no usable credential in %s", cfg.CredentialsFile)
	}
	log.Info("loaded credentials", "count", pool.Valid())
	return pool, nil
}

func buildLLM(cfg config.Config, log *slog.Logger, pool *credentials.Pool) (llm.Client, error) {
	client, err := llm.NewGatewayClient(log, cfg.LLMBaseURL, cfg.LLMModel, pool, llm.Options{
		Temperature:    cfg.Temperature,
		Seed:           cfg.Seed,
		MaxTokens:      cfg.MaxTokens,
		MaxAttempts:    cfg.MaxAttempts,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
		BackoffBase:    time.Duration(cfg.BackoffBaseMS) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	log.Info("using gateway LLM client", "model", cfg.LLMModel, "base_url", cfg.LLMBaseURL)
	return client, nil
}

func buildEmbedder(cfg config.Config, log *slog.Logger, pool *credentials.Pool) (embeddings.Embedder, error) {
	cred, err := pool.Acquire()
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.NewGatewayEmbedder(cfg.LLMBaseURL, cfg.EmbeddingModel, cred)
	if err != nil {
		return nil, err
	}
	log.Info("using gateway embedder", "model", cfg.EmbeddingModel)
	return embedder, nil
}

func buildRetriever(cfg config.Config, log *slog.Logger, embedder embeddings.Embedder) (store.Store, retriever.Retriever, error) {
	switch cfg.RetrieverProvider {
	case "postgres":
		if cfg.DBURL == "" {
			return nil, nil, fmt.Errorf("DB_URL is required when RETRIEVER_PROVIDER=postgres")
		}
		st, err := store.NewPostgres(cfg.DBURL, cfg.EmbeddingDim)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		log.Info("using Postgres knowledge base")
		return st, retriever.NewStoreRetriever(st, embedder), nil
	case "none", "":
		return nil, retriever.Noop{}, nil
	default:
		return nil, nil, fmt.Errorf("invalid RETRIEVER_PROVIDER: %s (valid options: postgres, none)", cfg.RetrieverProvider)
	}
}

func buildCache(cfg config.Config, log *slog.Logger) (cache.Cache, error) {
	switch cfg.CacheProvider {
	case "redis":
		c, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("using Redis completion cache", "addr", cfg.RedisAddr)
		return c, nil
	case "noop", "":
		return cache.NewNoOpCache(), nil
	default:
		return nil, fmt.Errorf("invalid CACHE_PROVIDER: %s (valid options: redis, noop)", cfg.CacheProvider)
	}
}

func buildQueue(cfg config.Config, log *slog.Logger) (queue.Queue, error) {
	switch cfg.QueueProvider {
	case "nats":
		if cfg.QueueURL == "" {
			return nil, fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.QueueURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("using NATS answering queue")
		return queue.NewNATS(log, nc), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("invalid QUEUE_PROVIDER: %s (valid options: nats, none)", cfg.QueueProvider)
	}
}
