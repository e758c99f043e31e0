package di

import (
	"context"
	"fmt"
	"log/slog"

	"agentic-rag/internal/adapter/llm"
	"agentic-rag/internal/adapter/memindex"
	"agentic-rag/internal/adapter/repository"
	"agentic-rag/internal/domain"
	"agentic-rag/internal/infra"
	"agentic-rag/internal/infra/config"
	"agentic-rag/internal/infra/httpclient"
	"agentic-rag/internal/usecase"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Components holds all wired application dependencies.
type Components struct {
	Pipeline *usecase.Pipeline
	Ingestor *usecase.Ingestor

	// ReadyCheck probes the storage backend, nil for the memory backend.
	ReadyCheck func(ctx context.Context) error

	pool *pgxpool.Pool
}

// Close releases held resources.
func (c *Components) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// New wires the application from config. The index backend, LLM provider,
// and optional reranker are all selected here.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Components, error) {
	components := &Components{}

	// Storage backend.
	var index domain.Index
	var writer domain.ChunkWriter
	switch cfg.IndexBackend {
	case "postgres":
		pool, err := infra.NewPostgresPool(ctx, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		repo := repository.NewChunkRepository(pool)
		index, writer = repo, repo
		components.pool = pool
		components.ReadyCheck = pool.Ping
	case "memory":
		mem, err := memindex.New()
		if err != nil {
			return nil, fmt.Errorf("creating memory index: %w", err)
		}
		index, writer = mem, mem
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.IndexBackend)
	}

	// Shared HTTP clients with connection pooling.
	modelHTTP := httpclient.NewPooledClient(cfg.RequestTimeout)

	// LLM provider.
	var generator domain.LLMClient
	var encoder domain.VectorEncoder
	switch cfg.LLMProvider {
	case "ollama":
		generator = llm.NewOllamaGenerator(cfg.OllamaURL, cfg.GenerationModel, modelHTTP)
		encoder = llm.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbeddingModel, modelHTTP, log)
	case "openai":
		generator = llm.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.GenerationModel)
		encoder = llm.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
	if cfg.LLMRequestsPerSecond > 0 {
		generator = llm.NewRateLimitedGenerator(generator, cfg.LLMRequestsPerSecond, cfg.LLMBurst)
		encoder = llm.NewRateLimitedEncoder(encoder, cfg.LLMRequestsPerSecond, cfg.LLMBurst)
		log.Info("llm_rate_limit_enabled",
			slog.Float64("rps", cfg.LLMRequestsPerSecond),
			slog.Int("burst", cfg.LLMBurst))
	}

	// The judge defaults to the generation model unless a dedicated one is
	// configured.
	judge := generator
	if cfg.JudgeModel != "" && cfg.JudgeModel != cfg.GenerationModel {
		switch cfg.LLMProvider {
		case "ollama":
			judge = llm.NewOllamaGenerator(cfg.OllamaURL, cfg.JudgeModel, modelHTTP)
		case "openai":
			judge = llm.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.JudgeModel)
		}
	}

	// Optional cross-encoder reranker.
	var reranker domain.Reranker
	if cfg.RerankerURL != "" {
		reranker = llm.NewRerankerClient(cfg.RerankerURL, cfg.RerankerModel, httpclient.NewPooledClient(cfg.StageTimeout), log)
		log.Info("reranker_enabled",
			slog.String("url", cfg.RerankerURL),
			slog.String("model", cfg.RerankerModel))
	}

	components.Pipeline = usecase.New(encoder, index, reranker, generator, judge, usecase.Config{
		TopK:                cfg.TopK,
		RerankK:             cfg.RerankK,
		TokenBudget:         cfg.TokenBudget,
		SearchLimit:         cfg.SearchLimit,
		RRFK:                cfg.RRFK,
		SnippetMaxRunes:     cfg.SnippetMaxRunes,
		SynthesisMaxTokens:  cfg.SynthesisMaxTokens,
		PerStageTimeout:     cfg.StageTimeout,
		RequestTimeout:      cfg.RequestTimeout,
		MaxRetriesRetrieval: cfg.MaxRetriesRetrieval,
		MaxRetriesSynthesis: cfg.MaxRetriesSynthesis,
		SuppressUngrounded:  cfg.SuppressUngrounded,
		CacheSize:           cfg.CacheSize,
		CacheTTL:            cfg.CacheTTL,
	}, log)

	components.Ingestor = usecase.NewIngestor(domain.NewChunker(), encoder, writer, log)

	return components, nil
}
