package llm

import (
	"context"

	"agentic-rag/internal/domain"

	"golang.org/x/time/rate"
)

// RateLimitedGenerator enforces a client-side request rate on a generator
// so a shared model server is not saturated by bursts.
type RateLimitedGenerator struct {
	inner   domain.LLMClient
	limiter *rate.Limiter
}

func NewRateLimitedGenerator(inner domain.LLMClient, rps float64, burst int) *RateLimitedGenerator {
	return &RateLimitedGenerator{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (g *RateLimitedGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (*domain.LLMResponse, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return g.inner.Generate(ctx, prompt, maxTokens)
}

func (g *RateLimitedGenerator) GenerateStream(ctx context.Context, prompt string, maxTokens int) (<-chan domain.LLMStreamChunk, <-chan error, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	return g.inner.GenerateStream(ctx, prompt, maxTokens)
}

func (g *RateLimitedGenerator) Version() string {
	return g.inner.Version()
}

// RateLimitedEncoder is the embedding-side counterpart. One token is taken
// per batch, not per text.
type RateLimitedEncoder struct {
	inner   domain.VectorEncoder
	limiter *rate.Limiter
}

func NewRateLimitedEncoder(inner domain.VectorEncoder, rps float64, burst int) *RateLimitedEncoder {
	return &RateLimitedEncoder{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (e *RateLimitedEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.inner.Encode(ctx, texts)
}

func (e *RateLimitedEncoder) Version() string {
	return e.inner.Version()
}

var (
	_ domain.LLMClient     = (*RateLimitedGenerator)(nil)
	_ domain.VectorEncoder = (*RateLimitedEncoder)(nil)
)
