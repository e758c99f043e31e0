package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"agentic-rag/internal/domain"

	"github.com/sashabaranov/go-openai"
)

// OpenAIGenerator implements generation over the OpenAI chat completions
// API, including any OpenAI-compatible server via a custom base URL.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, baseURL, model string) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (*domain.LLMResponse, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   maxTokens,
		Temperature: generationTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, classifyOpenAIError("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: completion returned no choices", domain.ErrProviderUnavailable)
	}
	return &domain.LLMResponse{
		Text: strings.TrimSpace(resp.Choices[0].Message.Content),
		Done: true,
	}, nil
}

func (g *OpenAIGenerator) GenerateStream(ctx context.Context, prompt string, maxTokens int) (<-chan domain.LLMStreamChunk, <-chan error, error) {
	stream, err := g.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   maxTokens,
		Temperature: generationTemperature,
		Stream:      true,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, nil, classifyOpenAIError("chat completion stream", err)
	}

	chunks := make(chan domain.LLMStreamChunk, 8)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errCh)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errCh <- classifyOpenAIError("chat completion stream", err)
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			chunk := domain.LLMStreamChunk{
				Text: resp.Choices[0].Delta.Content,
				Done: resp.Choices[0].FinishReason != "",
			}
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
	}()

	return chunks, errCh, nil
}

func (g *OpenAIGenerator) Version() string {
	return g.model
}

// OpenAIEmbedder encodes text batches via the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

func NewOpenAIEmbedder(apiKey, baseURL, model string) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (e *OpenAIEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, classifyOpenAIError("embeddings", err)
	}
	embeddings := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		embeddings[i] = item.Embedding
	}
	return embeddings, nil
}

func (e *OpenAIEmbedder) Version() string {
	return e.model
}

// classifyOpenAIError maps API failures onto the error taxonomy so the
// retry policy can tell throttling and outages from permanent faults.
func classifyOpenAIError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s: %v", domain.ErrRateLimited, op, err)
		case apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("%w: %s: %v", domain.ErrProviderUnavailable, op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	// Transport-level failures (connection refused, DNS) are transient.
	return fmt.Errorf("%w: %s: %v", domain.ErrProviderUnavailable, op, err)
}

var (
	_ domain.LLMClient     = (*OpenAIGenerator)(nil)
	_ domain.VectorEncoder = (*OpenAIEmbedder)(nil)
)
