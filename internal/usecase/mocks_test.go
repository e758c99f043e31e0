package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"agentic-rag/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeLLM is a function-backed LLM double. Generate and stream behavior are
// injected per test.
type fakeLLM struct {
	mu          sync.Mutex
	generateFn  func(ctx context.Context, prompt string, maxTokens int) (*domain.LLMResponse, error)
	streamFn    func(ctx context.Context, prompt string, maxTokens int) (<-chan domain.LLMStreamChunk, <-chan error, error)
	prompts     []string
	generateHit int
	streamHit   int
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, maxTokens int) (*domain.LLMResponse, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.generateHit++
	f.mu.Unlock()
	if f.generateFn == nil {
		return nil, errors.New("generate not configured")
	}
	return f.generateFn(ctx, prompt, maxTokens)
}

func (f *fakeLLM) GenerateStream(ctx context.Context, prompt string, maxTokens int) (<-chan domain.LLMStreamChunk, <-chan error, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.streamHit++
	f.mu.Unlock()
	if f.streamFn == nil {
		return nil, nil, errors.New("streaming not configured")
	}
	return f.streamFn(ctx, prompt, maxTokens)
}

func (f *fakeLLM) Version() string { return "fake-llm" }

// streamOf builds a GenerateStream implementation that replays fragments.
func streamOf(fragments ...string) func(ctx context.Context, prompt string, maxTokens int) (<-chan domain.LLMStreamChunk, <-chan error, error) {
	return func(ctx context.Context, prompt string, maxTokens int) (<-chan domain.LLMStreamChunk, <-chan error, error) {
		chunks := make(chan domain.LLMStreamChunk, len(fragments)+1)
		errCh := make(chan error, 1)
		for i, fragment := range fragments {
			chunks <- domain.LLMStreamChunk{Text: fragment, Done: i == len(fragments)-1}
		}
		close(chunks)
		close(errCh)
		return chunks, errCh, nil
	}
}

// fakeEncoder embeds texts as fixed-size vectors derived from keyword hits,
// so similar texts land near each other without a real model.
type fakeEncoder struct {
	mu     sync.Mutex
	err    error
	calls  int
	tokens []string
}

func newFakeEncoder(vocabulary ...string) *fakeEncoder {
	return &fakeEncoder{tokens: vocabulary}
}

func (f *fakeEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lowered := strings.ToLower(text)
		vec := make([]float32, len(f.tokens)+1)
		vec[len(f.tokens)] = 0.1
		for j, token := range f.tokens {
			if strings.Contains(lowered, token) {
				vec[j] = 1
			}
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEncoder) Version() string { return "fake-encoder" }

func (f *fakeEncoder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// staticIndex serves fixed search results.
type staticIndex struct {
	dense     []domain.SearchResult
	sparse    []domain.SearchResult
	denseErr  error
	sparseErr error
}

func (s *staticIndex) Search(ctx context.Context, vector []float32, topN int) ([]domain.SearchResult, error) {
	if s.denseErr != nil {
		return nil, s.denseErr
	}
	if topN > 0 && len(s.dense) > topN {
		return s.dense[:topN], nil
	}
	return s.dense, nil
}

func (s *staticIndex) SearchSparse(ctx context.Context, query string, topN int) ([]domain.SearchResult, error) {
	if s.sparseErr != nil {
		return nil, s.sparseErr
	}
	if topN > 0 && len(s.sparse) > topN {
		return s.sparse[:topN], nil
	}
	return s.sparse, nil
}

func blockOf(texts ...string) *domain.ContextBlock {
	block := &domain.ContextBlock{}
	for i, text := range texts {
		block.Entries = append(block.Entries, domain.ContextEntry{
			Index: i + 1,
			Candidate: domain.Candidate{
				Chunk: &domain.Chunk{ID: "chunk-" + string(rune('a'+i)), Ordinal: i, Text: text},
			},
			Tokens: len(text) / 4,
			Text:   text,
		})
		block.TotalTokens += len(text) / 4
	}
	return block
}
