package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"agentic-rag/internal/domain"
)

const generationTemperature = 0.2

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string                 `json:"model"`
	Messages  []chatMessage          `json:"messages"`
	Stream    bool                   `json:"stream"`
	KeepAlive int                    `json:"keep_alive"`
	Options   map[string]interface{} `json:"options,omitempty"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// OllamaGenerator talks to Ollama's chat endpoint. It implements both the
// one-shot and the streaming generation interfaces.
type OllamaGenerator struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewOllamaGenerator(baseURL, model string, client *http.Client) *OllamaGenerator {
	if client == nil {
		client = http.DefaultClient
	}
	return &OllamaGenerator{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  client,
	}
}

// Generate sends the prompt and returns the complete assistant message.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (*domain.LLMResponse, error) {
	resp, err := g.post(ctx, g.request(prompt, maxTokens, false))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}
	return &domain.LLMResponse{
		Text: strings.TrimSpace(chatResp.Message.Content),
		Done: chatResp.Done,
	}, nil
}

// GenerateStream sends the prompt with streaming enabled. Ollama answers
// with newline-delimited JSON fragments; each fragment's message content is
// forwarded as one chunk. The error channel delivers at most one value and
// both channels are closed when the stream ends.
func (g *OllamaGenerator) GenerateStream(ctx context.Context, prompt string, maxTokens int) (<-chan domain.LLMStreamChunk, <-chan error, error) {
	resp, err := g.post(ctx, g.request(prompt, maxTokens, true))
	if err != nil {
		return nil, nil, err
	}

	chunks := make(chan domain.LLMStreamChunk, 8)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errCh)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var fragment chatResponse
			if err := json.Unmarshal(line, &fragment); err != nil {
				errCh <- fmt.Errorf("decoding stream fragment: %w", err)
				return
			}
			select {
			case chunks <- domain.LLMStreamChunk{Text: fragment.Message.Content, Done: fragment.Done}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
			if fragment.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- fmt.Errorf("%w: stream interrupted: %v", domain.ErrProviderUnavailable, err)
		}
	}()

	return chunks, errCh, nil
}

// Version returns the wrapped model name.
func (g *OllamaGenerator) Version() string {
	return g.Model
}

func (g *OllamaGenerator) request(prompt string, maxTokens int, stream bool) chatRequest {
	req := chatRequest{
		Model:     g.Model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		Stream:    stream,
		KeepAlive: -1,
		Options: map[string]interface{}{
			"temperature": generationTemperature,
		},
	}
	if maxTokens > 0 {
		req.Options["num_predict"] = maxTokens
	}
	return req
}

func (g *OllamaGenerator) post(ctx context.Context, body chatRequest) (*http.Response, error) {
	jsonPayload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", g.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: chat endpoint unreachable: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: chat endpoint returned 429", domain.ErrRateLimited)
		}
		return nil, fmt.Errorf("%w: chat endpoint returned %d: %s", domain.ErrProviderUnavailable, resp.StatusCode, string(respBody))
	}
	return resp, nil
}

var _ domain.LLMClient = (*OllamaGenerator)(nil)
