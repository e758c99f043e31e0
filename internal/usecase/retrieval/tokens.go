package retrieval

import (
	"log/slog"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter measures the token cost of text under a deterministic rule.
// Context assembly depends on this being stable across calls.
type TokenCounter interface {
	Count(text string) int
}

// NewTokenCounter returns a cl100k_base tiktoken counter when the encoding
// can be loaded, otherwise the rune heuristic. Both are deterministic.
func NewTokenCounter(logger *slog.Logger) TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warn("tiktoken_unavailable_using_heuristic",
			slog.String("error", err.Error()))
		return HeuristicTokenCounter{}
	}
	return &tiktokenCounter{enc: enc}
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// HeuristicTokenCounter approximates one token per four runes, rounded up.
// Used when the BPE encoding is unavailable and throughout tests.
type HeuristicTokenCounter struct{}

func (HeuristicTokenCounter) Count(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
