package retrieval

import (
	"log/slog"
	"strings"

	"agentic-rag/internal/domain"
)

// AssembleConfig holds context assembly parameters.
type AssembleConfig struct {
	TokenBudget int
}

// Assemble greedily selects candidates in rank order until the next one
// would exceed the token budget. Chunks are taken whole; a chunk that does
// not fit is dropped, never silently cut. The single exception: when not
// even the first candidate fits, it is force-included truncated to the
// budget and the block carries the ForcedTruncation flag.
//
// Citation indices are assigned 1..n in block order.
func Assemble(candidates []domain.Candidate, counter TokenCounter, cfg AssembleConfig, logger *slog.Logger) *domain.ContextBlock {
	block := &domain.ContextBlock{}

	for _, cand := range candidates {
		cost := counter.Count(cand.Chunk.Text)
		if block.TotalTokens+cost > cfg.TokenBudget {
			if len(block.Entries) == 0 {
				text := truncateToBudget(cand.Chunk.Text, cfg.TokenBudget, counter)
				entry := domain.ContextEntry{
					Index:     1,
					Candidate: cand,
					Tokens:    counter.Count(text),
					Truncated: true,
					Text:      text,
				}
				block.Entries = append(block.Entries, entry)
				block.TotalTokens = entry.Tokens
				block.ForcedTruncation = true
				logger.Warn("oversized_chunk_force_included",
					slog.String("chunk_id", cand.Chunk.ID),
					slog.Int("chunk_tokens", cost),
					slog.Int("token_budget", cfg.TokenBudget))
			}
			break
		}
		block.Entries = append(block.Entries, domain.ContextEntry{
			Index:     len(block.Entries) + 1,
			Candidate: cand,
			Tokens:    cost,
			Text:      cand.Chunk.Text,
		})
		block.TotalTokens += cost
	}

	logger.Info("context_assembled",
		slog.Int("entry_count", len(block.Entries)),
		slog.Int("total_tokens", block.TotalTokens),
		slog.Bool("forced_truncation", block.ForcedTruncation))

	return block
}

// truncateToBudget returns the longest rune prefix of text whose token cost
// stays within budget.
func truncateToBudget(text string, budget int, counter TokenCounter) string {
	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if counter.Count(string(runes[:mid])) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return strings.TrimSpace(string(runes[:lo]))
}

// Snippet returns a bounded-length excerpt used for citation previews.
func Snippet(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= maxRunes {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}
