package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"agentic-rag/internal/domain"
)

// QueryRewriter transforms the raw query and conversation history into a
// retrieval-optimized query: pronouns resolved against prior turns,
// acronyms expanded, conversational filler stripped.
type QueryRewriter struct {
	llm    domain.LLMClient
	logger *slog.Logger
}

func NewQueryRewriter(llm domain.LLMClient, logger *slog.Logger) *QueryRewriter {
	return &QueryRewriter{llm: llm, logger: logger}
}

// Rewrite returns the rewritten query. Rewriting is never fatal: on
// capability error or an unusable response the raw query is returned with
// degraded=true and the reason.
func (r *QueryRewriter) Rewrite(ctx context.Context, rawQuery string, history []domain.Turn) (string, bool, string) {
	prompt := r.buildPrompt(rawQuery, history)

	resp, err := r.llm.Generate(ctx, prompt, 128)
	if err != nil {
		r.logger.Warn("query_rewrite_failed_using_raw",
			slog.String("error", err.Error()))
		return rawQuery, true, "rewrite capability unavailable: " + err.Error()
	}

	rewritten := sanitizeRewrite(resp.Text)
	if rewritten == "" {
		r.logger.Warn("query_rewrite_empty_using_raw")
		return rawQuery, true, "rewrite produced empty output"
	}

	r.logger.Info("query_rewritten",
		slog.String("original", rawQuery),
		slog.String("rewritten", rewritten))
	return rewritten, false, ""
}

func (r *QueryRewriter) buildPrompt(rawQuery string, history []domain.Turn) string {
	var sb strings.Builder
	sb.WriteString("Rewrite the user's question into a single self-contained search query.\n")
	sb.WriteString("Resolve pronouns and references using the conversation, expand uncommon acronyms, and drop conversational filler.\n")
	sb.WriteString("Output ONLY the rewritten query on one line. No explanations, no quotes.\n\n")

	if len(history) > 0 {
		sb.WriteString("Conversation:\n")
		for _, turn := range history {
			sb.WriteString(fmt.Sprintf("%s: %s\n", turn.Role, turn.Content))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Question: ")
	sb.WriteString(rawQuery)
	return sb.String()
}

// sanitizeRewrite collapses the model output to one line and strips the
// quoting models tend to add.
func sanitizeRewrite(raw string) string {
	line := strings.TrimSpace(raw)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	line = strings.Trim(line, "\"'")
	return strings.TrimSpace(line)
}
