package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"agentic-rag/internal/domain"
)

const ungroundedDisclaimer = "\n\nNote: parts of this answer could not be verified against the retrieved sources and may be inaccurate."

// SafetyConfig controls how an ungrounded verdict affects the answer.
type SafetyConfig struct {
	// SuppressUngrounded replaces an ungrounded answer entirely instead of
	// appending a disclaimer.
	SuppressUngrounded bool
}

// SafetyValidator asks a judge model whether the draft answer is supported
// by the retrieved context. The check never blocks the pipeline: judge
// errors or timeouts yield an inconclusive verdict.
type SafetyValidator struct {
	judge  domain.LLMClient
	cfg    SafetyConfig
	logger *slog.Logger
}

func NewSafetyValidator(judge domain.LLMClient, cfg SafetyConfig, logger *slog.Logger) *SafetyValidator {
	return &SafetyValidator{judge: judge, cfg: cfg, logger: logger}
}

// Validate produces the faithfulness verdict for answer against block.
func (v *SafetyValidator) Validate(ctx context.Context, answer string, block *domain.ContextBlock) domain.SafetyResult {
	if v.judge == nil {
		return domain.SafetyResult{
			Verdict:   domain.VerdictInconclusive,
			Rationale: "no judge configured",
		}
	}

	prompt := v.buildPrompt(answer, block)
	resp, err := v.judge.Generate(ctx, prompt, 256)
	if err != nil {
		v.logger.Warn("safety_judge_unavailable",
			slog.String("error", err.Error()))
		return domain.SafetyResult{
			Verdict:   domain.VerdictInconclusive,
			Rationale: "judge unavailable: " + err.Error(),
		}
	}

	verdict, rationale := parseVerdict(resp.Text)
	v.logger.Info("safety_verdict",
		slog.String("verdict", string(verdict)),
		slog.String("rationale", rationale))
	return domain.SafetyResult{Verdict: verdict, Rationale: rationale}
}

// Apply adjusts the answer according to the verdict. Grounded and
// inconclusive answers pass through untouched; ungrounded answers get a
// disclaimer appended, or are replaced when suppression is configured.
// Returns the final answer and the text appended to it, if any.
func (v *SafetyValidator) Apply(answer string, result domain.SafetyResult) (string, string) {
	if result.Verdict != domain.VerdictUngrounded {
		return answer, ""
	}
	if v.cfg.SuppressUngrounded {
		suppressed := "The generated answer could not be verified against the retrieved sources and has been withheld."
		return suppressed, ""
	}
	return answer + ungroundedDisclaimer, ungroundedDisclaimer
}

func (v *SafetyValidator) buildPrompt(answer string, block *domain.ContextBlock) string {
	var sb strings.Builder
	sb.WriteString("You are a strict fact checker. Decide whether EVERY claim in the answer below is supported by the source passages.\n")
	sb.WriteString("Respond with JSON only: {\"verdict\": \"grounded\" | \"ungrounded\", \"rationale\": \"...\"}\n\n")
	sb.WriteString("Sources:\n")
	if block != nil {
		for _, entry := range block.Entries {
			sb.WriteString(fmt.Sprintf("[%d] %s\n", entry.Index, entry.Text))
		}
	}
	sb.WriteString("\nAnswer:\n")
	sb.WriteString(answer)
	return sb.String()
}

// parseVerdict reads the judge output, tolerating non-JSON replies. The
// "ungrounded" check must run first: "ungrounded" contains "grounded" as a
// substring.
func parseVerdict(raw string) (domain.SafetyVerdict, string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return domain.VerdictInconclusive, "judge returned empty output"
	}

	var parsed struct {
		Verdict   string `json:"verdict"`
		Rationale string `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(trimmed)), &parsed); err == nil && parsed.Verdict != "" {
		switch strings.ToLower(strings.TrimSpace(parsed.Verdict)) {
		case "ungrounded":
			return domain.VerdictUngrounded, parsed.Rationale
		case "grounded":
			return domain.VerdictGrounded, parsed.Rationale
		}
		return domain.VerdictInconclusive, "unrecognized verdict: " + parsed.Verdict
	}

	lowered := strings.ToLower(trimmed)
	if strings.Contains(lowered, "ungrounded") {
		return domain.VerdictUngrounded, trimmed
	}
	if strings.Contains(lowered, "grounded") {
		return domain.VerdictGrounded, trimmed
	}
	return domain.VerdictInconclusive, "unparseable judge output"
}
