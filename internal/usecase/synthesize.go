package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"agentic-rag/internal/domain"
	"agentic-rag/internal/infra/resilience"
)

const fallbackAnswer = "The retrieved sources do not contain enough information to answer this question."

// Synthesizer turns an assembled context and query into a grounded,
// citation-carrying answer.
type Synthesizer struct {
	llm       domain.LLMClient
	builder   PromptBuilder
	validator OutputValidator
	policy    resilience.RetryPolicy
	maxTokens int
	logger    *slog.Logger
}

// SynthesisResult is the validated synthesis output.
type SynthesisResult struct {
	Answer         string
	Citations      []int
	Source         AnswerSource
	Degraded       bool
	DegradedReason string
}

func NewSynthesizer(llm domain.LLMClient, builder PromptBuilder, policy resilience.RetryPolicy, maxTokens int, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{
		llm:       llm,
		builder:   builder,
		validator: NewOutputValidator(),
		policy:    policy,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Synthesize generates an answer in one shot. Validation failures (broken
// JSON with an out-of-set citation, empty answer) get one re-generation;
// after that the raw output is salvaged via markers and flagged degraded.
// Capability exhaustion is fatal.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, block *domain.ContextBlock, attempts *int) (*SynthesisResult, error) {
	prompt, err := s.builder.Build(query, block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSynthesisFailed, err)
	}

	var lastRaw string
	for validationAttempt := 0; validationAttempt < 2; validationAttempt++ {
		raw, genErr := s.generate(ctx, prompt, attempts)
		if genErr != nil {
			return nil, fmt.Errorf("%w: generation failed: %v", domain.ErrSynthesisFailed, genErr)
		}
		lastRaw = raw

		parsed, valErr := s.validator.Validate(raw, block)
		if valErr != nil {
			s.logger.Warn("synthesis_output_invalid_regenerating",
				slog.Int("validation_attempt", validationAttempt+1),
				slog.String("error", valErr.Error()))
			continue
		}
		return s.fromParsed(parsed, false, ""), nil
	}

	// Two structurally invalid outputs. Salvage keeps the user-visible text
	// with out-of-set markers dropped from the citation list.
	s.logger.Warn("synthesis_output_salvaged_after_retries")
	parsed := s.validator.Salvage(lastRaw, block)
	return s.fromParsed(parsed, true, "structured output invalid after retry, salvaged via citation markers"), nil
}

func (s *Synthesizer) generate(ctx context.Context, prompt string, attempts *int) (string, error) {
	var raw string
	err := s.policy.Execute(ctx, s.logger, "synthesize", attempts, func(ctx context.Context) error {
		resp, err := s.llm.Generate(ctx, prompt, s.maxTokens)
		if err != nil {
			return err
		}
		if strings.TrimSpace(resp.Text) == "" {
			return fmt.Errorf("%w: empty completion", domain.ErrProviderUnavailable)
		}
		raw = resp.Text
		return nil
	})
	return raw, err
}

func (s *Synthesizer) fromParsed(parsed *ParsedAnswer, degraded bool, reason string) *SynthesisResult {
	if parsed.Fallback {
		answer := fallbackAnswer
		if parsed.Reason != "" {
			answer = fallbackAnswer + " (" + parsed.Reason + ")"
		}
		return &SynthesisResult{
			Answer:         answer,
			Citations:      nil,
			Source:         parsed.Source,
			Degraded:       true,
			DegradedReason: "model reported no relevant context",
		}
	}
	result := &SynthesisResult{
		Answer:    parsed.Answer,
		Citations: parsed.Citations,
		Source:    parsed.Source,
		Degraded:  degraded || parsed.Source == AnswerSourceMarkers,
	}
	if result.Degraded && reason == "" {
		reason = "citations recovered from inline markers"
	}
	result.DegradedReason = reason
	return result
}
