package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"agentic-rag/internal/domain"
)

// AnswerSource tags how an answer was parsed out of the LLM output.
type AnswerSource string

const (
	// AnswerSourceStructured means the model returned the requested JSON.
	AnswerSourceStructured AnswerSource = "structured"
	// AnswerSourceMarkers means the JSON could not be parsed and citations
	// were extracted from free text via the marker pattern.
	AnswerSourceMarkers AnswerSource = "fallback_markers"
)

// ParsedAnswer is the tagged result of output parsing. Citations holds the
// citation indices actually used, deduplicated in order of first use.
type ParsedAnswer struct {
	Source    AnswerSource
	Answer    string
	Citations []int
	Fallback  bool
	Reason    string
}

type structuredAnswer struct {
	Answer    string `json:"answer"`
	Citations []int  `json:"citations"`
	Fallback  bool   `json:"fallback"`
	Reason    string `json:"reason"`
}

// markerPattern is the fixed inline citation marker format: [n].
var markerPattern = regexp.MustCompile(`\[(\d+)\]`)

// OutputValidator parses LLM output and checks that every citation points
// inside the supplied context.
type OutputValidator struct{}

func NewOutputValidator() OutputValidator {
	return OutputValidator{}
}

// Validate parses the raw LLM output against the context block.
//
// Structured JSON is preferred; a structured citation outside the context's
// index set is a contract violation and returns an error so the caller can
// retry. When the output is not valid JSON the marker fallback applies and
// parsing never fails (no markers means an empty citation list).
func (v OutputValidator) Validate(raw string, block *domain.ContextBlock) (*ParsedAnswer, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("llm response is empty")
	}

	var sa structuredAnswer
	if err := json.Unmarshal([]byte(stripCodeFence(trimmed)), &sa); err != nil {
		return v.Salvage(trimmed, block), nil
	}

	if sa.Fallback {
		return &ParsedAnswer{
			Source:   AnswerSourceStructured,
			Fallback: true,
			Reason:   sa.Reason,
		}, nil
	}
	if strings.TrimSpace(sa.Answer) == "" {
		return nil, errors.New("structured response has empty answer")
	}

	seen := make(map[int]bool, len(sa.Citations))
	citations := make([]int, 0, len(sa.Citations))
	for _, index := range sa.Citations {
		if seen[index] {
			continue
		}
		if block.Entry(index) == nil {
			return nil, fmt.Errorf("citation [%d] references no context entry", index)
		}
		seen[index] = true
		citations = append(citations, index)
	}
	// Inline markers must also stay inside the context set.
	for _, index := range extractMarkers(sa.Answer) {
		if block.Entry(index) == nil {
			return nil, fmt.Errorf("inline marker [%d] references no context entry", index)
		}
	}

	return &ParsedAnswer{
		Source:    AnswerSourceStructured,
		Answer:    strings.TrimSpace(sa.Answer),
		Citations: citations,
	}, nil
}

// Salvage extracts citations from free text via the marker pattern. Markers
// outside the context set are dropped. Never fails.
func (v OutputValidator) Salvage(raw string, block *domain.ContextBlock) *ParsedAnswer {
	text := strings.TrimSpace(raw)
	var citations []int
	seen := make(map[int]bool)
	for _, index := range extractMarkers(text) {
		if seen[index] || block.Entry(index) == nil {
			continue
		}
		seen[index] = true
		citations = append(citations, index)
	}
	return &ParsedAnswer{
		Source:    AnswerSourceMarkers,
		Answer:    text,
		Citations: citations,
	}
}

func extractMarkers(text string) []int {
	matches := markerPattern.FindAllStringSubmatch(text, -1)
	indices := make([]int, 0, len(matches))
	for _, m := range matches {
		if index, err := strconv.Atoi(m[1]); err == nil {
			indices = append(indices, index)
		}
	}
	return indices
}

// stripCodeFence removes a surrounding markdown code fence, which models
// add despite instructions.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
