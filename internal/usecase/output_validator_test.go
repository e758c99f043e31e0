package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputValidator_StructuredAnswer(t *testing.T) {
	validator := NewOutputValidator()
	block := blockOf("first source", "second source")

	raw := `{"answer": "The capital is Paris. [1]", "citations": [1], "fallback": false, "reason": ""}`
	parsed, err := validator.Validate(raw, block)

	require.NoError(t, err)
	assert.Equal(t, AnswerSourceStructured, parsed.Source)
	assert.Equal(t, "The capital is Paris. [1]", parsed.Answer)
	assert.Equal(t, []int{1}, parsed.Citations)
	assert.False(t, parsed.Fallback)
}

func TestOutputValidator_StructuredWithCodeFence(t *testing.T) {
	validator := NewOutputValidator()
	block := blockOf("source")

	raw := "```json\n{\"answer\": \"Fenced. [1]\", \"citations\": [1], \"fallback\": false, \"reason\": \"\"}\n```"
	parsed, err := validator.Validate(raw, block)

	require.NoError(t, err)
	assert.Equal(t, AnswerSourceStructured, parsed.Source)
	assert.Equal(t, []int{1}, parsed.Citations)
}

func TestOutputValidator_OutOfSetCitationIsError(t *testing.T) {
	validator := NewOutputValidator()
	block := blockOf("only one source")

	raw := `{"answer": "Cites the void. [7]", "citations": [7], "fallback": false, "reason": ""}`
	_, err := validator.Validate(raw, block)

	require.Error(t, err, "a structured citation outside the context set is a contract violation")
	assert.Contains(t, err.Error(), "[7]")
}

func TestOutputValidator_OutOfSetInlineMarkerIsError(t *testing.T) {
	validator := NewOutputValidator()
	block := blockOf("only one source")

	raw := `{"answer": "Valid list but stray marker. [9]", "citations": [1], "fallback": false, "reason": ""}`
	_, err := validator.Validate(raw, block)

	require.Error(t, err)
}

func TestOutputValidator_DuplicateCitationsDeduplicated(t *testing.T) {
	validator := NewOutputValidator()
	block := blockOf("a", "b")

	raw := `{"answer": "Both. [1][2][1]", "citations": [1, 2, 1, 2], "fallback": false, "reason": ""}`
	parsed, err := validator.Validate(raw, block)

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, parsed.Citations)
}

func TestOutputValidator_FallbackAnswer(t *testing.T) {
	validator := NewOutputValidator()
	block := blockOf("irrelevant source")

	raw := `{"answer": "", "citations": [], "fallback": true, "reason": "nothing relevant"}`
	parsed, err := validator.Validate(raw, block)

	require.NoError(t, err)
	assert.True(t, parsed.Fallback)
	assert.Equal(t, "nothing relevant", parsed.Reason)
}

func TestOutputValidator_NonJSONFallsBackToMarkers(t *testing.T) {
	validator := NewOutputValidator()
	block := blockOf("a", "b", "c")

	parsed, err := validator.Validate("Free text citing [2] and an out-of-set [8].", block)

	require.NoError(t, err)
	assert.Equal(t, AnswerSourceMarkers, parsed.Source)
	assert.Equal(t, []int{2}, parsed.Citations, "out-of-set markers are dropped, not fatal")
}

func TestOutputValidator_NonJSONWithoutMarkers(t *testing.T) {
	validator := NewOutputValidator()
	block := blockOf("a")

	parsed, err := validator.Validate("Plain text with no citations at all.", block)

	require.NoError(t, err)
	assert.Equal(t, AnswerSourceMarkers, parsed.Source)
	assert.Empty(t, parsed.Citations)
}

func TestOutputValidator_EmptyOutputIsError(t *testing.T) {
	validator := NewOutputValidator()
	_, err := validator.Validate("   ", blockOf("a"))
	require.Error(t, err)
}

func TestOutputValidator_EmptyStructuredAnswerIsError(t *testing.T) {
	validator := NewOutputValidator()
	raw := `{"answer": "  ", "citations": [], "fallback": false, "reason": ""}`
	_, err := validator.Validate(raw, blockOf("a"))
	require.Error(t, err)
}
