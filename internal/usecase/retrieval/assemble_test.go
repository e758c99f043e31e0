package retrieval

import (
	"strings"
	"testing"

	"agentic-rag/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidateWithText(id string, ordinal int, text string) domain.Candidate {
	return domain.Candidate{Chunk: &domain.Chunk{ID: id, Ordinal: ordinal, Text: text}}
}

func TestAssemble_GreedyUntilBudget(t *testing.T) {
	counter := HeuristicTokenCounter{}
	candidates := []domain.Candidate{
		candidateWithText("a", 0, strings.Repeat("x", 40)), // 10 tokens
		candidateWithText("b", 1, strings.Repeat("y", 40)), // 10 tokens
		candidateWithText("c", 2, strings.Repeat("z", 40)), // 10 tokens
	}

	block := Assemble(candidates, counter, AssembleConfig{TokenBudget: 25}, testLogger())

	require.Len(t, block.Entries, 2, "third chunk would exceed the budget")
	assert.Equal(t, 20, block.TotalTokens)
	assert.False(t, block.ForcedTruncation)
	assert.Equal(t, 1, block.Entries[0].Index)
	assert.Equal(t, 2, block.Entries[1].Index)
	assert.Equal(t, "a", block.Entries[0].Candidate.Chunk.ID)
}

func TestAssemble_ChunksTakenWholeNotCut(t *testing.T) {
	counter := HeuristicTokenCounter{}
	candidates := []domain.Candidate{
		candidateWithText("a", 0, strings.Repeat("x", 40)),  // 10 tokens, fits
		candidateWithText("b", 1, strings.Repeat("y", 400)), // 100 tokens, does not fit
	}

	block := Assemble(candidates, counter, AssembleConfig{TokenBudget: 50}, testLogger())

	require.Len(t, block.Entries, 1)
	assert.False(t, block.Entries[0].Truncated)
	assert.Equal(t, candidates[0].Chunk.Text, block.Entries[0].Text)
}

func TestAssemble_ForcedTruncationWhenNothingFits(t *testing.T) {
	counter := HeuristicTokenCounter{}
	candidates := []domain.Candidate{
		candidateWithText("big", 0, strings.Repeat("x", 4000)), // 1000 tokens
	}

	block := Assemble(candidates, counter, AssembleConfig{TokenBudget: 100}, testLogger())

	require.Len(t, block.Entries, 1, "best candidate is force-included rather than returning empty context")
	assert.True(t, block.ForcedTruncation)
	assert.True(t, block.Entries[0].Truncated)
	assert.LessOrEqual(t, block.Entries[0].Tokens, 100)
	assert.NotEmpty(t, block.Entries[0].Text)
}

func TestAssemble_EmptyCandidates(t *testing.T) {
	block := Assemble(nil, HeuristicTokenCounter{}, AssembleConfig{TokenBudget: 100}, testLogger())

	assert.Empty(t, block.Entries)
	assert.Zero(t, block.TotalTokens)
	assert.False(t, block.ForcedTruncation)
}

func TestAssemble_IsDeterministic(t *testing.T) {
	counter := HeuristicTokenCounter{}
	candidates := []domain.Candidate{
		candidateWithText("a", 0, strings.Repeat("x", 100)),
		candidateWithText("b", 1, strings.Repeat("y", 100)),
	}

	first := Assemble(candidates, counter, AssembleConfig{TokenBudget: 60}, testLogger())
	for i := 0; i < 10; i++ {
		again := Assemble(candidates, counter, AssembleConfig{TokenBudget: 60}, testLogger())
		assert.Equal(t, first, again)
	}
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", Snippet("short", 20))
	assert.Equal(t, "", Snippet("anything", 0))

	long := Snippet(strings.Repeat("a", 50), 10)
	assert.True(t, strings.HasSuffix(long, "…"))
	assert.LessOrEqual(t, len([]rune(long)), 11)
}

func TestHeuristicTokenCounter(t *testing.T) {
	counter := HeuristicTokenCounter{}
	assert.Equal(t, 0, counter.Count(""))
	assert.Equal(t, 1, counter.Count("abc"))
	assert.Equal(t, 1, counter.Count("abcd"))
	assert.Equal(t, 2, counter.Count("abcde"))
}
