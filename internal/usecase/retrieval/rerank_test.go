package retrieval

import (
	"context"
	"errors"
	"testing"

	"agentic-rag/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockReranker struct {
	mock.Mock
}

func (m *mockReranker) Rerank(ctx context.Context, query string, candidates []domain.RerankCandidate) ([]domain.RerankResult, error) {
	args := m.Called(ctx, query, candidates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RerankResult), args.Error(1)
}

func (m *mockReranker) ModelName() string {
	return "mock-reranker"
}

func candidateSet() []domain.Candidate {
	return []domain.Candidate{
		{Chunk: chunk("a", 0), CombinedScore: 0.9},
		{Chunk: chunk("b", 1), CombinedScore: 0.8},
		{Chunk: chunk("c", 2), CombinedScore: 0.7},
	}
}

func TestRerank_ReordersByCrossEncoderScore(t *testing.T) {
	reranker := new(mockReranker)
	reranker.On("Rerank", mock.Anything, "query", mock.Anything).Return([]domain.RerankResult{
		{ID: "c", Score: 0.99},
		{ID: "a", Score: 0.50},
		{ID: "b", Score: 0.10},
	}, nil)

	out, degradation := Rerank(context.Background(), reranker, "query", candidateSet(),
		RerankConfig{RerankK: 3}, testLogger())

	assert.Nil(t, degradation)
	require.Len(t, out, 3)
	assert.Equal(t, "c", out[0].Chunk.ID)
	assert.Equal(t, "a", out[1].Chunk.ID)
	assert.Equal(t, "b", out[2].Chunk.ID)
	require.NotNil(t, out[0].RerankScore)
	assert.Equal(t, 0.99, *out[0].RerankScore)
}

func TestRerank_StableOnEqualScores(t *testing.T) {
	reranker := new(mockReranker)
	reranker.On("Rerank", mock.Anything, mock.Anything, mock.Anything).Return([]domain.RerankResult{
		{ID: "a", Score: 0.5},
		{ID: "b", Score: 0.5},
		{ID: "c", Score: 0.5},
	}, nil)

	out, _ := Rerank(context.Background(), reranker, "query", candidateSet(),
		RerankConfig{RerankK: 3}, testLogger())

	// Equal rerank scores keep the pre-rerank relative order.
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].Chunk.ID)
	assert.Equal(t, "b", out[1].Chunk.ID)
	assert.Equal(t, "c", out[2].Chunk.ID)
}

func TestRerank_FailureFallsBackToRetrievalOrder(t *testing.T) {
	reranker := new(mockReranker)
	reranker.On("Rerank", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("model overloaded"))

	out, degradation := Rerank(context.Background(), reranker, "query", candidateSet(),
		RerankConfig{RerankK: 2}, testLogger())

	require.NotNil(t, degradation)
	assert.Equal(t, domain.StageReranking, degradation.Stage)
	require.Len(t, out, 2, "fallback still honors rerank_k")
	assert.Equal(t, "a", out[0].Chunk.ID)
	assert.Equal(t, "b", out[1].Chunk.ID)
}

func TestRerank_NilRerankerPassesThroughWithoutDegradation(t *testing.T) {
	out, degradation := Rerank(context.Background(), nil, "query", candidateSet(),
		RerankConfig{RerankK: 2}, testLogger())

	assert.Nil(t, degradation, "an unconfigured reranker is not a degradation")
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Chunk.ID)
}

func TestRerank_EmptyCandidates(t *testing.T) {
	reranker := new(mockReranker)

	out, degradation := Rerank(context.Background(), reranker, "query", nil,
		RerankConfig{RerankK: 5}, testLogger())

	assert.Nil(t, degradation)
	assert.Empty(t, out)
	reranker.AssertNotCalled(t, "Rerank")
}
