package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"agentic-rag/internal/domain"
	"agentic-rag/internal/infra/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEncoder struct {
	mock.Mock
}

func (m *mockEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *mockEncoder) Version() string {
	return "mock-encoder"
}

type mockIndex struct {
	mock.Mock
}

func (m *mockIndex) Search(ctx context.Context, vector []float32, topN int) ([]domain.SearchResult, error) {
	args := m.Called(ctx, vector, topN)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchResult), args.Error(1)
}

func (m *mockIndex) SearchSparse(ctx context.Context, query string, topN int) ([]domain.SearchResult, error) {
	args := m.Called(ctx, query, topN)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchResult), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func chunk(id string, ordinal int) *domain.Chunk {
	return &domain.Chunk{ID: id, Ordinal: ordinal, Text: "text for " + id}
}

func results(chunks ...*domain.Chunk) []domain.SearchResult {
	out := make([]domain.SearchResult, len(chunks))
	for i, c := range chunks {
		out[i] = domain.SearchResult{Chunk: c, Score: 1.0 - float64(i)*0.1, Rank: i + 1}
	}
	return out
}

func TestFuse_RRFCombinesBothSignals(t *testing.T) {
	a, b, c := chunk("a", 0), chunk("b", 1), chunk("c", 2)

	// a leads dense, b leads sparse, c appears in both at rank 2.
	fused := fuse(results(a, c), results(b, c), 60)

	require.Len(t, fused, 3)

	byID := make(map[string]domain.Candidate)
	for _, cand := range fused {
		byID[cand.Chunk.ID] = cand
	}
	assert.InDelta(t, 1.0/61.0, byID["a"].CombinedScore, 1e-12)
	assert.InDelta(t, 1.0/61.0, byID["b"].CombinedScore, 1e-12)
	assert.InDelta(t, 2.0/62.0, byID["c"].CombinedScore, 1e-12)

	// Two signals at rank 2 beat one signal at rank 1.
	assert.Equal(t, "c", fused[0].Chunk.ID)
}

func TestFuse_IsDeterministicOnTies(t *testing.T) {
	a, b := chunk("a", 1), chunk("b", 0)

	for i := 0; i < 20; i++ {
		fused := fuse(results(a), results(b), 60)
		require.Len(t, fused, 2)
		// Equal combined scores: insertion order (ordinal) breaks the tie.
		assert.Equal(t, "b", fused[0].Chunk.ID)
		assert.Equal(t, "a", fused[1].Chunk.ID)
	}
}

func TestFuse_IndependentOfRawScoreScale(t *testing.T) {
	a, b := chunk("a", 0), chunk("b", 1)

	dense := []domain.SearchResult{
		{Chunk: a, Score: 0.99, Rank: 1},
		{Chunk: b, Score: 0.01, Rank: 2},
	}
	scaled := []domain.SearchResult{
		{Chunk: a, Score: 9900, Rank: 1},
		{Chunk: b, Score: 100, Rank: 2},
	}

	f1 := fuse(dense, nil, 60)
	f2 := fuse(scaled, nil, 60)
	require.Len(t, f1, 2)
	require.Len(t, f2, 2)
	assert.Equal(t, f1[0].CombinedScore, f2[0].CombinedScore)
	assert.Equal(t, f1[1].CombinedScore, f2[1].CombinedScore)
}

func TestRetrieve_CapsAtTopK(t *testing.T) {
	encoder := new(mockEncoder)
	index := new(mockIndex)
	encoder.On("Encode", mock.Anything, []string{"query"}).Return([][]float32{{0.1, 0.2}}, nil)

	var dense []domain.SearchResult
	for i := 0; i < 10; i++ {
		dense = append(dense, domain.SearchResult{Chunk: chunk(string(rune('a'+i)), i), Score: 1.0 - float64(i)*0.05, Rank: i + 1})
	}
	index.On("Search", mock.Anything, mock.Anything, 30).Return(dense, nil)
	index.On("SearchSparse", mock.Anything, "query", 30).Return([]domain.SearchResult{}, nil)

	candidates, degradations, err := Retrieve(context.Background(), encoder, index, "query",
		RetrieveConfig{TopK: 3, SearchLimit: 30, RRFK: 60},
		resilience.RetryPolicy{MaxAttempts: 1}, nil, testLogger())

	require.NoError(t, err)
	assert.Empty(t, degradations)
	require.Len(t, candidates, 3)
	assert.Equal(t, "a", candidates[0].Chunk.ID)
}

func TestRetrieve_SparseFailureDegradesToDenseOnly(t *testing.T) {
	encoder := new(mockEncoder)
	index := new(mockIndex)
	encoder.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{0.5}}, nil)
	index.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(results(chunk("a", 0)), nil)
	index.On("SearchSparse", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("bm25 index offline"))

	candidates, degradations, err := Retrieve(context.Background(), encoder, index, "query",
		RetrieveConfig{TopK: 5, SearchLimit: 15, RRFK: 60},
		resilience.RetryPolicy{MaxAttempts: 1}, nil, testLogger())

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Len(t, degradations, 1)
	assert.Equal(t, domain.StageRetrieving, degradations[0].Stage)
	assert.Contains(t, degradations[0].Reason, "sparse search unavailable")
}

func TestRetrieve_EmbeddingFailureIsFatalAfterRetries(t *testing.T) {
	encoder := new(mockEncoder)
	index := new(mockIndex)
	encoder.On("Encode", mock.Anything, mock.Anything).Return(nil, domain.ErrProviderUnavailable)

	attempts := 0
	_, _, err := Retrieve(context.Background(), encoder, index, "query",
		RetrieveConfig{TopK: 5, SearchLimit: 15, RRFK: 60},
		resilience.RetryPolicy{MaxAttempts: 3, InitialBackoff: 1, MaxBackoff: 1}, &attempts, testLogger())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRetrievalUnavailable)
	assert.Equal(t, 3, attempts, "transient embedding failures should exhaust the retry budget")
	index.AssertNotCalled(t, "Search")
}

func TestRetrieve_DenseFailureIsFatal(t *testing.T) {
	encoder := new(mockEncoder)
	index := new(mockIndex)
	encoder.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{0.5}}, nil)
	index.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))
	index.On("SearchSparse", mock.Anything, mock.Anything, mock.Anything).Return([]domain.SearchResult{}, nil)

	_, _, err := Retrieve(context.Background(), encoder, index, "query",
		RetrieveConfig{TopK: 5, SearchLimit: 15, RRFK: 60},
		resilience.RetryPolicy{MaxAttempts: 1}, nil, testLogger())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRetrievalUnavailable)
}
