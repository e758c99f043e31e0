package memindex

import (
	"context"
	"testing"

	"agentic-rag/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *MemIndex {
	t.Helper()
	idx, err := New()
	require.NoError(t, err)

	chunks := []domain.Chunk{
		{ID: "c1", Ordinal: 0, Text: "Paris is the capital of France.", Title: "France", Embedding: []float32{1, 0, 0}},
		{ID: "c2", Ordinal: 1, Text: "Berlin is the capital of Germany.", Title: "Germany", Embedding: []float32{0.7, 0.7, 0}},
		{ID: "c3", Ordinal: 2, Text: "The Danube flows through Vienna.", Title: "Danube", Embedding: []float32{0, 0, 1}},
	}
	require.NoError(t, idx.BulkInsert(context.Background(), chunks))
	return idx
}

func TestSearch_OrdersByCosineSimilarity(t *testing.T) {
	idx := seeded(t)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 10)

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "c1", results[0].Chunk.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "c2", results[1].Chunk.ID)
	assert.Equal(t, "c3", results[2].Chunk.ID)
	for i, r := range results {
		assert.Equal(t, i+1, r.Rank)
	}
}

func TestSearch_TopNCapsResults(t *testing.T) {
	idx := seeded(t)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 1)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].Chunk.ID)
}

func TestSearch_IsDeterministic(t *testing.T) {
	idx := seeded(t)

	first, err := idx.Search(context.Background(), []float32{0.5, 0.5, 0.5}, 10)
	require.NoError(t, err)
	for range 10 {
		again, err := idx.Search(context.Background(), []float32{0.5, 0.5, 0.5}, 10)
		require.NoError(t, err)
		require.Len(t, again, len(first))
		for i := range first {
			assert.Equal(t, first[i].Chunk.ID, again[i].Chunk.ID)
		}
	}
}

func TestSearch_EmptyVectorIsInvalid(t *testing.T) {
	idx := seeded(t)
	_, err := idx.Search(context.Background(), nil, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearch_SkipsMismatchedDimensions(t *testing.T) {
	idx, err := New()
	require.NoError(t, err)
	require.NoError(t, idx.BulkInsert(context.Background(), []domain.Chunk{
		{ID: "short", Ordinal: 0, Text: "short vector", Embedding: []float32{1}},
		{ID: "full", Ordinal: 1, Text: "full vector", Embedding: []float32{1, 0, 0}},
	}))

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 10)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "full", results[0].Chunk.ID)
}

func TestSearchSparse_FindsKeywordMatch(t *testing.T) {
	idx := seeded(t)

	results, err := idx.SearchSparse(context.Background(), "Danube Vienna", 10)

	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "c3", results[0].Chunk.ID)
	assert.Equal(t, 1, results[0].Rank)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestBulkInsert_RejectsChunkWithoutID(t *testing.T) {
	idx, err := New()
	require.NoError(t, err)

	err = idx.BulkInsert(context.Background(), []domain.Chunk{{Text: "no id"}})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBulkInsert_UpsertsById(t *testing.T) {
	idx, err := New()
	require.NoError(t, err)

	require.NoError(t, idx.BulkInsert(context.Background(), []domain.Chunk{
		{ID: "c1", Ordinal: 0, Text: "first version", Embedding: []float32{1}},
	}))
	require.NoError(t, idx.BulkInsert(context.Background(), []domain.Chunk{
		{ID: "c1", Ordinal: 0, Text: "second version", Embedding: []float32{1}},
	}))

	assert.Equal(t, 1, idx.Len())
	results, err := idx.Search(context.Background(), []float32{1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "second version", results[0].Chunk.Text)
}
