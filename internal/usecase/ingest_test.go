package usecase

import (
	"context"
	"strings"
	"testing"

	"agentic-rag/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	chunks []domain.Chunk
	err    error
}

func (w *captureWriter) BulkInsert(ctx context.Context, chunks []domain.Chunk) error {
	if w.err != nil {
		return w.err
	}
	w.chunks = append(w.chunks, chunks...)
	return nil
}

func ingestBody() string {
	paragraph := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 4)
	return paragraph + "\n\n" + strings.Repeat("Pack my box with five dozen liquor jugs. ", 4)
}

func TestIngestDocument_StoresEmbeddedChunks(t *testing.T) {
	writer := &captureWriter{}
	encoder := newFakeEncoder("fox", "liquor")
	ingestor := NewIngestor(domain.NewChunker(), encoder, writer, discardLogger())

	count, err := ingestor.IngestDocument(context.Background(), "doc://pangrams", "Pangrams", ingestBody())

	require.NoError(t, err)
	assert.Equal(t, count, len(writer.chunks))
	require.NotEmpty(t, writer.chunks)
	for i, chunk := range writer.chunks {
		assert.NotEmpty(t, chunk.ID)
		assert.Equal(t, i, chunk.Ordinal)
		assert.Equal(t, "doc://pangrams", chunk.SourceURI)
		assert.Equal(t, "Pangrams", chunk.Title)
		assert.NotEmpty(t, chunk.Embedding, "every chunk carries its embedding")
	}
}

func TestIngestDocument_ChunkIDsAreDeterministic(t *testing.T) {
	run := func() []string {
		writer := &captureWriter{}
		ingestor := NewIngestor(domain.NewChunker(), newFakeEncoder("fox"), writer, discardLogger())
		_, err := ingestor.IngestDocument(context.Background(), "doc://pangrams", "Pangrams", ingestBody())
		require.NoError(t, err)
		ids := make([]string, len(writer.chunks))
		for i, c := range writer.chunks {
			ids[i] = c.ID
		}
		return ids
	}

	first := run()
	second := run()
	assert.Equal(t, first, second, "same content yields the same IDs on re-ingest")
}

func TestIngestDocument_EmptyBodyIsInvalidInput(t *testing.T) {
	ingestor := NewIngestor(domain.NewChunker(), newFakeEncoder(), &captureWriter{}, discardLogger())

	_, err := ingestor.IngestDocument(context.Background(), "doc://x", "Empty", "  \n\n  ")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngestDocument_EmbeddingFailureAborts(t *testing.T) {
	writer := &captureWriter{}
	encoder := newFakeEncoder()
	encoder.err = domain.ErrProviderUnavailable
	ingestor := NewIngestor(domain.NewChunker(), encoder, writer, discardLogger())

	_, err := ingestor.IngestDocument(context.Background(), "doc://x", "T", ingestBody())

	require.Error(t, err)
	assert.Empty(t, writer.chunks, "nothing stored when embedding fails")
}
