package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agentic-rag/internal/domain"
)

// embedBatchSize bounds the number of segments embedded per provider call.
const embedBatchSize = 32

// Ingestor chunks a source document, embeds the segments, and stores the
// resulting chunks.
type Ingestor struct {
	chunker domain.Chunker
	encoder domain.VectorEncoder
	writer  domain.ChunkWriter
	hasher  domain.ContentHashPolicy
	logger  *slog.Logger
}

func NewIngestor(chunker domain.Chunker, encoder domain.VectorEncoder, writer domain.ChunkWriter, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		chunker: chunker,
		encoder: encoder,
		writer:  writer,
		hasher:  domain.NewContentHashPolicy(),
		logger:  logger,
	}
}

// IngestDocument splits body, embeds every segment, and bulk-inserts the
// chunks. Returns the number of chunks stored.
func (in *Ingestor) IngestDocument(ctx context.Context, sourceURI, title, body string) (int, error) {
	if strings.TrimSpace(body) == "" {
		return 0, fmt.Errorf("%w: document body is empty", domain.ErrInvalidInput)
	}

	start := time.Now()
	segments := in.chunker.Split(body)
	if len(segments) == 0 {
		return 0, fmt.Errorf("%w: document produced no segments", domain.ErrInvalidInput)
	}

	chunks := make([]domain.Chunk, len(segments))
	for i, seg := range segments {
		// Deterministic IDs keep re-ingestion of unchanged content idempotent.
		chunks[i] = domain.Chunk{
			ID:          in.hasher.ChunkID(sourceURI, seg.Ordinal, seg.Text),
			Ordinal:     seg.Ordinal,
			Text:        seg.Text,
			SourceURI:   sourceURI,
			Title:       title,
			StartOffset: seg.StartOffset,
			EndOffset:   seg.EndOffset,
		}
	}

	for lo := 0; lo < len(chunks); lo += embedBatchSize {
		hi := lo + embedBatchSize
		if hi > len(chunks) {
			hi = len(chunks)
		}
		texts := make([]string, 0, hi-lo)
		for _, c := range chunks[lo:hi] {
			texts = append(texts, c.Text)
		}
		embeddings, err := in.encoder.Encode(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embedding batch %d-%d: %w", lo, hi, err)
		}
		if len(embeddings) != len(texts) {
			return 0, fmt.Errorf("%w: got %d embeddings for %d texts", domain.ErrProviderUnavailable, len(embeddings), len(texts))
		}
		for i := range embeddings {
			chunks[lo+i].Embedding = embeddings[i]
		}
	}

	if err := in.writer.BulkInsert(ctx, chunks); err != nil {
		return 0, fmt.Errorf("storing chunks: %w", err)
	}

	in.logger.Info("document_ingested",
		slog.String("source_uri", sourceURI),
		slog.Int("chunk_count", len(chunks)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return len(chunks), nil
}
