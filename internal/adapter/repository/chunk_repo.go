package repository

import (
	"context"
	"fmt"

	"agentic-rag/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository is the Postgres-backed chunk store: pgvector cosine
// distance for the dense signal, full-text search for the sparse signal.
type ChunkRepository struct {
	pool *pgxpool.Pool
	tx   *TxManager
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool, tx: NewTxManager(pool)}
}

type dbExecutor interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func (r *ChunkRepository) executor(ctx context.Context) dbExecutor {
	if tx := ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// BulkInsert replaces the chunks of every source present in the batch and
// inserts the new rows, all in one transaction. Re-ingesting a document is
// therefore idempotent.
func (r *ChunkRepository) BulkInsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	sources := make([]string, 0, len(chunks))
	seen := make(map[string]bool)
	for _, c := range chunks {
		if !seen[c.SourceURI] {
			seen[c.SourceURI] = true
			sources = append(sources, c.SourceURI)
		}
	}

	rows := make([][]interface{}, len(chunks))
	for i, c := range chunks {
		rows[i] = []interface{}{
			c.ID,
			c.SourceURI,
			c.Title,
			c.Ordinal,
			c.Text,
			c.StartOffset,
			c.EndOffset,
			pgvector.NewVector(c.Embedding),
		}
	}

	return r.tx.RunInTx(ctx, func(ctx context.Context) error {
		exec := r.executor(ctx)
		if _, err := exec.Exec(ctx, `DELETE FROM chunks WHERE source_uri = ANY($1)`, sources); err != nil {
			return fmt.Errorf("deleting stale chunks: %w", err)
		}
		_, err := exec.CopyFrom(
			ctx,
			pgx.Identifier{"chunks"},
			[]string{"id", "source_uri", "title", "ordinal", "content", "start_offset", "end_offset", "embedding"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("bulk inserting chunks: %w", err)
		}
		return nil
	})
}

// Both search queries break distance and rank ties on (ordinal, id) so the
// candidate order is stable across runs.
const (
	denseSearchQuery = `
		SELECT id, source_uri, title, ordinal, content, start_offset, end_offset,
		       1 - (embedding <=> $1) AS score
		FROM chunks
		ORDER BY embedding <=> $1, ordinal ASC, id ASC
		LIMIT $2
	`
	sparseSearchQuery = `
		SELECT id, source_uri, title, ordinal, content, start_offset, end_offset,
		       ts_rank_cd(tsv, q) AS score
		FROM chunks, websearch_to_tsquery('english', $1) AS q
		WHERE tsv @@ q
		ORDER BY score DESC, ordinal ASC, id ASC
		LIMIT $2
	`
)

// Search performs dense vector search ordered by cosine distance. The
// returned score is 1 - distance, so higher is more similar.
func (r *ChunkRepository) Search(ctx context.Context, vector []float32, topN int) ([]domain.SearchResult, error) {
	rows, err := r.executor(ctx).Query(ctx, denseSearchQuery, pgvector.NewVector(vector), topN)
	if err != nil {
		return nil, fmt.Errorf("%w: dense search query: %v", domain.ErrRetrievalUnavailable, err)
	}
	defer rows.Close()
	return scanResults(rows)
}

// SearchSparse performs full-text search ranked with ts_rank_cd.
func (r *ChunkRepository) SearchSparse(ctx context.Context, query string, topN int) ([]domain.SearchResult, error) {
	rows, err := r.executor(ctx).Query(ctx, sparseSearchQuery, query, topN)
	if err != nil {
		return nil, fmt.Errorf("sparse search query: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

func scanResults(rows pgx.Rows) ([]domain.SearchResult, error) {
	var results []domain.SearchResult
	for rows.Next() {
		var c domain.Chunk
		var score float64
		if err := rows.Scan(&c.ID, &c.SourceURI, &c.Title, &c.Ordinal, &c.Text, &c.StartOffset, &c.EndOffset, &score); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		results = append(results, domain.SearchResult{
			Chunk: &c,
			Score: score,
			Rank:  len(results) + 1,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return results, nil
}

var (
	_ domain.Index       = (*ChunkRepository)(nil)
	_ domain.ChunkWriter = (*ChunkRepository)(nil)
)
