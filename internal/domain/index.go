package domain

import "context"

// SearchResult is a chunk ranked against a query by one retrieval signal.
// Rank is 1-based within the signal's result list (used for RRF fusion).
type SearchResult struct {
	Chunk *Chunk
	Score float64
	Rank  int
}

// Index is the read-mostly chunk store queried by the retriever. It is safe
// for unlimited concurrent reads; a request never mutates it.
type Index interface {
	// Search performs dense vector search and returns up to topN results
	// ordered by non-increasing similarity.
	Search(ctx context.Context, vector []float32, topN int) ([]SearchResult, error)

	// SearchSparse performs keyword (BM25-style) search and returns up to
	// topN results ordered by non-increasing relevance.
	SearchSparse(ctx context.Context, query string, topN int) ([]SearchResult, error)
}

// ChunkWriter is the ingestion-side counterpart of Index. The pipeline core
// never writes; only the ingestion collaborator does.
type ChunkWriter interface {
	BulkInsert(ctx context.Context, chunks []Chunk) error
}
