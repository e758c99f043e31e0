package domain

import "context"

// RerankCandidate represents a chunk submitted for cross-encoder reranking.
type RerankCandidate struct {
	// ID is the chunk identifier, used to map results back.
	ID string
	// Content is the text scored against the query.
	Content string
	// Score is the initial retrieval score (for logging).
	Score float64
}

// RerankResult is a reranked chunk with its cross-encoder relevance score.
type RerankResult struct {
	ID    string
	Score float64
}

// Reranker scores a small candidate set against the query with a
// cross-encoder model. If an error occurs, callers fall back to the original
// retrieval ordering.
type Reranker interface {
	// Rerank returns results sorted by score descending. One batched call
	// covers all candidates.
	Rerank(ctx context.Context, query string, candidates []RerankCandidate) ([]RerankResult, error)

	// ModelName returns the model identifier for logging.
	ModelName() string
}
