package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"agentic-rag/internal/domain"
	"agentic-rag/internal/infra/resilience"

	"golang.org/x/sync/errgroup"
)

// RetrieveConfig holds hybrid retrieval parameters.
type RetrieveConfig struct {
	// TopK is the number of candidates returned after fusion.
	TopK int
	// SearchLimit is the per-signal candidate pool queried before fusion.
	SearchLimit int
	// RRFK is the reciprocal-rank-fusion constant (typically 60).
	RRFK float64
}

// Retrieve embeds the query, runs dense and sparse search in parallel, and
// fuses both signals with reciprocal-rank fusion. The result is ordered by
// non-increasing CombinedScore, ties broken by chunk insertion order.
//
// Embedding failure past the retry budget is fatal (the request cannot be
// grounded); sparse search failure degrades to dense-only.
func Retrieve(
	ctx context.Context,
	encoder domain.VectorEncoder,
	index domain.Index,
	query string,
	cfg RetrieveConfig,
	policy resilience.RetryPolicy,
	attempts *int,
	logger *slog.Logger,
) ([]domain.Candidate, []domain.Degradation, error) {
	start := time.Now()

	var vector []float32
	err := policy.Execute(ctx, logger, "embed_query", attempts, func(ctx context.Context) error {
		embeddings, err := encoder.Encode(ctx, []string{query})
		if err != nil {
			return err
		}
		if len(embeddings) == 0 || len(embeddings[0]) == 0 {
			return fmt.Errorf("%w: empty embedding response", domain.ErrProviderUnavailable)
		}
		vector = embeddings[0]
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: query embedding failed: %v", domain.ErrRetrievalUnavailable, err)
	}

	var dense, sparse []domain.SearchResult
	var sparseErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results, err := index.Search(gctx, vector, cfg.SearchLimit)
		if err != nil {
			return err
		}
		dense = results
		return nil
	})
	g.Go(func() error {
		results, err := index.SearchSparse(gctx, query, cfg.SearchLimit)
		if err != nil {
			// Sparse is the secondary signal; its loss is not fatal.
			sparseErr = err
			return nil
		}
		sparse = results
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("%w: dense search failed: %v", domain.ErrRetrievalUnavailable, err)
	}

	var degradations []domain.Degradation
	if sparseErr != nil {
		logger.Warn("sparse_search_failed_dense_only",
			slog.String("error", sparseErr.Error()))
		degradations = append(degradations, domain.Degradation{
			Stage:  domain.StageRetrieving,
			Reason: "sparse search unavailable, dense-only results: " + sparseErr.Error(),
		})
	}

	candidates := fuse(dense, sparse, cfg.RRFK)
	if cfg.TopK > 0 && len(candidates) > cfg.TopK {
		candidates = candidates[:cfg.TopK]
	}

	logger.Info("retrieval_completed",
		slog.Int("dense_count", len(dense)),
		slog.Int("sparse_count", len(sparse)),
		slog.Int("fused_count", len(candidates)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return candidates, degradations, nil
}

// fuse merges the two ranked lists with reciprocal-rank fusion:
// CombinedScore = sum over signals of 1/(k + rank). The rule is monotonic in
// both ranks and independent of raw score scales.
func fuse(dense, sparse []domain.SearchResult, rrfK float64) []domain.Candidate {
	if rrfK <= 0 {
		rrfK = 60
	}

	byID := make(map[string]*domain.Candidate, len(dense)+len(sparse))
	for i, res := range dense {
		c, ok := byID[res.Chunk.ID]
		if !ok {
			c = &domain.Candidate{Chunk: res.Chunk}
			byID[res.Chunk.ID] = c
		}
		c.DenseScore = res.Score
		c.CombinedScore += 1.0 / (rrfK + float64(i+1))
	}
	for i, res := range sparse {
		c, ok := byID[res.Chunk.ID]
		if !ok {
			c = &domain.Candidate{Chunk: res.Chunk}
			byID[res.Chunk.ID] = c
		}
		c.SparseScore = res.Score
		c.CombinedScore += 1.0 / (rrfK + float64(i+1))
	}

	out := make([]domain.Candidate, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CombinedScore != out[j].CombinedScore {
			return out[i].CombinedScore > out[j].CombinedScore
		}
		if out[i].Chunk.Ordinal != out[j].Chunk.Ordinal {
			return out[i].Chunk.Ordinal < out[j].Chunk.Ordinal
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})
	return out
}
