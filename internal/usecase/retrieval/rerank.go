package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"agentic-rag/internal/domain"
)

// RerankConfig holds reranking stage parameters.
type RerankConfig struct {
	// RerankK is the number of candidates kept after reranking.
	RerankK int
	Timeout time.Duration
}

// Rerank applies cross-encoder scoring to the candidates. The sort is
// stable: candidates with equal rerank scores keep their pre-rerank
// relative order. Scoring-model failure is non-fatal; the retrieval
// ordering passes through and a degradation is returned.
func Rerank(
	ctx context.Context,
	reranker domain.Reranker,
	query string,
	candidates []domain.Candidate,
	cfg RerankConfig,
	logger *slog.Logger,
) ([]domain.Candidate, *domain.Degradation) {
	if reranker == nil || len(candidates) == 0 {
		return capK(candidates, cfg.RerankK), nil
	}

	start := time.Now()

	request := make([]domain.RerankCandidate, len(candidates))
	for i, cand := range candidates {
		request[i] = domain.RerankCandidate{
			ID:      cand.Chunk.ID,
			Content: cand.Chunk.Text,
			Score:   cand.CombinedScore,
		}
	}

	rctx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	results, err := reranker.Rerank(rctx, query, request)
	if err != nil {
		logger.Warn("reranking_failed_using_retrieval_order",
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		return capK(candidates, cfg.RerankK), &domain.Degradation{
			Stage:  domain.StageReranking,
			Reason: "reranker unavailable, retrieval order kept: " + err.Error(),
		}
	}

	scores := make(map[string]float64, len(results))
	for _, r := range results {
		scores[r.ID] = r.Score
	}

	out := make([]domain.Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		if score, ok := scores[out[i].Chunk.ID]; ok {
			s := score
			out[i].RerankScore = &s
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EffectiveScore() > out[j].EffectiveScore()
	})

	logger.Info("reranking_completed",
		slog.Int("candidate_count", len(candidates)),
		slog.String("model", reranker.ModelName()),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return capK(out, cfg.RerankK), nil
}

func capK(candidates []domain.Candidate, k int) []domain.Candidate {
	if k > 0 && len(candidates) > k {
		return candidates[:k]
	}
	return candidates
}
