package domain

// Candidate is a chunk scored against a specific query. Created by the
// retriever, mutated only by the reranker (which sets RerankScore), and
// discarded when the request completes.
type Candidate struct {
	Chunk       *Chunk
	DenseScore  float64
	SparseScore float64
	// CombinedScore is a deterministic monotonic fusion of the dense and
	// sparse rank positions (reciprocal-rank fusion).
	CombinedScore float64
	// RerankScore is nil until the rerank stage has scored the candidate.
	RerankScore *float64
}

// EffectiveScore returns the rerank score when present, otherwise the
// combined retrieval score.
func (c Candidate) EffectiveScore() float64 {
	if c.RerankScore != nil {
		return *c.RerankScore
	}
	return c.CombinedScore
}

// ContextEntry is one candidate selected into the final prompt, annotated
// with its 1-based citation index and measured token cost.
type ContextEntry struct {
	Index     int
	Candidate Candidate
	Tokens    int
	// Truncated marks the single oversized-chunk exception: the entry's text
	// was cut to fit the budget instead of being dropped whole.
	Truncated bool
	// Text is the chunk text actually placed in the prompt. Equal to
	// Candidate.Chunk.Text unless Truncated.
	Text string
}

// ContextBlock is the ordered, token-bounded context handed to synthesis.
type ContextBlock struct {
	Entries     []ContextEntry
	TotalTokens int
	// ForcedTruncation is set when zero candidates fit the budget and the
	// best-ranked one was force-included truncated.
	ForcedTruncation bool
}

// Entry returns the entry with the given citation index, or nil.
func (b *ContextBlock) Entry(index int) *ContextEntry {
	for i := range b.Entries {
		if b.Entries[i].Index == index {
			return &b.Entries[i]
		}
	}
	return nil
}

// Citation points a citation index at the chunk backing it. Snippet is a
// bounded-length excerpt used for UI preview.
type Citation struct {
	Index   int    `json:"index"`
	ChunkID string `json:"chunk_id"`
	Snippet string `json:"snippet"`
}
