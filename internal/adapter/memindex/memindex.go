package memindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"agentic-rag/internal/domain"

	"github.com/blevesearch/bleve/v2"
)

// MemIndex is an in-process chunk store: brute-force cosine similarity for
// the dense signal and a bleve memory index (BM25-style scoring) for the
// sparse signal. Intended for the CLI, tests, and single-node deployments
// without Postgres.
type MemIndex struct {
	mu     sync.RWMutex
	chunks map[string]*domain.Chunk
	sparse bleve.Index
}

type sparseDoc struct {
	Text  string `json:"text"`
	Title string `json:"title"`
}

func New() (*MemIndex, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("creating bleve memory index: %w", err)
	}
	return &MemIndex{
		chunks: make(map[string]*domain.Chunk),
		sparse: idx,
	}, nil
}

// BulkInsert stores the chunks and indexes their text for keyword search.
func (m *MemIndex) BulkInsert(ctx context.Context, chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := m.sparse.NewBatch()
	for i := range chunks {
		c := chunks[i]
		if c.ID == "" {
			return fmt.Errorf("%w: chunk without id", domain.ErrInvalidInput)
		}
		if err := batch.Index(c.ID, sparseDoc{Text: c.Text, Title: c.Title}); err != nil {
			return fmt.Errorf("indexing chunk %s: %w", c.ID, err)
		}
		m.chunks[c.ID] = &c
	}
	if err := m.sparse.Batch(batch); err != nil {
		return fmt.Errorf("committing sparse batch: %w", err)
	}
	_ = ctx
	return nil
}

// Search scans all chunks and ranks them by cosine similarity. Ordering is
// deterministic: score descending, then chunk ordinal, then ID.
func (m *MemIndex) Search(ctx context.Context, vector []float32, topN int) ([]domain.SearchResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", domain.ErrInvalidInput)
	}

	m.mu.RLock()
	scored := make([]domain.SearchResult, 0, len(m.chunks))
	for _, c := range m.chunks {
		if len(c.Embedding) != len(vector) {
			continue
		}
		scored = append(scored, domain.SearchResult{
			Chunk: c,
			Score: cosine(vector, c.Embedding),
		})
	}
	m.mu.RUnlock()

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Chunk.Ordinal != scored[j].Chunk.Ordinal {
			return scored[i].Chunk.Ordinal < scored[j].Chunk.Ordinal
		}
		return scored[i].Chunk.ID < scored[j].Chunk.ID
	})
	if topN > 0 && len(scored) > topN {
		scored = scored[:topN]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}
	return scored, nil
}

// SearchSparse runs a keyword match query over the indexed text.
func (m *MemIndex) SearchSparse(ctx context.Context, query string, topN int) ([]domain.SearchResult, error) {
	match := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(match)
	if topN > 0 {
		req.Size = topN
	}

	res, err := m.sparse.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("sparse search: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]domain.SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		chunk, ok := m.chunks[hit.ID]
		if !ok {
			continue
		}
		results = append(results, domain.SearchResult{
			Chunk: chunk,
			Score: hit.Score,
			Rank:  len(results) + 1,
		})
	}
	return results, nil
}

// Len returns the number of stored chunks.
func (m *MemIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var (
	_ domain.Index       = (*MemIndex)(nil)
	_ domain.ChunkWriter = (*MemIndex)(nil)
)
