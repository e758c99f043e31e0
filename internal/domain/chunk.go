package domain

// Chunk is a stored unit of source text with its embedding and metadata.
// Chunks are immutable once indexed; downstream stages reference them and
// never copy-and-mutate.
type Chunk struct {
	ID        string
	Ordinal   int // insertion order within the index, used for deterministic tie-breaks
	Text      string
	Embedding []float32
	SourceURI string
	Title     string
	// StartOffset/EndOffset locate the chunk within its source document.
	StartOffset int
	EndOffset   int
}
