package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	// MinSegmentLength is the minimum segment length in runes. Shorter
	// paragraphs are merged with their neighbours.
	MinSegmentLength = 80
	// MaxSegmentLength is the maximum segment length in runes. Longer
	// paragraphs are split at sentence boundaries.
	MaxSegmentLength = 1000
)

// Segment is one piece of a source document produced by the chunker, before
// it is embedded and stored as a Chunk.
type Segment struct {
	Ordinal     int
	Text        string
	StartOffset int
	EndOffset   int
}

// Chunker splits source text into indexable segments.
type Chunker interface {
	Split(body string) []Segment
}

type paragraphChunker struct{}

// NewChunker returns the default paragraph-based chunker.
func NewChunker() Chunker {
	return &paragraphChunker{}
}

// Split breaks the body at blank lines, merges paragraphs shorter than
// MinSegmentLength with their neighbours, and splits paragraphs longer than
// MaxSegmentLength at sentence boundaries.
func (c *paragraphChunker) Split(body string) []Segment {
	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	var paragraphs []string
	for _, part := range strings.Split(normalized, "\n\n") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}

	merged := mergeShortParagraphs(paragraphs)
	pieces := splitLongParagraphs(merged)

	segments := make([]Segment, 0, len(pieces))
	offset := 0
	for i, text := range pieces {
		length := utf8.RuneCountInString(text)
		segments = append(segments, Segment{
			Ordinal:     i,
			Text:        text,
			StartOffset: offset,
			EndOffset:   offset + length,
		})
		offset += length
	}
	return segments
}

// mergeShortParagraphs folds paragraphs below MinSegmentLength into an
// accumulator that is attached to the nearest long paragraph, so no emitted
// piece is short unless the whole document is.
func mergeShortParagraphs(paragraphs []string) []string {
	var merged []string
	var pending string

	for _, para := range paragraphs {
		if utf8.RuneCountInString(para) >= MinSegmentLength {
			if pending != "" {
				if utf8.RuneCountInString(pending) < MinSegmentLength {
					para = pending + "\n\n" + para
				} else {
					merged = append(merged, pending)
				}
				pending = ""
			}
			merged = append(merged, para)
			continue
		}
		if pending == "" {
			pending = para
		} else {
			pending = pending + "\n\n" + para
		}
	}

	if pending != "" {
		if utf8.RuneCountInString(pending) < MinSegmentLength && len(merged) > 0 {
			merged[len(merged)-1] = merged[len(merged)-1] + "\n\n" + pending
		} else {
			merged = append(merged, pending)
		}
	}
	return merged
}

// splitLongParagraphs cuts paragraphs above MaxSegmentLength at sentence
// boundaries, packing sentences greedily up to the limit.
func splitLongParagraphs(paragraphs []string) []string {
	var result []string
	for _, para := range paragraphs {
		if utf8.RuneCountInString(para) <= MaxSegmentLength {
			result = append(result, para)
			continue
		}

		var piece string
		for _, sentence := range splitSentences(para) {
			pieceLen := utf8.RuneCountInString(piece)
			sentenceLen := utf8.RuneCountInString(sentence)
			if pieceLen > 0 && pieceLen+1+sentenceLen > MaxSegmentLength {
				result = append(result, piece)
				piece = sentence
				continue
			}
			if piece != "" {
				piece += " "
			}
			piece += sentence
		}
		if piece != "" {
			result = append(result, piece)
		}
	}
	return result
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '。' {
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' {
				if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
					sentences = append(sentences, trimmed)
				}
				current.Reset()
			}
		}
	}
	if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
		sentences = append(sentences, trimmed)
	}
	return sentences
}
