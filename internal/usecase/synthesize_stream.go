package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"agentic-rag/internal/domain"
)

// answerStreamParser incrementally extracts the "answer" string value from a
// JSON object arriving in arbitrary fragments, so its content can be emitted
// token by token before the object is complete.
type answerStreamParser struct {
	buf        strings.Builder
	scanOffset int
	inAnswer   bool
	escaped    bool
	done       bool
	answer     strings.Builder
}

const answerKey = `"answer"`

// Feed appends a fragment and returns the newly available answer text.
func (p *answerStreamParser) Feed(fragment string) string {
	p.buf.WriteString(fragment)
	if p.done {
		return ""
	}

	data := p.buf.String()

	if !p.inAnswer {
		idx := strings.Index(data[p.scanOffset:], answerKey)
		if idx < 0 {
			// Keep a tail window so a key split across fragments still matches.
			if tail := len(data) - len(answerKey); tail > p.scanOffset {
				p.scanOffset = tail
			}
			return ""
		}
		pos := p.scanOffset + idx + len(answerKey)
		// Step over the colon and whitespace to the opening quote.
		for pos < len(data) {
			c := data[pos]
			if c == '"' {
				p.inAnswer = true
				p.scanOffset = pos + 1
				break
			}
			if c == ':' || c == ' ' || c == '\t' || c == '\n' || c == '\r' {
				pos++
				continue
			}
			// Not a string value. Give up on streaming extraction.
			p.done = true
			return ""
		}
		if !p.inAnswer {
			return ""
		}
	}

	var emitted strings.Builder
	for p.scanOffset < len(data) {
		c := data[p.scanOffset]
		p.scanOffset++
		if p.escaped {
			p.escaped = false
			switch c {
			case 'n':
				emitted.WriteByte('\n')
			case 't':
				emitted.WriteByte('\t')
			case 'r':
				emitted.WriteByte('\r')
			case '"', '\\', '/':
				emitted.WriteByte(c)
			default:
				// Unicode escapes and anything else pass through verbatim.
				emitted.WriteByte('\\')
				emitted.WriteByte(c)
			}
			continue
		}
		if c == '\\' {
			p.escaped = true
			continue
		}
		if c == '"' {
			p.done = true
			break
		}
		emitted.WriteByte(c)
	}
	p.answer.WriteString(emitted.String())
	return emitted.String()
}

// Raw returns everything fed so far.
func (p *answerStreamParser) Raw() string { return p.buf.String() }

// Answer returns the extracted answer text, complete only once Done.
func (p *answerStreamParser) Answer() string { return p.answer.String() }

// Done reports whether the answer value has been fully consumed.
func (p *answerStreamParser) Done() bool { return p.done }

// SynthesizeStream generates the answer over the LLM streaming interface,
// calling emit for each extracted answer fragment. emit returns false to
// stop (consumer gone).
//
// Returns the validated result plus whether any token was emitted. Failures
// before the first emit fall back internally to one-shot Synthesize, so the
// caller streams the final text itself. Failures after tokens have been
// emitted are fatal: partial output cannot be retracted, so no retry.
func (s *Synthesizer) SynthesizeStream(ctx context.Context, query string, block *domain.ContextBlock, attempts *int, emit func(string) bool) (*SynthesisResult, bool, error) {
	prompt, err := s.builder.Build(query, block)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrSynthesisFailed, err)
	}

	chunks, errCh, err := s.llm.GenerateStream(ctx, prompt, s.maxTokens)
	if err != nil {
		s.logger.Warn("stream_setup_failed_falling_back",
			slog.String("error", err.Error()))
		result, serr := s.Synthesize(ctx, query, block, attempts)
		return result, false, serr
	}
	if attempts != nil {
		*attempts++
	}

	parser := &answerStreamParser{}
	emittedAny := false

	for chunk := range chunks {
		if text := parser.Feed(chunk.Text); text != "" {
			if !emit(text) {
				return nil, emittedAny, fmt.Errorf("%w: consumer closed stream", domain.ErrSynthesisFailed)
			}
			emittedAny = true
		}
	}
	if streamErr := <-errCh; streamErr != nil {
		if !emittedAny {
			s.logger.Warn("stream_failed_before_output_falling_back",
				slog.String("error", streamErr.Error()))
			result, serr := s.Synthesize(ctx, query, block, attempts)
			return result, false, serr
		}
		return nil, true, fmt.Errorf("%w: stream broke mid-answer: %v", domain.ErrSynthesisFailed, streamErr)
	}

	raw := parser.Raw()
	if strings.TrimSpace(raw) == "" {
		result, serr := s.Synthesize(ctx, query, block, attempts)
		return result, false, serr
	}

	parsed, valErr := s.validator.Validate(raw, block)
	if valErr != nil {
		if !emittedAny {
			// Nothing shown yet, a clean regeneration is still possible.
			s.logger.Warn("stream_output_invalid_falling_back",
				slog.String("error", valErr.Error()))
			result, serr := s.Synthesize(ctx, query, block, attempts)
			return result, false, serr
		}
		// Tokens are already on the wire. Salvage what was extracted.
		answer := parser.Answer()
		if answer == "" {
			answer = raw
		}
		salvaged := s.validator.Salvage(answer, block)
		return s.fromParsed(salvaged, true, "streamed output invalid, salvaged via citation markers"), true, nil
	}

	if emittedAny && parsed.Source == AnswerSourceStructured && !parsed.Fallback {
		// The extractor already surfaced the answer text; keep it consistent
		// with what was emitted.
		if extracted := parser.Answer(); extracted != "" {
			parsed.Answer = strings.TrimSpace(extracted)
		}
	}
	return s.fromParsed(parsed, false, ""), emittedAny, nil
}
