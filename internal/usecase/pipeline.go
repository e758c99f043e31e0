package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"agentic-rag/internal/domain"
	"agentic-rag/internal/infra/resilience"
	"agentic-rag/internal/usecase/retrieval"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const noContextNotice = "No relevant sources were found for this question, so no grounded answer can be given."

// Config holds all pipeline tuning knobs. Zero values fall back to the
// documented defaults via withDefaults.
type Config struct {
	TopK                int
	RerankK             int
	TokenBudget         int
	SearchLimit         int
	RRFK                float64
	SnippetMaxRunes     int
	SynthesisMaxTokens  int
	PerStageTimeout     time.Duration
	RequestTimeout      time.Duration
	MaxRetriesRetrieval int
	MaxRetriesSynthesis int
	InitialBackoff      time.Duration
	MaxBackoff          time.Duration
	SuppressUngrounded  bool
	CacheSize           int
	CacheTTL            time.Duration
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = 20
	}
	if c.RerankK <= 0 {
		c.RerankK = 5
	}
	if c.TokenBudget <= 0 {
		c.TokenBudget = 3000
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = c.TopK * 3
	}
	if c.RRFK <= 0 {
		c.RRFK = 60
	}
	if c.SnippetMaxRunes <= 0 {
		c.SnippetMaxRunes = 200
	}
	if c.SynthesisMaxTokens <= 0 {
		c.SynthesisMaxTokens = 1024
	}
	if c.PerStageTimeout <= 0 {
		c.PerStageTimeout = 30 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 120 * time.Second
	}
	if c.MaxRetriesRetrieval <= 0 {
		c.MaxRetriesRetrieval = 3
	}
	if c.MaxRetriesSynthesis <= 0 {
		c.MaxRetriesSynthesis = 2
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 256
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 10 * time.Minute
	}
	return c
}

type cachedRun struct {
	Answer       string
	Citations    []domain.Citation
	Verdict      domain.SafetyVerdict
	Rationale    string
	Degradations []domain.Degradation
}

// Pipeline runs the full agentic retrieve-and-synthesize flow for one query
// at a time. It is safe for concurrent use; each Run owns its own state.
type Pipeline struct {
	encoder  domain.VectorEncoder
	index    domain.Index
	reranker domain.Reranker
	rewriter *QueryRewriter
	synth    *Synthesizer
	safety   *SafetyValidator
	counter  retrieval.TokenCounter
	cache    *expirable.LRU[string, cachedRun]
	cfg      Config
	logger   *slog.Logger
}

// New wires a pipeline. reranker and judge may be nil; those stages then
// pass through (rerank) or report inconclusive (safety).
func New(
	encoder domain.VectorEncoder,
	index domain.Index,
	reranker domain.Reranker,
	llm domain.LLMClient,
	judge domain.LLMClient,
	cfg Config,
	logger *slog.Logger,
) *Pipeline {
	cfg = cfg.withDefaults()

	synthPolicy := resilience.RetryPolicy{
		MaxAttempts:    cfg.MaxRetriesSynthesis,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
	}

	return &Pipeline{
		encoder:  encoder,
		index:    index,
		reranker: reranker,
		rewriter: NewQueryRewriter(llm, logger),
		synth:    NewSynthesizer(llm, NewXMLPromptBuilder(), synthPolicy, cfg.SynthesisMaxTokens, logger),
		safety:   NewSafetyValidator(judge, SafetyConfig{SuppressUngrounded: cfg.SuppressUngrounded}, logger),
		counter:  retrieval.NewTokenCounter(logger),
		cache:    expirable.NewLRU[string, cachedRun](cfg.CacheSize, nil, cfg.CacheTTL),
		cfg:      cfg,
		logger:   logger,
	}
}

// Run executes the pipeline and returns the event stream. The channel
// always terminates with exactly one done or failed event and is closed
// afterwards. Cancelling ctx abandons the run.
func (p *Pipeline) Run(ctx context.Context, rawQuery string, history []domain.Turn, correlationID string) <-chan Event {
	events := make(chan Event, 16)

	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	go func() {
		defer close(events)
		p.run(ctx, events, rawQuery, history, correlationID)
	}()

	return events
}

func (p *Pipeline) run(ctx context.Context, events chan<- Event, rawQuery string, history []domain.Turn, correlationID string) {
	logger := p.logger.With(slog.String("correlation_id", correlationID))
	// Delivery prefers the buffer over cancellation: a draft that exists when
	// the request deadline fires is still handed to the consumer rather than
	// discarded. Only a full buffer (consumer gone) makes send observe ctx.
	send := func(e Event) bool {
		select {
		case events <- e:
			return true
		default:
		}
		select {
		case events <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// Input validation happens before any stage runs or any capability is
	// touched.
	if strings.TrimSpace(rawQuery) == "" {
		logger.Warn("rejected_empty_query")
		send(failedEvent(domain.ErrorKindInvalidInput, "query must not be empty"))
		return
	}

	key := cacheKey(rawQuery, history)
	if cached, ok := p.cache.Get(key); ok {
		logger.Info("answer_cache_hit")
		p.replay(send, correlationID, cached)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	state := domain.NewAgentState(correlationID, rawQuery, history)

	// Rewriting. Never fatal.
	p.stage(ctx, state, domain.StageRewriting, func(sctx context.Context) {
		rewritten, degraded, reason := p.rewriter.Rewrite(sctx, rawQuery, history)
		state.RewrittenQuery = rewritten
		if degraded {
			state.RecordDegradation(domain.StageRewriting, reason)
			send(degradedEvent(domain.StageRewriting, reason))
		}
	})

	// Retrieval. Exhausting the retry budget here is fatal.
	var candidates []domain.Candidate
	var retrieveErr error
	p.stage(ctx, state, domain.StageRetrieving, func(sctx context.Context) {
		attempts := 0
		policy := resilience.RetryPolicy{
			MaxAttempts:    p.cfg.MaxRetriesRetrieval,
			InitialBackoff: p.cfg.InitialBackoff,
			MaxBackoff:     p.cfg.MaxBackoff,
		}
		var degradations []domain.Degradation
		candidates, degradations, retrieveErr = retrieval.Retrieve(sctx, p.encoder, p.index, state.RewrittenQuery, retrieval.RetrieveConfig{
			TopK:        p.cfg.TopK,
			SearchLimit: p.cfg.SearchLimit,
			RRFK:        p.cfg.RRFK,
		}, policy, &attempts, logger)
		state.AttemptCounts[domain.StageRetrieving] = attempts
		for _, d := range degradations {
			state.RecordDegradation(d.Stage, d.Reason)
			send(degradedEvent(d.Stage, d.Reason))
		}
	})
	if retrieveErr != nil {
		logger.Error("retrieval_failed", slog.String("error", retrieveErr.Error()))
		send(failedEvent(domain.KindOf(retrieveErr), retrieveErr.Error()))
		return
	}

	// Zero hits is an answerable outcome, not a failure: the caller gets an
	// explicit no-context notice instead of an ungrounded hallucination.
	if len(candidates) == 0 {
		logger.Info("no_candidates_found")
		reason := "no chunks matched the query"
		state.RecordDegradation(domain.StageRetrieving, reason)
		if !send(degradedEvent(domain.StageRetrieving, reason)) {
			return
		}
		if !send(tokenEvent(noContextNotice)) {
			return
		}
		result := cachedRun{
			Answer:       noContextNotice,
			Verdict:      domain.VerdictInconclusive,
			Rationale:    "no context retrieved",
			Degradations: state.Degradations,
		}
		p.cache.Add(key, result)
		send(p.doneEvent(correlationID, result, state))
		return
	}
	state.Candidates = candidates

	// Reranking. Never fatal.
	p.stage(ctx, state, domain.StageReranking, func(sctx context.Context) {
		reranked, degradation := retrieval.Rerank(sctx, p.reranker, state.RewrittenQuery, candidates, retrieval.RerankConfig{
			RerankK: p.cfg.RerankK,
			Timeout: p.cfg.PerStageTimeout,
		}, logger)
		candidates = reranked
		if degradation != nil {
			state.RecordDegradation(degradation.Stage, degradation.Reason)
			send(degradedEvent(degradation.Stage, degradation.Reason))
		}
	})
	state.Candidates = candidates

	// Context assembly. Pure and deterministic.
	var block *domain.ContextBlock
	p.stage(ctx, state, domain.StageAssemblingContext, func(context.Context) {
		block = retrieval.Assemble(candidates, p.counter, retrieval.AssembleConfig{
			TokenBudget: p.cfg.TokenBudget,
		}, logger)
		if block.ForcedTruncation {
			reason := "no candidate fit the token budget, best candidate truncated"
			state.RecordDegradation(domain.StageAssemblingContext, reason)
			send(degradedEvent(domain.StageAssemblingContext, reason))
		}
	})
	state.Context = block

	// Synthesis, streamed. Fatal when the capability is exhausted or the
	// stream breaks after partial output.
	var synthesis *SynthesisResult
	var emittedAny bool
	var synthErr error
	p.stage(ctx, state, domain.StageSynthesizing, func(sctx context.Context) {
		attempts := 0
		synthesis, emittedAny, synthErr = p.synth.SynthesizeStream(sctx, state.RewrittenQuery, block, &attempts, func(text string) bool {
			return send(tokenEvent(text))
		})
		state.AttemptCounts[domain.StageSynthesizing] = attempts
	})
	if synthErr != nil {
		logger.Error("synthesis_failed", slog.String("error", synthErr.Error()))
		send(failedEvent(domain.KindOf(synthErr), synthErr.Error()))
		return
	}
	if synthesis.Degraded {
		state.RecordDegradation(domain.StageSynthesizing, synthesis.DegradedReason)
		send(degradedEvent(domain.StageSynthesizing, synthesis.DegradedReason))
	}
	state.DraftAnswer = synthesis.Answer

	// Safety. Never fatal; judge loss yields inconclusive.
	var finalAnswer, appended string
	p.stage(ctx, state, domain.StageValidating, func(sctx context.Context) {
		state.Safety = p.safety.Validate(sctx, synthesis.Answer, block)
		finalAnswer, appended = p.safety.Apply(synthesis.Answer, state.Safety)
	})

	// Streaming epilogue: whatever text the consumer has not seen yet goes
	// out as tokens before the terminal event.
	if !emittedAny {
		if !send(tokenEvent(finalAnswer)) {
			return
		}
	} else if appended != "" {
		if !send(tokenEvent(appended)) {
			return
		}
	}

	citations := p.buildCitations(synthesis.Citations, block)
	state.Citations = citations
	for _, c := range citations {
		if !send(citationEvent(c)) {
			return
		}
	}

	result := cachedRun{
		Answer:       finalAnswer,
		Citations:    citations,
		Verdict:      state.Safety.Verdict,
		Rationale:    state.Safety.Rationale,
		Degradations: state.Degradations,
	}
	p.cache.Add(key, result)

	logger.Info("pipeline_completed",
		slog.String("verdict", string(state.Safety.Verdict)),
		slog.Int("citation_count", len(citations)),
		slog.Int("degradation_count", len(state.Degradations)))
	send(p.doneEvent(correlationID, result, state))
}

// stage runs fn under the per-stage timeout and records its wall time.
func (p *Pipeline) stage(ctx context.Context, state *domain.AgentState, stage domain.Stage, fn func(context.Context)) {
	sctx, cancel := context.WithTimeout(ctx, p.cfg.PerStageTimeout)
	defer cancel()
	start := time.Now()
	fn(sctx)
	state.RecordTiming(stage, time.Since(start))
}

func (p *Pipeline) buildCitations(indices []int, block *domain.ContextBlock) []domain.Citation {
	citations := make([]domain.Citation, 0, len(indices))
	for _, index := range indices {
		entry := block.Entry(index)
		if entry == nil {
			continue
		}
		citations = append(citations, domain.Citation{
			Index:   index,
			ChunkID: entry.Candidate.Chunk.ID,
			Snippet: retrieval.Snippet(entry.Text, p.cfg.SnippetMaxRunes),
		})
	}
	return citations
}

func (p *Pipeline) doneEvent(correlationID string, result cachedRun, state *domain.AgentState) Event {
	done := &DoneEvent{
		CorrelationID: correlationID,
		Answer:        result.Answer,
		Citations:     result.Citations,
		Verdict:       result.Verdict,
		Rationale:     result.Rationale,
		Degradations:  result.Degradations,
	}
	if state != nil {
		done.StageTimings = state.StageTimings
	}
	return Event{Kind: EventKindDone, Done: done}
}

// replay serves a cached answer as the same event shape a fresh run
// produces: one token carrying the full text, the citations, then done.
func (p *Pipeline) replay(send func(Event) bool, correlationID string, cached cachedRun) {
	if !send(tokenEvent(cached.Answer)) {
		return
	}
	for _, c := range cached.Citations {
		if !send(citationEvent(c)) {
			return
		}
	}
	send(p.doneEvent(correlationID, cached, nil))
}

func cacheKey(rawQuery string, history []domain.Turn) string {
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(strings.ToLower(rawQuery))))
	for _, turn := range history {
		h.Write([]byte{0})
		h.Write([]byte(turn.Role))
		h.Write([]byte{0})
		h.Write([]byte(turn.Content))
	}
	return hex.EncodeToString(h.Sum(nil))
}
