package domain

import "time"

// Stage identifies a pipeline state. Transitions run strictly in the order
// declared here; Failed is reachable from Retrieving and Synthesizing only.
type Stage string

const (
	StageRewriting         Stage = "rewriting"
	StageRetrieving        Stage = "retrieving"
	StageReranking         Stage = "reranking"
	StageAssemblingContext Stage = "assembling_context"
	StageSynthesizing      Stage = "synthesizing"
	StageValidating        Stage = "validating"
	StageStreaming         Stage = "streaming"
	StageDone              Stage = "done"
	StageFailed            Stage = "failed"
)

// Turn is one prior exchange of the conversation, used by the query
// rewriter for coreference resolution.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// Degradation records a non-fatal fallback taken by a stage.
type Degradation struct {
	Stage  Stage
	Reason string
}

// AgentState is the per-request record threaded through all stages. It is
// exclusively owned by one request's goroutine and never shared.
type AgentState struct {
	CorrelationID  string
	RawQuery       string
	History        []Turn
	RewrittenQuery string
	Candidates     []Candidate
	Context        *ContextBlock
	DraftAnswer    string
	Citations      []Citation
	Safety         SafetyResult
	StageTimings   map[Stage]time.Duration
	AttemptCounts  map[Stage]int
	Degradations   []Degradation
}

// NewAgentState creates the state for a single request.
func NewAgentState(correlationID, rawQuery string, history []Turn) *AgentState {
	return &AgentState{
		CorrelationID: correlationID,
		RawQuery:      rawQuery,
		History:       history,
		StageTimings:  make(map[Stage]time.Duration),
		AttemptCounts: make(map[Stage]int),
	}
}

// RecordTiming stores the elapsed wall time of a completed stage.
func (s *AgentState) RecordTiming(stage Stage, d time.Duration) {
	s.StageTimings[stage] = d
}

// RecordDegradation notes a non-fatal fallback for caller-visible metadata.
func (s *AgentState) RecordDegradation(stage Stage, reason string) {
	s.Degradations = append(s.Degradations, Degradation{Stage: stage, Reason: reason})
}
