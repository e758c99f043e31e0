package usecase

import (
	"time"

	"agentic-rag/internal/domain"
)

// EventKind discriminates pipeline output events.
type EventKind string

const (
	EventKindToken    EventKind = "token"
	EventKindCitation EventKind = "citation"
	EventKindDegraded EventKind = "degraded"
	EventKindDone     EventKind = "done"
	EventKindFailed   EventKind = "failed"
)

// Event is one element of the finite, ordered, single-pass sequence a
// pipeline run produces. Exactly one payload field is set, matching Kind.
type Event struct {
	Kind     EventKind
	Token    string
	Citation *domain.Citation
	Degraded *DegradedEvent
	Done     *DoneEvent
	Failed   *FailedEvent
}

// DegradedEvent reports a non-fatal fallback taken by a stage. The pipeline
// continues; this is caller-visible metadata, not a failure.
type DegradedEvent struct {
	Stage  domain.Stage `json:"stage"`
	Reason string       `json:"reason"`
}

// DoneEvent is the terminal event of a successful run.
type DoneEvent struct {
	CorrelationID string                         `json:"correlation_id"`
	Answer        string                         `json:"answer"`
	Citations     []domain.Citation              `json:"citations"`
	Verdict       domain.SafetyVerdict           `json:"safety_verdict"`
	Rationale     string                         `json:"safety_rationale,omitempty"`
	Degradations  []domain.Degradation           `json:"degradations,omitempty"`
	StageTimings  map[domain.Stage]time.Duration `json:"stage_timings,omitempty"`
}

// FailedEvent is the terminal event of a failed run.
type FailedEvent struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

func tokenEvent(text string) Event {
	return Event{Kind: EventKindToken, Token: text}
}

func citationEvent(c domain.Citation) Event {
	return Event{Kind: EventKindCitation, Citation: &c}
}

func degradedEvent(stage domain.Stage, reason string) Event {
	return Event{Kind: EventKindDegraded, Degraded: &DegradedEvent{Stage: stage, Reason: reason}}
}

func failedEvent(kind domain.ErrorKind, message string) Event {
	return Event{Kind: EventKindFailed, Failed: &FailedEvent{Kind: kind, Message: message}}
}
