package domain

import "errors"

// Error taxonomy for the pipeline. Transient provider errors are the only
// retryable kind; the two fatal kinds terminate the request with a single
// terminal event.
var (
	// ErrInvalidInput marks caller faults (e.g. an empty query). Surfaced
	// immediately, never retried.
	ErrInvalidInput = errors.New("invalid input")
	// ErrProviderUnavailable marks a transient outage of an embedding/LLM/
	// index capability. Retried with backoff at the stage that issued the call.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrRateLimited marks provider throttling. Retried with backoff.
	ErrRateLimited = errors.New("rate limited")
	// ErrRetrievalUnavailable is fatal: no answer can be grounded without
	// candidates.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrSynthesisFailed is fatal: the synthesis capability failed past its
	// retry budget.
	ErrSynthesisFailed = errors.New("synthesis failed")
)

// ErrorKind is the wire-level classification reported in failed events.
type ErrorKind string

const (
	ErrorKindInvalidInput         ErrorKind = "invalid_input"
	ErrorKindProviderUnavailable  ErrorKind = "provider_unavailable"
	ErrorKindRateLimited          ErrorKind = "rate_limited"
	ErrorKindRetrievalUnavailable ErrorKind = "retrieval_unavailable"
	ErrorKindSynthesisFailed      ErrorKind = "synthesis_failed"
	ErrorKindInternal             ErrorKind = "internal"
)

// KindOf maps an error chain onto its taxonomy kind.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return ErrorKindInvalidInput
	case errors.Is(err, ErrRetrievalUnavailable):
		return ErrorKindRetrievalUnavailable
	case errors.Is(err, ErrSynthesisFailed):
		return ErrorKindSynthesisFailed
	case errors.Is(err, ErrRateLimited):
		return ErrorKindRateLimited
	case errors.Is(err, ErrProviderUnavailable):
		return ErrorKindProviderUnavailable
	default:
		return ErrorKindInternal
	}
}

// IsTransient reports whether an error may succeed on retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrRateLimited)
}
