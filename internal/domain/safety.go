package domain

// SafetyVerdict classifies whether an answer is faithful to its context.
type SafetyVerdict string

const (
	// VerdictGrounded means every claim is supported by the context.
	VerdictGrounded SafetyVerdict = "grounded"
	// VerdictUngrounded means the answer makes claims the context does not
	// support. The answer is hedged, not discarded.
	VerdictUngrounded SafetyVerdict = "ungrounded"
	// VerdictInconclusive means the judge could not decide (or was
	// unavailable). Treated as grounded for availability.
	VerdictInconclusive SafetyVerdict = "inconclusive"
)

// SafetyResult carries the verdict plus the judge's optional rationale.
type SafetyResult struct {
	Verdict   SafetyVerdict
	Rationale string
}
