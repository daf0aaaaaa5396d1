package schema

import "slices"

// Status represents the lifecycle state of an inbox or outbox entry.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusProcessing   Status = "PROCESSING"
	StatusRetryPending Status = "RETRY_PENDING"
	StatusProcessed    Status = "PROCESSED" // inbox success
	StatusSent         Status = "SENT"      // outbox success
	StatusFailed       Status = "FAILED"
)

// ClaimableStatuses lists the statuses a worker may move to PROCESSING.
// A PROCESSING row whose claim has timed out is claimable as well; that rule is
// time based and lives in the stores.
func ClaimableStatuses() []Status {
	return []Status{StatusPending, StatusRetryPending}
}

// IsClaimable reports whether the status can be claimed without a timeout.
func (s Status) IsClaimable() bool {
	return slices.Contains(ClaimableStatuses(), s)
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusProcessed || s == StatusSent || s == StatusFailed
}

// CanTransitionTo reports whether a transition from s to next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case StatusPending, StatusRetryPending:
		return next == StatusProcessing
	case StatusProcessing:
		// PROCESSING -> PROCESSING is a reclaim after the claim timed out.
		return next == StatusProcessing || next == StatusProcessed || next == StatusSent ||
			next == StatusFailed || next == StatusRetryPending
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}

// FailureType classifies why an entry ended up FAILED.
type FailureType string

const (
	FailureNone              FailureType = ""
	FailureBusinessInvariant FailureType = "BUSINESS_INVARIANT"
	FailureRetryExhausted    FailureType = "RETRY_EXHAUSTED"
)
