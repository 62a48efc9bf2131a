package enums

import "fmt"

// GrantState is the lifecycle position of an access grant.
type GrantState string

const (
	GrantStatePending         GrantState = "pending"
	GrantStateGranted         GrantState = "granted"
	GrantStateCancelScheduled GrantState = "cancel_scheduled"
	GrantStateCancelled       GrantState = "cancelled"
	GrantStateExpired         GrantState = "expired"
	GrantStateUnpaid          GrantState = "unpaid"
)

var validGrantStates = []GrantState{
	GrantStatePending,
	GrantStateGranted,
	GrantStateCancelScheduled,
	GrantStateCancelled,
	GrantStateExpired,
	GrantStateUnpaid,
}

// String implements fmt.Stringer.
func (s GrantState) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s GrantState) IsValid() bool {
	for _, candidate := range validGrantStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// GrantsAccess reports whether a grant in this state lets the buyer open the
// purchased content. cancel_scheduled keeps access until the period end.
func (s GrantState) GrantsAccess() bool {
	return s == GrantStateGranted || s == GrantStateCancelScheduled
}

// ParseGrantState converts raw input into a GrantState.
func ParseGrantState(value string) (GrantState, error) {
	for _, candidate := range validGrantStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid grant state %q", value)
}
