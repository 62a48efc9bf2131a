package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateAccessGrant    OutboxAggregateType = "access_grant"
	AggregatePurchaseRecord OutboxAggregateType = "purchase_record"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateAccessGrant,
	AggregatePurchaseRecord,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventGrantGranted         OutboxEventType = "grant_granted"
	EventGrantUnpaid          OutboxEventType = "grant_unpaid"
	EventGrantCancelScheduled OutboxEventType = "grant_cancel_scheduled"
	EventGrantCancelled       OutboxEventType = "grant_cancelled"
	EventGrantExpired         OutboxEventType = "grant_expired"
	EventGrantRenewed         OutboxEventType = "grant_renewed"
	EventPurchaseRecorded     OutboxEventType = "purchase_recorded"
)

var validOutboxEventTypes = []OutboxEventType{
	EventGrantGranted,
	EventGrantUnpaid,
	EventGrantCancelScheduled,
	EventGrantCancelled,
	EventGrantExpired,
	EventGrantRenewed,
	EventPurchaseRecorded,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason classifies why an outbox row was parked in the DLQ.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
)

// IsValid reports whether the value matches a known DLQ reason.
func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonNonRetryable || r == OutboxDLQReasonMaxAttempts
}
