package grants

import (
	"github.com/adamzielonka/coursepath-backend/pkg/enums"
)

// Trigger is an external fact reported about a grant: a provider event, a
// client claim, or the period-end clock.
type Trigger string

const (
	// TriggerPaymentConfirmed is the provider-authoritative signal that the
	// initial charge settled.
	TriggerPaymentConfirmed Trigger = "payment_confirmed"
	// TriggerClientReportsSuccess is the buyer's own claim after returning
	// from checkout. Weaker than the provider signal: it only promotes a
	// grant that is still pending.
	TriggerClientReportsSuccess Trigger = "client_reports_success"
	// TriggerClientReportsFailure is the buyer's claim that checkout failed
	// or was abandoned.
	TriggerClientReportsFailure Trigger = "client_reports_failure"
	// TriggerCancelRequested is the owner asking to stop renewing.
	TriggerCancelRequested Trigger = "cancel_requested"
	// TriggerSubscriptionCancelled is the provider confirming the
	// subscription is gone for good.
	TriggerSubscriptionCancelled Trigger = "subscription_cancelled"
	// TriggerPeriodEnded fires when a paid period lapses without renewal.
	TriggerPeriodEnded Trigger = "period_ended"
	// TriggerRenewalConfirmed is the provider confirming a renewal charge.
	TriggerRenewalConfirmed Trigger = "renewal_confirmed"
)

// Effect names a side effect the caller must perform alongside the state
// change. The machine itself never touches storage or the provider.
type Effect string

const (
	EffectRecordPurchase Effect = "record_purchase"
	EffectExtendPeriod   Effect = "extend_period"
	EffectRevokeAccess   Effect = "revoke_access"
)

// Decision is the outcome of applying a trigger to a state.
type Decision struct {
	Next         enums.GrantState
	Effects      []Effect
	NoTransition bool
}

type transitionRule struct {
	from    []enums.GrantState
	to      enums.GrantState
	effects []Effect
}

// transitionTable is the whole machine. A (state, trigger) pair absent from
// the table is a stale or out-of-order report and resolves to a no-op.
var transitionTable = map[Trigger]transitionRule{
	TriggerPaymentConfirmed: {
		from:    []enums.GrantState{enums.GrantStatePending, enums.GrantStateUnpaid, enums.GrantStateExpired},
		to:      enums.GrantStateGranted,
		effects: []Effect{EffectRecordPurchase},
	},
	TriggerClientReportsSuccess: {
		from: []enums.GrantState{enums.GrantStatePending},
		to:   enums.GrantStateGranted,
	},
	TriggerClientReportsFailure: {
		from: []enums.GrantState{enums.GrantStatePending},
		to:   enums.GrantStateUnpaid,
	},
	TriggerCancelRequested: {
		from: []enums.GrantState{enums.GrantStateGranted},
		to:   enums.GrantStateCancelScheduled,
	},
	TriggerSubscriptionCancelled: {
		from:    []enums.GrantState{enums.GrantStateGranted, enums.GrantStateCancelScheduled},
		to:      enums.GrantStateCancelled,
		effects: []Effect{EffectRevokeAccess},
	},
	TriggerPeriodEnded: {
		from:    []enums.GrantState{enums.GrantStateGranted, enums.GrantStateCancelScheduled},
		to:      enums.GrantStateExpired,
		effects: []Effect{EffectRevokeAccess},
	},
	TriggerRenewalConfirmed: {
		from:    []enums.GrantState{enums.GrantStateGranted},
		to:      enums.GrantStateGranted,
		effects: []Effect{EffectRecordPurchase, EffectExtendPeriod},
	},
}

// Decide applies a trigger to a state. It is pure and total: unknown
// triggers and unlisted pairs come back as NoTransition, never an error.
func Decide(state enums.GrantState, trigger Trigger) Decision {
	rule, ok := transitionTable[trigger]
	if !ok {
		return Decision{Next: state, NoTransition: true}
	}
	for _, from := range rule.from {
		if from == state {
			return Decision{Next: rule.to, Effects: rule.effects}
		}
	}
	return Decision{Next: state, NoTransition: true}
}

// ExpectedStates returns the states a trigger may fire from, in table order.
// The store uses this set as the guard of its conditional update.
func ExpectedStates(trigger Trigger) []enums.GrantState {
	rule, ok := transitionTable[trigger]
	if !ok {
		return nil
	}
	out := make([]enums.GrantState, len(rule.from))
	copy(out, rule.from)
	return out
}

// HasEffect reports whether the decision carries the named effect.
func (d Decision) HasEffect(effect Effect) bool {
	for _, e := range d.Effects {
		if e == effect {
			return true
		}
	}
	return false
}

// EventTypeFor maps a committed transition to its outbox event type. The
// boolean is false for transitions that emit nothing.
func EventTypeFor(trigger Trigger, next enums.GrantState) (enums.OutboxEventType, bool) {
	if trigger == TriggerRenewalConfirmed {
		return enums.EventGrantRenewed, true
	}
	switch next {
	case enums.GrantStateGranted:
		return enums.EventGrantGranted, true
	case enums.GrantStateUnpaid:
		return enums.EventGrantUnpaid, true
	case enums.GrantStateCancelScheduled:
		return enums.EventGrantCancelScheduled, true
	case enums.GrantStateCancelled:
		return enums.EventGrantCancelled, true
	case enums.GrantStateExpired:
		return enums.EventGrantExpired, true
	default:
		return "", false
	}
}
