package grants

import (
	"testing"

	"github.com/adamzielonka/coursepath-backend/pkg/enums"
)

func TestDecideTransitionTable(t *testing.T) {
	cases := []struct {
		name    string
		state   enums.GrantState
		trigger Trigger
		next    enums.GrantState
		effects []Effect
	}{
		{"payment confirmed from pending", enums.GrantStatePending, TriggerPaymentConfirmed, enums.GrantStateGranted, []Effect{EffectRecordPurchase}},
		{"payment confirmed from unpaid", enums.GrantStateUnpaid, TriggerPaymentConfirmed, enums.GrantStateGranted, []Effect{EffectRecordPurchase}},
		{"payment confirmed reactivates expired", enums.GrantStateExpired, TriggerPaymentConfirmed, enums.GrantStateGranted, []Effect{EffectRecordPurchase}},
		{"client success from pending", enums.GrantStatePending, TriggerClientReportsSuccess, enums.GrantStateGranted, nil},
		{"client failure from pending", enums.GrantStatePending, TriggerClientReportsFailure, enums.GrantStateUnpaid, nil},
		{"cancel requested from granted", enums.GrantStateGranted, TriggerCancelRequested, enums.GrantStateCancelScheduled, nil},
		{"subscription cancelled from granted", enums.GrantStateGranted, TriggerSubscriptionCancelled, enums.GrantStateCancelled, []Effect{EffectRevokeAccess}},
		{"subscription cancelled from cancel scheduled", enums.GrantStateCancelScheduled, TriggerSubscriptionCancelled, enums.GrantStateCancelled, []Effect{EffectRevokeAccess}},
		{"period ended from granted", enums.GrantStateGranted, TriggerPeriodEnded, enums.GrantStateExpired, []Effect{EffectRevokeAccess}},
		{"period ended from cancel scheduled", enums.GrantStateCancelScheduled, TriggerPeriodEnded, enums.GrantStateExpired, []Effect{EffectRevokeAccess}},
		{"renewal from granted", enums.GrantStateGranted, TriggerRenewalConfirmed, enums.GrantStateGranted, []Effect{EffectRecordPurchase, EffectExtendPeriod}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := Decide(tc.state, tc.trigger)
			if decision.NoTransition {
				t.Fatalf("expected transition, got no-op")
			}
			if decision.Next != tc.next {
				t.Fatalf("expected next %s, got %s", tc.next, decision.Next)
			}
			if len(decision.Effects) != len(tc.effects) {
				t.Fatalf("expected effects %v, got %v", tc.effects, decision.Effects)
			}
			for i, effect := range tc.effects {
				if decision.Effects[i] != effect {
					t.Fatalf("expected effects %v, got %v", tc.effects, decision.Effects)
				}
			}
		})
	}
}

func TestDecideUnlistedPairsAreNoOps(t *testing.T) {
	cases := []struct {
		name    string
		state   enums.GrantState
		trigger Trigger
	}{
		{"client failure never downgrades granted", enums.GrantStateGranted, TriggerClientReportsFailure},
		{"client failure ignored on cancelled", enums.GrantStateCancelled, TriggerClientReportsFailure},
		{"client success ignored once granted", enums.GrantStateGranted, TriggerClientReportsSuccess},
		{"client success ignored on unpaid", enums.GrantStateUnpaid, TriggerClientReportsSuccess},
		{"payment confirmed replay on granted", enums.GrantStateGranted, TriggerPaymentConfirmed},
		{"payment confirmed on cancelled stays put", enums.GrantStateCancelled, TriggerPaymentConfirmed},
		{"cancel from pending", enums.GrantStatePending, TriggerCancelRequested},
		{"cancel replay from cancel scheduled", enums.GrantStateCancelScheduled, TriggerCancelRequested},
		{"cancel from cancelled", enums.GrantStateCancelled, TriggerCancelRequested},
		{"renewal on expired grant", enums.GrantStateExpired, TriggerRenewalConfirmed},
		{"period end on pending", enums.GrantStatePending, TriggerPeriodEnded},
		{"period end replay on expired", enums.GrantStateExpired, TriggerPeriodEnded},
		{"subscription cancelled replay", enums.GrantStateCancelled, TriggerSubscriptionCancelled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := Decide(tc.state, tc.trigger)
			if !decision.NoTransition {
				t.Fatalf("expected no-op, got transition to %s", decision.Next)
			}
			if decision.Next != tc.state {
				t.Fatalf("no-op must keep state %s, got %s", tc.state, decision.Next)
			}
			if len(decision.Effects) != 0 {
				t.Fatalf("no-op must carry no effects, got %v", decision.Effects)
			}
		})
	}
}

func TestDecideIsTotal(t *testing.T) {
	states := []enums.GrantState{
		enums.GrantStatePending,
		enums.GrantStateGranted,
		enums.GrantStateCancelScheduled,
		enums.GrantStateCancelled,
		enums.GrantStateExpired,
		enums.GrantStateUnpaid,
	}
	triggers := []Trigger{
		TriggerPaymentConfirmed,
		TriggerClientReportsSuccess,
		TriggerClientReportsFailure,
		TriggerCancelRequested,
		TriggerSubscriptionCancelled,
		TriggerPeriodEnded,
		TriggerRenewalConfirmed,
		Trigger("made_up"),
	}

	for _, state := range states {
		for _, trigger := range triggers {
			decision := Decide(state, trigger)
			if decision.NoTransition {
				if decision.Next != state {
					t.Fatalf("no-op for (%s,%s) must keep state, got %s", state, trigger, decision.Next)
				}
				continue
			}
			if !decision.Next.IsValid() {
				t.Fatalf("transition for (%s,%s) produced invalid state %s", state, trigger, decision.Next)
			}
		}
	}
}

func TestClientSuccessCarriesNoPurchaseEffect(t *testing.T) {
	decision := Decide(enums.GrantStatePending, TriggerClientReportsSuccess)
	if decision.HasEffect(EffectRecordPurchase) {
		t.Fatalf("client-claimed success must not record a purchase")
	}
}

func TestExpectedStatesMatchTable(t *testing.T) {
	got := ExpectedStates(TriggerClientReportsSuccess)
	if len(got) != 1 || got[0] != enums.GrantStatePending {
		t.Fatalf("unexpected expected states %v", got)
	}
	if ExpectedStates(Trigger("nope")) != nil {
		t.Fatalf("unknown trigger must have no expected states")
	}

	// mutating the returned slice must not poison the table
	states := ExpectedStates(TriggerPaymentConfirmed)
	states[0] = enums.GrantStateCancelled
	if fresh := ExpectedStates(TriggerPaymentConfirmed); fresh[0] != enums.GrantStatePending {
		t.Fatalf("ExpectedStates leaked internal table slice")
	}
}

func TestEventTypeFor(t *testing.T) {
	cases := []struct {
		trigger Trigger
		next    enums.GrantState
		want    enums.OutboxEventType
	}{
		{TriggerPaymentConfirmed, enums.GrantStateGranted, enums.EventGrantGranted},
		{TriggerClientReportsFailure, enums.GrantStateUnpaid, enums.EventGrantUnpaid},
		{TriggerCancelRequested, enums.GrantStateCancelScheduled, enums.EventGrantCancelScheduled},
		{TriggerSubscriptionCancelled, enums.GrantStateCancelled, enums.EventGrantCancelled},
		{TriggerPeriodEnded, enums.GrantStateExpired, enums.EventGrantExpired},
		{TriggerRenewalConfirmed, enums.GrantStateGranted, enums.EventGrantRenewed},
	}
	for _, tc := range cases {
		got, ok := EventTypeFor(tc.trigger, tc.next)
		if !ok {
			t.Fatalf("expected event for (%s,%s)", tc.trigger, tc.next)
		}
		if got != tc.want {
			t.Fatalf("expected %s, got %s", tc.want, got)
		}
	}

	if _, ok := EventTypeFor(TriggerPaymentConfirmed, enums.GrantStatePending); ok {
		t.Fatalf("pending has no event type")
	}
}
