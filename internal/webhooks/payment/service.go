package paymentwebhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/adamzielonka/coursepath-backend/internal/grants"
	"github.com/adamzielonka/coursepath-backend/pkg/enums"
	pkgerrors "github.com/adamzielonka/coursepath-backend/pkg/errors"
	"github.com/adamzielonka/coursepath-backend/pkg/logger"
	"github.com/adamzielonka/coursepath-backend/pkg/metrics"
	"github.com/adamzielonka/coursepath-backend/pkg/outbox/idempotency"
)

// dedupeConsumer namespaces the delivery dedupe keys in redis.
const dedupeConsumer = "payment-webhook"

// Metadata keys stamped on every checkout session and subscription at
// creation time. They are the only linkage between provider objects and
// grant rows.
const (
	metaBuyerID         = "buyer_id"
	metaPurchasableKind = "purchasable_kind"
	metaPurchasableID   = "purchasable_id"
)

type subscriptionFetcher interface {
	Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

type ServiceParams struct {
	Grants       grants.Service
	Subscription subscriptionFetcher
	Dedupe       *idempotency.Manager
	Metrics      *metrics.WebhookMetrics
	Logger       *logger.Logger
}

// Service turns verified provider events into grant triggers. Every handler
// is idempotent and tolerates out-of-order delivery; an event the state
// machine rejects as stale is acknowledged, never retried.
type Service struct {
	grants       grants.Service
	subscription subscriptionFetcher
	dedupe       *idempotency.Manager
	metrics      *metrics.WebhookMetrics
	logger       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Grants == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "grants service required")
	}
	if params.Subscription == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription fetcher required")
	}
	if params.Dedupe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "dedupe manager required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		grants:       params.Grants,
		subscription: params.Subscription,
		dedupe:       params.Dedupe,
		metrics:      params.Metrics,
		logger:       params.Logger,
	}, nil
}

// HandleEvent processes one signature-verified provider event. A nil return
// acknowledges the delivery; only transient infrastructure failures return
// an error so the provider retries.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event data required")
	}

	duplicate, err := s.dedupe.CheckAndMarkProcessed(ctx, dedupeConsumer, event.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delivery dedupe check")
	}
	if duplicate {
		s.metrics.IncDuplicate()
		s.logger.Debug(ctx, "duplicate webhook delivery dropped: "+event.ID)
		return nil
	}

	s.metrics.IncReceived(string(event.Type))

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		err = s.handleCheckoutCompleted(ctx, event)
	case stripe.EventTypeInvoicePaid:
		err = s.handleInvoicePaid(ctx, event)
	case stripe.EventTypeInvoicePaymentFailed:
		err = s.handleInvoicePaymentFailed(ctx, event)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		err = s.handleSubscriptionDeleted(ctx, event)
	default:
		s.logger.Debug(ctx, "ignoring webhook event type "+string(event.Type))
		return nil
	}

	if err != nil {
		// A retry must be allowed to re-enter the handler, so release
		// the dedupe mark before surfacing the failure.
		if delErr := s.dedupe.Delete(ctx, dedupeConsumer, event.ID); delErr != nil {
			s.logger.Warn(ctx, "failed to release dedupe mark for "+event.ID)
		}
	}
	return err
}

// handleCheckoutCompleted records the purchase first and only then promotes
// the grant. A duplicate payment reference means a previous delivery already
// did both, so the handler short-circuits without touching state.
func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}

	key, err := grantKeyFromMetadata(session.Metadata)
	if err != nil {
		s.metrics.IncRejected("missing_metadata")
		return err
	}

	paymentRef := checkoutPaymentRef(&session)
	if paymentRef == "" {
		s.metrics.IncRejected("missing_payment_ref")
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session carries no payment reference")
	}

	grant, err := s.grants.GetOrCreate(ctx, key, seedForKey(key))
	if err != nil {
		return err
	}

	recorded, err := s.grants.RecordPurchase(ctx, grants.PurchaseInput{
		GrantID:     grant.ID,
		PaymentRef:  paymentRef,
		AmountCents: session.AmountTotal,
		Currency:    currencyFromStripe(session.Currency),
		OccurredAt:  eventTime(event),
	})
	if err != nil {
		return err
	}
	if !recorded {
		s.logger.Info(ctx, "payment "+paymentRef+" already recorded, acknowledging redelivery")
		return nil
	}

	changes := grants.GrantChanges{}
	if session.Subscription != nil && session.Subscription.ID != "" {
		recurring := true
		changes.IsRecurring = &recurring
		subRef := session.Subscription.ID
		changes.SubscriptionRef = &subRef
		if sub, fetchErr := s.subscription.Get(ctx, subRef, &stripe.SubscriptionParams{}); fetchErr == nil {
			changes.CurrentPeriodEnd = periodEndFromSubscription(sub)
		} else {
			s.logger.Warn(ctx, "could not fetch subscription "+subRef+" for period end")
		}
	}
	amount := session.AmountTotal
	changes.AmountCents = &amount
	currency := currencyFromStripe(session.Currency)
	changes.Currency = &currency

	result, err := s.grants.ApplyToGrant(ctx, grant, grants.TriggerPaymentConfirmed, grants.ApplyInput{Changes: changes})
	if err != nil {
		return err
	}
	if !result.Applied {
		s.metrics.IncStale()
	}
	return nil
}

func (s *Service) handleInvoicePaid(ctx context.Context, event *stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode invoice")
	}

	sub, key, err := s.subscriptionForInvoice(ctx, event)
	if err != nil {
		return err
	}

	grant, err := s.grants.GetOrCreate(ctx, key, seedForKey(key))
	if err != nil {
		return err
	}

	recorded, err := s.grants.RecordPurchase(ctx, grants.PurchaseInput{
		GrantID:     grant.ID,
		PaymentRef:  invoice.ID,
		AmountCents: invoice.AmountPaid,
		Currency:    currencyFromStripe(invoice.Currency),
		OccurredAt:  eventTime(event),
	})
	if err != nil {
		return err
	}
	if !recorded {
		s.logger.Info(ctx, "invoice "+invoice.ID+" already recorded, acknowledging redelivery")
		return nil
	}

	recurring := true
	subRef := sub.ID
	changes := grants.GrantChanges{
		IsRecurring:      &recurring,
		SubscriptionRef:  &subRef,
		CurrentPeriodEnd: periodEndFromSubscription(sub),
	}

	// A first invoice can land before the checkout event. PaymentConfirmed
	// covers that ordering; RenewalConfirmed covers an already granted row.
	trigger := grants.TriggerRenewalConfirmed
	switch grant.State {
	case enums.GrantStatePending, enums.GrantStateUnpaid, enums.GrantStateExpired:
		trigger = grants.TriggerPaymentConfirmed
	}

	result, err := s.grants.ApplyToGrant(ctx, grant, trigger, grants.ApplyInput{Changes: changes})
	if err != nil {
		return err
	}
	if !result.Applied {
		s.metrics.IncStale()
	}
	return nil
}

func (s *Service) handleInvoicePaymentFailed(ctx context.Context, event *stripe.Event) error {
	_, key, err := s.subscriptionForInvoice(ctx, event)
	if err != nil {
		return err
	}

	result, err := s.grants.Apply(ctx, key, grants.TriggerPeriodEnded, grants.ApplyInput{})
	if err != nil {
		return err
	}
	if !result.Applied {
		s.metrics.IncStale()
	}
	return nil
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription")
	}

	key, err := grantKeyFromMetadata(sub.Metadata)
	if err != nil {
		s.metrics.IncRejected("missing_metadata")
		return err
	}

	result, err := s.grants.Apply(ctx, key, grants.TriggerSubscriptionCancelled, grants.ApplyInput{})
	if err != nil {
		return err
	}
	if !result.Applied {
		s.metrics.IncStale()
	}
	return nil
}

// subscriptionForInvoice resolves the subscription behind an invoice event
// and derives the grant key from its metadata.
func (s *Service) subscriptionForInvoice(ctx context.Context, event *stripe.Event) (*stripe.Subscription, grants.GrantKey, error) {
	object := event.Data.Object
	if object == nil {
		object = map[string]interface{}{}
		if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
			return nil, grants.GrantKey{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode invoice")
		}
	}

	subscriptionID := objectRef(object, "subscription")
	if subscriptionID == "" {
		subscriptionID = objectRef(object, "parent", "subscription_details", "subscription")
	}
	if subscriptionID == "" {
		s.metrics.IncRejected("missing_subscription")
		return nil, grants.GrantKey{}, pkgerrors.New(pkgerrors.CodeValidation, "invoice carries no subscription id")
	}

	sub, err := s.subscription.Get(ctx, subscriptionID, &stripe.SubscriptionParams{})
	if err != nil {
		return nil, grants.GrantKey{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch subscription")
	}

	key, err := grantKeyFromMetadata(sub.Metadata)
	if err != nil {
		s.metrics.IncRejected("missing_metadata")
		return nil, grants.GrantKey{}, err
	}
	return sub, key, nil
}

// objectRef walks nested maps in a raw event object. A missing key or a
// node that is not a map resolves to "", never a panic; an expanded
// provider object resolves to its "id" field.
func objectRef(object map[string]interface{}, path ...string) string {
	var node interface{} = object
	for _, key := range path {
		m, ok := node.(map[string]interface{})
		if !ok {
			return ""
		}
		node = m[key]
	}
	switch v := node.(type) {
	case string:
		return v
	case map[string]interface{}:
		id, _ := v["id"].(string)
		return id
	}
	return ""
}

func periodEndFromSubscription(sub *stripe.Subscription) *time.Time {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	end := sub.Items.Data[0].CurrentPeriodEnd
	if end == 0 {
		return nil
	}
	t := time.Unix(end, 0).UTC()
	return &t
}

func eventTime(event *stripe.Event) time.Time {
	if event.Created > 0 {
		return time.Unix(event.Created, 0).UTC()
	}
	return time.Now().UTC()
}

func checkoutPaymentRef(session *stripe.CheckoutSession) string {
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		return session.PaymentIntent.ID
	}
	// Subscription-mode sessions have no payment intent; the session id is
	// stable across redeliveries and serves as the reference.
	return session.ID
}
