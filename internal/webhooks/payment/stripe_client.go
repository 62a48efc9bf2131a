package paymentwebhook

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/subscription"

	pkgstripe "github.com/adamzielonka/coursepath-backend/pkg/stripe"
)

type stripeClientWrapper struct {
	client *pkgstripe.Client
}

// NewSubscriptionFetcher wraps the shared Stripe client for subscription
// lookups with the configured per-call timeout.
func NewSubscriptionFetcher(client *pkgstripe.Client) subscriptionFetcher {
	if client == nil {
		return nil
	}
	return &stripeClientWrapper{client: client}
}

func (w *stripeClientWrapper) Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	callCtx, cancel := w.client.CallContext(ctx)
	defer cancel()
	if params == nil {
		params = &stripe.SubscriptionParams{}
	}
	params.Context = callCtx
	return subscription.Get(id, params)
}
