package cancellation

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/subscription"

	pkgstripe "github.com/adamzielonka/coursepath-backend/pkg/stripe"
)

type stripeClientWrapper struct {
	client *pkgstripe.Client
}

// NewStripeCanceller wraps the shared Stripe client for scheduling
// period-end cancellations.
func NewStripeCanceller(client *pkgstripe.Client) subscriptionCanceller {
	if client == nil {
		return nil
	}
	return &stripeClientWrapper{client: client}
}

func (w *stripeClientWrapper) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	callCtx, cancel := w.client.CallContext(ctx)
	defer cancel()
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = callCtx
	// Checkout routes seller revenue with destination charges, so every
	// subscription lives on the platform account and no connected-account
	// header is needed here.
	return subscription.Update(subscriptionID, params)
}
