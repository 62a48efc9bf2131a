package checkout

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	pkgstripe "github.com/adamzielonka/coursepath-backend/pkg/stripe"
)

type stripeClientWrapper struct {
	client *pkgstripe.Client
}

// NewSessionCreator wraps the shared Stripe client for checkout session
// creation with the configured per-call timeout.
func NewSessionCreator(client *pkgstripe.Client) sessionCreator {
	if client == nil {
		return nil
	}
	return &stripeClientWrapper{client: client}
}

func (w *stripeClientWrapper) Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	callCtx, cancel := w.client.CallContext(ctx)
	defer cancel()
	if params == nil {
		params = &stripe.CheckoutSessionParams{}
	}
	params.Context = callCtx
	return session.New(params)
}
