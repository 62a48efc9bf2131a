package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/adamzielonka/coursepath-backend/internal/catalog"
	"github.com/adamzielonka/coursepath-backend/internal/checkout/pricing"
	"github.com/adamzielonka/coursepath-backend/internal/grants"
	paymentwebhook "github.com/adamzielonka/coursepath-backend/internal/webhooks/payment"
	"github.com/adamzielonka/coursepath-backend/pkg/db/models"
	"github.com/adamzielonka/coursepath-backend/pkg/enums"
	pkgerrors "github.com/adamzielonka/coursepath-backend/pkg/errors"
	"github.com/adamzielonka/coursepath-backend/pkg/logger"
)

type promoLoader interface {
	FindPromoCode(ctx context.Context, code string) (*models.PromoCode, error)
}

type sessionCreator interface {
	Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StartInput is one buyer's request to purchase one purchasable.
type StartInput struct {
	BuyerID       uuid.UUID
	Kind          enums.PurchasableKind
	PurchasableID uuid.UUID
	PromoCode     string
}

// Session is the provider redirect handed back to the client.
type Session struct {
	SessionID string
	URL       string
	GrantID   uuid.UUID
	Quote     pricing.Quote
}

// Service starts provider checkout sessions. The pending grant row exists
// before the buyer ever reaches the payment page, so webhook and
// reconciliation traffic always finds a row to converge on.
type Service interface {
	Start(ctx context.Context, input StartInput) (*Session, error)
}

type ServiceParams struct {
	Catalog    catalog.Service
	Promos     promoLoader
	Grants     grants.Service
	Stripe     sessionCreator
	SuccessURL string
	CancelURL  string
	Logger     *logger.Logger
}

type service struct {
	catalog    catalog.Service
	promos     promoLoader
	grants     grants.Service
	stripe     sessionCreator
	successURL string
	cancelURL  string
	logger     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog service required")
	}
	if params.Promos == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "promo loader required")
	}
	if params.Grants == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "grants service required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe session creator required")
	}
	if params.SuccessURL == "" || params.CancelURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout redirect urls required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &service{
		catalog:    params.Catalog,
		promos:     params.Promos,
		grants:     params.Grants,
		stripe:     params.Stripe,
		successURL: params.SuccessURL,
		cancelURL:  params.CancelURL,
		logger:     params.Logger,
	}, nil
}

func (s *service) Start(ctx context.Context, input StartInput) (*Session, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity is required")
	}
	if input.PurchasableID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchasable id is required")
	}

	terms, err := s.catalog.Resolve(ctx, input.Kind, input.PurchasableID)
	if err != nil {
		return nil, err
	}

	var promo *models.PromoCode
	if code := strings.TrimSpace(input.PromoCode); code != "" {
		promo, err = s.promos.FindPromoCode(ctx, code)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown promo code")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading promo code")
		}
	}

	quote, err := pricing.Compute(terms, promo, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	key := grants.GrantKey{
		BuyerID:         input.BuyerID,
		PurchasableKind: terms.Kind,
		PurchasableID:   terms.PurchasableID,
	}
	grant, err := s.grants.GetOrCreate(ctx, key, models.AccessGrant{
		BuyerID:         key.BuyerID,
		PurchasableKind: key.PurchasableKind,
		PurchasableID:   key.PurchasableID,
		State:           enums.GrantStatePending,
		IsRecurring:     terms.Recurring,
		AmountCents:     quote.TotalCents,
		Currency:        quote.Currency,
	})
	if err != nil {
		return nil, err
	}
	if grant.State == enums.GrantStateGranted || grant.State == enums.GrantStateCancelScheduled {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "buyer already owns this purchasable")
	}
	// cancelled is terminal for the row; a payment taken against it would
	// never turn back into access.
	if grant.State == enums.GrantStateCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "grant was cancelled and cannot be re-purchased")
	}

	params := s.sessionParams(terms, quote, key)
	session, err := s.stripe.Create(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	s.logger.Info(ctx, "checkout session "+session.ID+" created for grant "+grant.ID.String())

	return &Session{
		SessionID: session.ID,
		URL:       session.URL,
		GrantID:   grant.ID,
		Quote:     *quote,
	}, nil
}

// sessionParams builds the provider request. The grant key is stamped onto
// both the session and, for recurring terms, the subscription it creates,
// because later webhook deliveries only see one of the two objects.
func (s *service) sessionParams(terms *catalog.PricingTerms, quote *pricing.Quote, key grants.GrantKey) *stripe.CheckoutSessionParams {
	metadata := paymentwebhook.GrantMetadata(key)

	priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
		Currency:   stripe.String(string(quote.Currency)),
		UnitAmount: stripe.Int64(quote.TotalCents),
		ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(terms.Title),
		},
	}

	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.cancelURL),
		Metadata:   metadata,
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{PriceData: priceData, Quantity: stripe.Int64(1)},
		},
	}

	if terms.Recurring {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripe.String(intervalFor(terms.BillingInterval)),
		}
		subscriptionData := &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		}
		if terms.TrialDays > 0 {
			subscriptionData.TrialPeriodDays = stripe.Int64(int64(terms.TrialDays))
		}
		if terms.SellerAccountID != nil && *terms.SellerAccountID != "" {
			subscriptionData.TransferData = &stripe.CheckoutSessionSubscriptionDataTransferDataParams{
				Destination: terms.SellerAccountID,
			}
		}
		params.SubscriptionData = subscriptionData
	} else {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModePayment))
		if terms.SellerAccountID != nil && *terms.SellerAccountID != "" {
			params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
				TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
					Destination: terms.SellerAccountID,
				},
			}
		}
	}

	return params
}

func intervalFor(interval *enums.BillingInterval) string {
	if interval != nil && *interval == enums.BillingIntervalYearly {
		return string(stripe.PriceRecurringIntervalYear)
	}
	return string(stripe.PriceRecurringIntervalMonth)
}
