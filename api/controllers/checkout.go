package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/adamzielonka/coursepath-backend/api/middleware"
	"github.com/adamzielonka/coursepath-backend/api/responses"
	"github.com/adamzielonka/coursepath-backend/api/validators"
	checkoutsvc "github.com/adamzielonka/coursepath-backend/internal/checkout"
	"github.com/adamzielonka/coursepath-backend/pkg/enums"
	pkgerrors "github.com/adamzielonka/coursepath-backend/pkg/errors"
	"github.com/adamzielonka/coursepath-backend/pkg/logger"
)

// Checkout opens a provider payment session for one purchasable and returns
// the redirect URL together with the quoted price breakdown.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		buyerID, err := callerBuyerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kind, err := enums.ParsePurchasableKind(payload.PurchasableKind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "unknown purchasable kind").
					WithDetails(map[string]any{"field": "purchasable_kind"}))
			return
		}

		session, err := svc.Start(r.Context(), checkoutsvc.StartInput{
			BuyerID:       buyerID,
			Kind:          kind,
			PurchasableID: payload.PurchasableID,
			PromoCode:     payload.PromoCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(session))
	}
}

func callerBuyerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	buyerID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity malformed")
	}
	return buyerID, nil
}

type checkoutRequest struct {
	PurchasableKind string    `json:"purchasable_kind" validate:"required"`
	PurchasableID   uuid.UUID `json:"purchasable_id" validate:"required,uuid4"`
	PromoCode       string    `json:"promo_code,omitempty" validate:"omitempty,max=64"`
}

type checkoutResponse struct {
	SessionID string        `json:"session_id"`
	URL       string        `json:"url"`
	GrantID   uuid.UUID     `json:"grant_id"`
	Quote     quoteResponse `json:"quote"`
}

type quoteResponse struct {
	ListPriceCents int64  `json:"list_price_cents"`
	DiscountCents  int64  `json:"discount_cents"`
	NetCents       int64  `json:"net_cents"`
	VATCents       int64  `json:"vat_cents"`
	TotalCents     int64  `json:"total_cents"`
	Currency       string `json:"currency"`
}

func newCheckoutResponse(session *checkoutsvc.Session) checkoutResponse {
	if session == nil {
		return checkoutResponse{}
	}
	return checkoutResponse{
		SessionID: session.SessionID,
		URL:       session.URL,
		GrantID:   session.GrantID,
		Quote: quoteResponse{
			ListPriceCents: session.Quote.ListPriceCents,
			DiscountCents:  session.Quote.DiscountCents,
			NetCents:       session.Quote.NetCents,
			VATCents:       session.Quote.VATCents,
			TotalCents:     session.Quote.TotalCents,
			Currency:       string(session.Quote.Currency),
		},
	}
}
