package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adamzielonka/coursepath-backend/api/responses"
	"github.com/adamzielonka/coursepath-backend/api/validators"
	"github.com/adamzielonka/coursepath-backend/internal/grants"
	"github.com/adamzielonka/coursepath-backend/pkg/db/models"
	"github.com/adamzielonka/coursepath-backend/pkg/enums"
	pkgerrors "github.com/adamzielonka/coursepath-backend/pkg/errors"
	"github.com/adamzielonka/coursepath-backend/pkg/logger"
)

type CancelService interface {
	Cancel(ctx context.Context, grantID, callerBuyerID uuid.UUID, subscriptionRef string) (*models.AccessGrant, error)
}

// ListEnrollments returns every grant the caller holds, active or not.
func ListEnrollments(svc grants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "grants service unavailable"))
			return
		}

		buyerID, err := callerBuyerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListGrants(r.Context(), buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		now := time.Now().UTC()
		enrollments := make([]grantResponse, 0, len(items))
		for _, grant := range items {
			enrollments = append(enrollments, newGrantResponse(grant, now))
		}
		responses.WriteSuccess(w, map[string]any{"enrollments": enrollments})
	}
}

// ReconcileEnrollment is the client polling endpoint. The buyer's browser
// reports what the payment page told it; the server folds that claim into
// the grant and returns the authoritative state.
func ReconcileEnrollment(svc grants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "grants service unavailable"))
			return
		}

		buyerID, err := callerBuyerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload reconcileRequest
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

		grant, err := svc.Reconcile(r.Context(), grants.GrantKey{
			BuyerID:         buyerID,
			PurchasableKind: kind,
			PurchasableID:   payload.PurchasableID,
		}, payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newGrantResponse(*grant, time.Now().UTC()))
	}
}

// CancelEnrollment schedules a recurring grant for cancellation at the end
// of the paid period.
func CancelEnrollment(svc CancelService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cancellation service unavailable"))
			return
		}

		buyerID, err := callerBuyerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		grantID, err := pathUUID(r, "grantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// The body is optional; a supplied subscription ref must match the
		// grant's stored one.
		var payload cancelRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		grant, err := svc.Cancel(r.Context(), grantID, buyerID, payload.SubscriptionRef)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newGrantResponse(*grant, time.Now().UTC()))
	}
}

// CheckAccess answers the content gate for one purchasable.
func CheckAccess(svc grants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "grants service unavailable"))
			return
		}

		buyerID, err := callerBuyerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kind, err := enums.ParsePurchasableKind(chi.URLParam(r, "kind"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "unknown purchasable kind").
					WithDetails(map[string]any{"field": "kind"}))
			return
		}

		purchasableID, err := pathUUID(r, "purchasableId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		allowed, err := svc.HasAccess(r.Context(), grants.GrantKey{
			BuyerID:         buyerID,
			PurchasableKind: kind,
			PurchasableID:   purchasableID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"has_access": allowed})
	}
}

type cancelRequest struct {
	SubscriptionRef string `json:"subscription_ref" validate:"omitempty,max=128"`
}

type reconcileRequest struct {
	PurchasableKind string    `json:"purchasable_kind" validate:"required"`
	PurchasableID   uuid.UUID `json:"purchasable_id" validate:"required,uuid4"`
	Status          string    `json:"status" validate:"omitempty,max=32"`
}

type grantResponse struct {
	ID               uuid.UUID  `json:"id"`
	PurchasableKind  string     `json:"purchasable_kind"`
	PurchasableID    uuid.UUID  `json:"purchasable_id"`
	State            string     `json:"state"`
	IsRecurring      bool       `json:"is_recurring"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
	AmountCents      int64      `json:"amount_cents"`
	Currency         string     `json:"currency"`
	HasAccess        bool       `json:"has_access"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func newGrantResponse(grant models.AccessGrant, now time.Time) grantResponse {
	return grantResponse{
		ID:               grant.ID,
		PurchasableKind:  string(grant.PurchasableKind),
		PurchasableID:    grant.PurchasableID,
		State:            string(grant.State),
		IsRecurring:      grant.IsRecurring,
		CurrentPeriodEnd: grant.CurrentPeriodEnd,
		AmountCents:      grant.AmountCents,
		Currency:         string(grant.Currency),
		HasAccess:        grant.HasAccess(now),
		CreatedAt:        grant.CreatedAt,
		UpdatedAt:        grant.UpdatedAt,
	}
}
