package cancellation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/adamzielonka/coursepath-backend/internal/grants"
	"github.com/adamzielonka/coursepath-backend/pkg/db/models"
	"github.com/adamzielonka/coursepath-backend/pkg/enums"
	pkgerrors "github.com/adamzielonka/coursepath-backend/pkg/errors"
	"github.com/adamzielonka/coursepath-backend/pkg/logger"
)

type subscriptionCanceller interface {
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
}

type ServiceParams struct {
	Grants grants.Service
	Stripe subscriptionCanceller
	Logger *logger.Logger
}

// Service coordinates buyer-initiated cancellation. The provider is told
// first; the local state moves only after the provider acknowledged, so a
// crash between the two steps leaves a retryable request, never a grant that
// claims a cancellation the provider does not know about.
type Service struct {
	grants grants.Service
	stripe subscriptionCanceller
	logger *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Grants == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "grants service required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe canceller required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		grants: params.Grants,
		stripe: params.Stripe,
		logger: params.Logger,
	}, nil
}

// Cancel schedules the grant's subscription to lapse at period end. Repeated
// calls are idempotent; a grant that is already winding down reports success
// without another provider call. A non-empty subscriptionRef must match the
// stored one, so a caller cannot cancel a subscription by guessing its id.
func (s *Service) Cancel(ctx context.Context, grantID, callerBuyerID uuid.UUID, subscriptionRef string) (*models.AccessGrant, error) {
	if grantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "grant id is required")
	}
	if callerBuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity is required")
	}

	grant, err := s.grants.GetGrant(ctx, grantID)
	if err != nil {
		return nil, err
	}
	if grant.BuyerID != callerBuyerID {
		// NotFound, not Forbidden: a foreign caller must not learn that
		// the grant exists.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "grant not found")
	}
	if subscriptionRef != "" {
		if grant.SubscriptionRef == nil || *grant.SubscriptionRef != subscriptionRef {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "subscription reference mismatch")
		}
	}

	switch grant.State {
	case enums.GrantStateCancelScheduled, enums.GrantStateCancelled:
		return grant, nil
	case enums.GrantStateGranted:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "grant is not active")
	}

	if !grant.IsRecurring || grant.SubscriptionRef == nil || *grant.SubscriptionRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "grant has no cancellable subscription")
	}

	sub, err := s.stripe.CancelAtPeriodEnd(ctx, *grant.SubscriptionRef)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "schedule provider cancellation")
	}
	s.logger.Info(ctx, "provider cancellation scheduled for "+*grant.SubscriptionRef)

	changes := grants.GrantChanges{}
	if end := periodEndFromSubscription(sub); end != nil {
		changes.CurrentPeriodEnd = end
	}

	result, err := s.grants.ApplyToGrant(ctx, grant, grants.TriggerCancelRequested, grants.ApplyInput{Changes: changes})
	if err != nil {
		return nil, err
	}
	if !result.Applied {
		// A concurrent webhook moved the grant first. The provider side is
		// already cancelled, so re-read and report whatever state won.
		return s.grants.GetGrant(ctx, grantID)
	}
	return result.Grant, nil
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
