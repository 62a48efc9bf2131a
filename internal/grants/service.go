package grants

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adamzielonka/coursepath-backend/pkg/db/models"
	"github.com/adamzielonka/coursepath-backend/pkg/enums"
	pkgerrors "github.com/adamzielonka/coursepath-backend/pkg/errors"
	"github.com/adamzielonka/coursepath-backend/pkg/logger"
	"github.com/adamzielonka/coursepath-backend/pkg/outbox"
	"github.com/adamzielonka/coursepath-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PurchaseInput is the monetary fact behind one ledger row. PaymentRef is
// the dedupe key.
type PurchaseInput struct {
	GrantID     uuid.UUID
	PaymentRef  string
	AmountCents int64
	Currency    enums.Currency
	OccurredAt  time.Time
}

// ApplyInput carries the optional column changes committed with a transition.
type ApplyInput struct {
	Changes GrantChanges
}

// ApplyResult reports what one trigger application did.
type ApplyResult struct {
	Grant *models.AccessGrant
	// Applied is false when the trigger resolved to a no-op, either because
	// the table says so or because a concurrent writer won the update.
	Applied bool
}

// Service reconciles triggers against grant rows.
type Service interface {
	GetOrCreate(ctx context.Context, key GrantKey, seed models.AccessGrant) (*models.AccessGrant, error)
	Apply(ctx context.Context, key GrantKey, trigger Trigger, input ApplyInput) (*ApplyResult, error)
	ApplyToGrant(ctx context.Context, grant *models.AccessGrant, trigger Trigger, input ApplyInput) (*ApplyResult, error)
	RecordPurchase(ctx context.Context, input PurchaseInput) (bool, error)
	Reconcile(ctx context.Context, key GrantKey, claimedStatus string) (*models.AccessGrant, error)
	HasAccess(ctx context.Context, key GrantKey) (bool, error)
	GetGrant(ctx context.Context, grantID uuid.UUID) (*models.AccessGrant, error)
	ListGrants(ctx context.Context, buyerID uuid.UUID) ([]models.AccessGrant, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

// ServiceParams wires the grant service dependencies.
type ServiceParams struct {
	Repository        Repository
	TransactionRunner txRunner
	Outbox            outboxPublisher
	Logger            *logger.Logger
}

// NewService builds the grant state machine service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("grants repository required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:   params.Repository,
		tx:     params.TransactionRunner,
		outbox: params.Outbox,
		logg:   params.Logger,
	}, nil
}

func (s *service) GetOrCreate(ctx context.Context, key GrantKey, seed models.AccessGrant) (*models.AccessGrant, error) {
	grant, err := s.repo.GetOrCreate(ctx, key, seed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading access grant")
	}
	return grant, nil
}

// Apply resolves the key and runs the trigger against the grant.
func (s *service) Apply(ctx context.Context, key GrantKey, trigger Trigger, input ApplyInput) (*ApplyResult, error) {
	grant, err := s.repo.GetOrCreate(ctx, key, models.AccessGrant{})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading access grant")
	}
	return s.ApplyToGrant(ctx, grant, trigger, input)
}

// ApplyToGrant runs one trigger through the transition table and commits the
// winning update, the ledger row, and the outbox event in one transaction.
func (s *service) ApplyToGrant(ctx context.Context, grant *models.AccessGrant, trigger Trigger, input ApplyInput) (*ApplyResult, error) {
	if grant == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "grant is required")
	}

	decision := Decide(grant.State, trigger)
	if decision.NoTransition {
		s.debugNoOp(ctx, grant, trigger)
		return &ApplyResult{Grant: grant, Applied: false}, nil
	}

	result := &ApplyResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ok, err := repo.TransitionFrom(ctx, grant.ID, ExpectedStates(trigger), decision.Next, input.Changes)
		if err != nil {
			return err
		}
		if !ok {
			// a concurrent writer already moved the row
			result.Applied = false
			return nil
		}
		result.Applied = true

		if eventType, ok := EventTypeFor(trigger, decision.Next); ok {
			if err := s.emitTransition(ctx, tx, grant, decision.Next, eventType, input.Changes); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "applying grant transition")
	}

	fresh, err := s.repo.FindByID(ctx, grant.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reloading access grant")
	}
	result.Grant = fresh

	if !result.Applied {
		s.debugNoOp(ctx, fresh, trigger)
	}
	return result, nil
}

// RecordPurchase appends one ledger row and emits its event. A replayed
// payment ref returns (false, nil): recorded already, nothing to redo.
func (s *service) RecordPurchase(ctx context.Context, input PurchaseInput) (bool, error) {
	if input.GrantID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "grant id is required")
	}
	if strings.TrimSpace(input.PaymentRef) == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "payment ref is required")
	}

	recorded := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record := &models.PurchaseRecord{
			GrantID:     input.GrantID,
			PaymentRef:  input.PaymentRef,
			AmountCents: input.AmountCents,
			Currency:    input.Currency,
			OccurredAt:  input.OccurredAt,
		}
		if err := repo.AppendPurchaseRecord(ctx, record); err != nil {
			if errors.Is(err, ErrDuplicatePurchase) {
				return nil
			}
			return err
		}
		recorded = true
		return s.emitPurchase(ctx, tx, record)
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording purchase")
	}
	return recorded, nil
}

// Reconcile serves the client polling loop. Client claims are weaker than
// provider events: success promotes only from pending, failure demotes only
// from pending, everything else is a read.
func (s *service) Reconcile(ctx context.Context, key GrantKey, claimedStatus string) (*models.AccessGrant, error) {
	grant, err := s.repo.GetOrCreate(ctx, key, models.AccessGrant{})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading access grant")
	}

	var trigger Trigger
	switch strings.ToLower(strings.TrimSpace(claimedStatus)) {
	case "success":
		trigger = TriggerClientReportsSuccess
	case "canceled", "cancelled", "failed":
		trigger = TriggerClientReportsFailure
	default:
		return grant, nil
	}

	result, err := s.ApplyToGrant(ctx, grant, trigger, ApplyInput{})
	if err != nil {
		// degrade to the last known snapshot; the client keeps polling and
		// the provider webhook remains authoritative
		logCtx := s.logg.WithGrantID(ctx, grant.ID.String())
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "reconcile transition failed, serving snapshot")
		return grant, nil
	}
	return result.Grant, nil
}

// HasAccess answers the content gate. Unknown grants simply have no access.
func (s *service) HasAccess(ctx context.Context, key GrantKey) (bool, error) {
	grant, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading access grant")
	}
	return grant.HasAccess(time.Now().UTC()), nil
}

func (s *service) GetGrant(ctx context.Context, grantID uuid.UUID) (*models.AccessGrant, error) {
	grant, err := s.repo.FindByID(ctx, grantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "grant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading access grant")
	}
	return grant, nil
}

func (s *service) ListGrants(ctx context.Context, buyerID uuid.UUID) ([]models.AccessGrant, error) {
	rows, err := s.repo.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing access grants")
	}
	return rows, nil
}

func (s *service) emitTransition(ctx context.Context, tx *gorm.DB, grant *models.AccessGrant, next enums.GrantState, eventType enums.OutboxEventType, changes GrantChanges) error {
	periodEnd := grant.CurrentPeriodEnd
	if changes.CurrentPeriodEnd != nil {
		periodEnd = changes.CurrentPeriodEnd
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateAccessGrant,
		AggregateID:   grant.ID,
		Version:       1,
		Data: payloads.GrantStateChangedEvent{
			GrantID:         grant.ID,
			BuyerID:         grant.BuyerID,
			PurchasableKind: grant.PurchasableKind,
			PurchasableID:   grant.PurchasableID,
			FromState:       grant.State,
			ToState:         next,
			PeriodEnd:       periodEnd,
		},
	})
}

func (s *service) emitPurchase(ctx context.Context, tx *gorm.DB, record *models.PurchaseRecord) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPurchaseRecorded,
		AggregateType: enums.AggregatePurchaseRecord,
		AggregateID:   record.ID,
		Version:       1,
		Data: payloads.PurchaseRecordedEvent{
			RecordID:    record.ID,
			GrantID:     record.GrantID,
			PaymentRef:  record.PaymentRef,
			AmountCents: record.AmountCents,
			Currency:    record.Currency,
			OccurredAt:  record.OccurredAt,
		},
	})
}

func (s *service) debugNoOp(ctx context.Context, grant *models.AccessGrant, trigger Trigger) {
	fields := map[string]any{
		"grant_id": grant.ID.String(),
		"state":    grant.State,
		"trigger":  trigger,
	}
	s.logg.Debug(s.logg.WithFields(ctx, fields), "grant trigger resolved to no-op")
}
