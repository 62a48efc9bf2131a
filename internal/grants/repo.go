package grants

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/adamzielonka/coursepath-backend/pkg/db"
	"github.com/adamzielonka/coursepath-backend/pkg/db/models"
	"github.com/adamzielonka/coursepath-backend/pkg/enums"
)

// ErrDuplicatePurchase marks a payment_ref that is already in the ledger.
// Callers treat it as success: the money was recorded the first time.
var ErrDuplicatePurchase = errors.New("purchase record already exists for payment_ref")

// GrantKey identifies the one row a buyer may hold per purchasable.
type GrantKey struct {
	BuyerID         uuid.UUID
	PurchasableKind enums.PurchasableKind
	PurchasableID   uuid.UUID
}

// GrantChanges are the columns a transition may set alongside state.
type GrantChanges struct {
	SubscriptionRef  *string
	CurrentPeriodEnd *time.Time
	IsRecurring      *bool
	AmountCents      *int64
	Currency         *enums.Currency
}

// Repository persists access grants and their purchase ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetOrCreate(ctx context.Context, key GrantKey, seed models.AccessGrant) (*models.AccessGrant, error)
	FindByKey(ctx context.Context, key GrantKey) (*models.AccessGrant, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.AccessGrant, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.AccessGrant, error)
	TransitionFrom(ctx context.Context, grantID uuid.UUID, from []enums.GrantState, to enums.GrantState, changes GrantChanges) (bool, error)
	AppendPurchaseRecord(ctx context.Context, record *models.PurchaseRecord) error
	PurchaseRecords(ctx context.Context, grantID uuid.UUID) ([]models.PurchaseRecord, error)
	ListPeriodLapsed(ctx context.Context, cutoff time.Time, limit int) ([]models.AccessGrant, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a grants repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// GetOrCreate returns the grant for the key, inserting a pending row when
// none exists. Insert-or-ignore plus re-read keeps concurrent first probes
// converging on the same row.
func (r *repository) GetOrCreate(ctx context.Context, key GrantKey, seed models.AccessGrant) (*models.AccessGrant, error) {
	seed.BuyerID = key.BuyerID
	seed.PurchasableKind = key.PurchasableKind
	seed.PurchasableID = key.PurchasableID
	if seed.State == "" {
		seed.State = enums.GrantStatePending
	}
	if seed.ID == uuid.Nil {
		seed.ID = uuid.New()
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "buyer_id"},
				{Name: "purchasable_kind"},
				{Name: "purchasable_id"},
			},
			DoNothing: true,
		}).
		Create(&seed).Error
	if err != nil && !db.IsUniqueViolation(err, "ux_access_grants_buyer_purchasable") {
		return nil, err
	}

	return r.FindByKey(ctx, key)
}

func (r *repository) FindByKey(ctx context.Context, key GrantKey) (*models.AccessGrant, error) {
	var grant models.AccessGrant
	err := r.db.WithContext(ctx).
		Where("buyer_id = ? AND purchasable_kind = ? AND purchasable_id = ?",
			key.BuyerID, key.PurchasableKind, key.PurchasableID).
		First(&grant).Error
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.AccessGrant, error) {
	var grant models.AccessGrant
	if err := r.db.WithContext(ctx).First(&grant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &grant, nil
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.AccessGrant, error) {
	var rows []models.AccessGrant
	err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// TransitionFrom is the compare-and-transition primitive: one conditional
// UPDATE guarded by the grant id and the expected-state set. ok=false means
// another writer got there first and nothing changed; the caller re-reads.
func (r *repository) TransitionFrom(ctx context.Context, grantID uuid.UUID, from []enums.GrantState, to enums.GrantState, changes GrantChanges) (bool, error) {
	if len(from) == 0 {
		return false, errors.New("expected state set is required")
	}

	updates := map[string]any{
		"state":      to,
		"updated_at": time.Now().UTC(),
	}
	if changes.SubscriptionRef != nil {
		updates["subscription_ref"] = *changes.SubscriptionRef
	}
	if changes.CurrentPeriodEnd != nil {
		updates["current_period_end"] = *changes.CurrentPeriodEnd
	}
	if changes.IsRecurring != nil {
		updates["is_recurring"] = *changes.IsRecurring
	}
	if changes.AmountCents != nil {
		updates["amount_cents"] = *changes.AmountCents
	}
	if changes.Currency != nil {
		updates["currency"] = *changes.Currency
	}

	result := r.db.WithContext(ctx).
		Model(&models.AccessGrant{}).
		Where("id = ? AND state IN ?", grantID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AppendPurchaseRecord inserts one ledger row. The unique payment_ref index
// is the idempotency boundary: replays come back as ErrDuplicatePurchase.
func (r *repository) AppendPurchaseRecord(ctx context.Context, record *models.PurchaseRecord) error {
	if record.PaymentRef == "" {
		return errors.New("payment_ref is required")
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now().UTC()
	}
	err := r.db.WithContext(ctx).Create(record).Error
	if err != nil {
		if db.IsUniqueViolation(err, "ux_purchase_records_payment_ref") {
			return ErrDuplicatePurchase
		}
		return err
	}
	return nil
}

func (r *repository) PurchaseRecords(ctx context.Context, grantID uuid.UUID) ([]models.PurchaseRecord, error) {
	var rows []models.PurchaseRecord
	err := r.db.WithContext(ctx).
		Where("grant_id = ?", grantID).
		Order("occurred_at ASC").
		Find(&rows).Error
	return rows, err
}

// ListPeriodLapsed returns recurring grants whose paid period ended before
// the cutoff and that still sit in an access-granting state.
func (r *repository) ListPeriodLapsed(ctx context.Context, cutoff time.Time, limit int) ([]models.AccessGrant, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.AccessGrant
	err := r.db.WithContext(ctx).
		Where("is_recurring = ? AND current_period_end IS NOT NULL AND current_period_end < ?", true, cutoff).
		Where("state IN ?", []enums.GrantState{enums.GrantStateGranted, enums.GrantStateCancelScheduled}).
		Order("current_period_end ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
