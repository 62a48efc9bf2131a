package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/adamzielonka/coursepath-backend/pkg/enums"
)

// AccessGrant is one buyer's durable relationship to one purchasable.
// Exactly one row exists per (buyer, kind, purchasable) triple; cancellation
// and expiry move the row to a terminal state instead of deleting it so the
// purchase history stays attached.
type AccessGrant struct {
	ID              uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID         uuid.UUID             `gorm:"column:buyer_id;type:uuid;not null;uniqueIndex:ux_access_grants_buyer_purchasable,priority:1"`
	PurchasableKind enums.PurchasableKind `gorm:"column:purchasable_kind;type:purchasable_kind;not null;uniqueIndex:ux_access_grants_buyer_purchasable,priority:2"`
	PurchasableID   uuid.UUID             `gorm:"column:purchasable_id;type:uuid;not null;uniqueIndex:ux_access_grants_buyer_purchasable,priority:3"`
	State           enums.GrantState      `gorm:"column:state;type:grant_state;not null;default:'pending'"`

	// SubscriptionRef is set only for recurring grants once the provider
	// subscription exists.
	SubscriptionRef  *string        `gorm:"column:subscription_ref"`
	IsRecurring      bool           `gorm:"column:is_recurring;not null;default:false"`
	CurrentPeriodEnd *time.Time     `gorm:"column:current_period_end"`
	AmountCents      int64          `gorm:"column:amount_cents;not null;default:0"`
	Currency         enums.Currency `gorm:"column:currency;not null;default:'pln'"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// HasAccess reports whether the grant currently allows opening the content.
func (g AccessGrant) HasAccess(now time.Time) bool {
	if !g.State.GrantsAccess() {
		return false
	}
	if g.State == enums.GrantStateCancelScheduled && g.CurrentPeriodEnd != nil {
		return now.Before(*g.CurrentPeriodEnd)
	}
	return true
}
