package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/adamzielonka/coursepath-backend/pkg/enums"
)

// PurchaseRecord is an append-only ledger row for one successful monetary
// event (the initial charge or one renewal). The unique payment_ref
// constraint is the webhook-replay idempotency boundary.
type PurchaseRecord struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	GrantID     uuid.UUID      `gorm:"column:grant_id;type:uuid;not null;index"`
	PaymentRef  string         `gorm:"column:payment_ref;not null;uniqueIndex:ux_purchase_records_payment_ref"`
	AmountCents int64          `gorm:"column:amount_cents;not null"`
	Currency    enums.Currency `gorm:"column:currency;not null;default:'pln'"`
	OccurredAt  time.Time      `gorm:"column:occurred_at;not null"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
}
