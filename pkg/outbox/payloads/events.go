package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/adamzielonka/coursepath-backend/pkg/enums"
)

// GrantStateChangedEvent is emitted on every committed grant transition. The
// same shape backs all grant.* event types so consumers switch on event_type.
type GrantStateChangedEvent struct {
	GrantID         uuid.UUID             `json:"grantId"`
	BuyerID         uuid.UUID             `json:"buyerId"`
	PurchasableKind enums.PurchasableKind `json:"purchasableKind"`
	PurchasableID   uuid.UUID             `json:"purchasableId"`
	FromState       enums.GrantState      `json:"fromState"`
	ToState         enums.GrantState      `json:"toState"`
	PeriodEnd       *time.Time            `json:"periodEnd,omitempty"`
}

// PurchaseRecordedEvent is emitted once per unique payment reference.
type PurchaseRecordedEvent struct {
	RecordID    uuid.UUID      `json:"recordId"`
	GrantID     uuid.UUID      `json:"grantId"`
	PaymentRef  string         `json:"paymentRef"`
	AmountCents int64          `json:"amountCents"`
	Currency    enums.Currency `json:"currency"`
	OccurredAt  time.Time      `json:"occurredAt"`
}
