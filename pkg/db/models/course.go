package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adamzielonka/coursepath-backend/pkg/enums"
)

// Course is a sellable catalog item owned by a teacher or school.
type Course struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SchoolID    uuid.UUID `gorm:"column:school_id;type:uuid;not null;index"`
	Title       string    `gorm:"column:title;not null"`
	Description *string   `gorm:"column:description"`
	Published   bool      `gorm:"column:published;not null;default:false"`

	PriceCents      int64                  `gorm:"column:price_cents;not null"`
	Currency        enums.Currency         `gorm:"column:currency;not null;default:'pln'"`
	Recurring       bool                   `gorm:"column:recurring;not null;default:false"`
	BillingInterval *enums.BillingInterval `gorm:"column:billing_interval;type:billing_interval"`
	TrialDays       int                    `gorm:"column:trial_days;not null;default:0"`
	VATRate         decimal.Decimal        `gorm:"column:vat_rate;type:numeric(5,2);not null;default:0"`

	// SellerAccountID routes the charge to a connected seller account.
	// Empty means the platform account collects.
	SellerAccountID *string `gorm:"column:seller_account_id"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
