package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PromoCode is a checkout-time pricing input; it never participates in the
// grant state machine.
type PromoCode struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Code       string          `gorm:"column:code;not null;uniqueIndex:ux_promo_codes_code"`
	PercentOff decimal.Decimal `gorm:"column:percent_off;type:numeric(5,2);not null"`
	ExpiresAt  *time.Time      `gorm:"column:expires_at"`
	Active     bool            `gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// Usable reports whether the code can still be applied at the given time.
func (p PromoCode) Usable(now time.Time) bool {
	if !p.Active {
		return false
	}
	if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
		return false
	}
	return true
}
