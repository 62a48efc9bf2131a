package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/adamzielonka/coursepath-backend/internal/catalog"
	"github.com/adamzielonka/coursepath-backend/pkg/db/models"
	"github.com/adamzielonka/coursepath-backend/pkg/enums"
	pkgerrors "github.com/adamzielonka/coursepath-backend/pkg/errors"
)

// Quote is the final charge breakdown for one purchasable. All amounts are
// integer cents; rounding happens once per line, never on the running total.
type Quote struct {
	ListPriceCents int64
	DiscountCents  int64
	NetCents       int64
	VATCents       int64
	TotalCents     int64
	Currency       enums.Currency
}

var oneHundred = decimal.NewFromInt(100)

// Compute applies the optional promo code and the purchasable's VAT rate to
// its list price. An inactive or expired promo is a validation error rather
// than a silent full-price charge.
func Compute(terms *catalog.PricingTerms, promo *models.PromoCode, now time.Time) (*Quote, error) {
	if terms == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pricing terms required")
	}
	if terms.PriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "negative list price")
	}

	list := decimal.NewFromInt(terms.PriceCents)
	discount := decimal.Zero

	if promo != nil {
		if !promo.Usable(now) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code is not usable")
		}
		if promo.PercentOff.IsNegative() || promo.PercentOff.GreaterThan(oneHundred) {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "promo percent out of range")
		}
		discount = list.Mul(promo.PercentOff).Div(oneHundred).Round(0)
	}

	net := list.Sub(discount)
	if net.IsNegative() {
		net = decimal.Zero
	}

	vat := net.Mul(terms.VATRate).Div(oneHundred).Round(0)
	total := net.Add(vat)

	return &Quote{
		ListPriceCents: list.IntPart(),
		DiscountCents:  discount.IntPart(),
		NetCents:       net.IntPart(),
		VATCents:       vat.IntPart(),
		TotalCents:     total.IntPart(),
		Currency:       terms.Currency,
	}, nil
}
