package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adamzielonka/coursepath-backend/internal/catalog"
	"github.com/adamzielonka/coursepath-backend/pkg/db/models"
	"github.com/adamzielonka/coursepath-backend/pkg/enums"
	pkgerrors "github.com/adamzielonka/coursepath-backend/pkg/errors"
)

func terms(priceCents int64, vatRate string) *catalog.PricingTerms {
	return &catalog.PricingTerms{
		PriceCents: priceCents,
		Currency:   enums.CurrencyPLN,
		VATRate:    decimal.RequireFromString(vatRate),
	}
}

func promo(percentOff string, active bool, expiresAt *time.Time) *models.PromoCode {
	return &models.PromoCode{
		Code:       "TEST",
		PercentOff: decimal.RequireFromString(percentOff),
		Active:     active,
		ExpiresAt:  expiresAt,
	}
}

func TestComputePlainPrice(t *testing.T) {
	quote, err := Compute(terms(10000, "23"), nil, time.Now())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if quote.NetCents != 10000 || quote.VATCents != 2300 || quote.TotalCents != 12300 {
		t.Fatalf("unexpected quote: %+v", quote)
	}
}

func TestComputePromoThenVAT(t *testing.T) {
	// 20% off 14900 = 2980 discount, net 11920, 23% VAT = 2742 (rounded), total 14662.
	quote, err := Compute(terms(14900, "23"), promo("20", true, nil), time.Now())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if quote.DiscountCents != 2980 {
		t.Fatalf("expected discount 2980, got %d", quote.DiscountCents)
	}
	if quote.NetCents != 11920 {
		t.Fatalf("expected net 11920, got %d", quote.NetCents)
	}
	if quote.VATCents != 2742 {
		t.Fatalf("expected vat 2742, got %d", quote.VATCents)
	}
	if quote.TotalCents != 14662 {
		t.Fatalf("expected total 14662, got %d", quote.TotalCents)
	}
}

func TestComputeRoundsHalfUpPerLine(t *testing.T) {
	// 33% off 999 = 329.67 -> 330; net 669; 8.5% VAT = 56.865 -> 57.
	quote, err := Compute(&catalog.PricingTerms{
		PriceCents: 999,
		Currency:   enums.CurrencyEUR,
		VATRate:    decimal.RequireFromString("8.5"),
	}, promo("33", true, nil), time.Now())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if quote.DiscountCents != 330 || quote.NetCents != 669 || quote.VATCents != 57 {
		t.Fatalf("unexpected rounding: %+v", quote)
	}
}

func TestComputeFullDiscountIsFree(t *testing.T) {
	quote, err := Compute(terms(5000, "23"), promo("100", true, nil), time.Now())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if quote.NetCents != 0 || quote.VATCents != 0 || quote.TotalCents != 0 {
		t.Fatalf("expected a free quote, got %+v", quote)
	}
}

func TestComputeExpiredPromoIsValidation(t *testing.T) {
	expired := time.Now().Add(-time.Hour)
	_, err := Compute(terms(5000, "23"), promo("20", true, &expired), time.Now())
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for expired promo, got %v", err)
	}
}

func TestComputeInactivePromoIsValidation(t *testing.T) {
	_, err := Compute(terms(5000, "23"), promo("20", false, nil), time.Now())
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for inactive promo, got %v", err)
	}
}

func TestComputeZeroPriceStaysZero(t *testing.T) {
	quote, err := Compute(terms(0, "23"), nil, time.Now())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if quote.TotalCents != 0 {
		t.Fatalf("expected zero total, got %d", quote.TotalCents)
	}
}
