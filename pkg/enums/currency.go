package enums

import (
	"fmt"
	"strings"
)

// Currency is the ISO 4217 code a purchasable is priced in.
type Currency string

const (
	CurrencyPLN Currency = "pln"
	CurrencyEUR Currency = "eur"
	CurrencyUSD Currency = "usd"
)

var validCurrencies = []Currency{
	CurrencyPLN,
	CurrencyEUR,
	CurrencyUSD,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency converts raw input into a Currency.
func ParseCurrency(value string) (Currency, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validCurrencies {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
