// Package money renders integer minor units for display.
package money

import (
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/shopspring/decimal"
)

// Decimal converts minor units (cents) into a decimal amount.
func Decimal(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-2)
}

// Format renders cents with the currency symbol, e.g. 123456 USD -> "$1234.56".
func Format(cents int64, currency enums.Currency) string {
	amount := Decimal(cents)
	if amount.IsNegative() {
		return "-" + currency.Symbol() + amount.Neg().StringFixed(2)
	}
	return currency.Symbol() + amount.StringFixed(2)
}
