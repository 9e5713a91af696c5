// Package money holds the amount and calendar-day primitives shared by the
// finance, rates and backup layers. Amounts are decimal end to end; floats
// appear only at the HTTP boundary.
package money

import (
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// IsValidCurrency reports whether code is a known ISO-4217 currency.
func IsValidCurrency(code string) bool {
	return gomoney.GetCurrency(strings.ToUpper(code)) != nil
}

// NormalizeCurrency upper-cases a currency code without validating it.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// RoundForCurrency rounds an amount to the fraction digits of its currency,
// defaulting to 2 when the currency is unknown.
func RoundForCurrency(amount decimal.Decimal, code string) decimal.Decimal {
	fraction := 2
	if cur := gomoney.GetCurrency(NormalizeCurrency(code)); cur != nil {
		fraction = cur.Fraction
	}
	return amount.Round(int32(fraction))
}

// ParseAmount reads a decimal amount from its string form.
func ParseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}
