// Package rates converts amounts between currencies through a pivot table.
// Live rate fetching is out of scope; the Converter seam keeps callers
// independent of where rates come from.
package rates

import (
	"fmt"

	"github.com/shopspring/decimal"

	appErrors "github.com/mishacol/balance-tracker/apperrors"
	"github.com/mishacol/balance-tracker/internal/money"
)

// Converter turns an amount in one currency into another.
type Converter interface {
	Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// StaticTable converts through a pivot currency using fixed rates.
// rates maps currency code to units of that currency per one pivot unit.
type StaticTable struct {
	pivot string
	rates map[string]decimal.Decimal
}

func NewStaticTable(pivot string, table map[string]string) (*StaticTable, error) {
	pivot = money.NormalizeCurrency(pivot)
	if !money.IsValidCurrency(pivot) {
		return nil, fmt.Errorf("invalid pivot currency: %s", pivot)
	}

	parsed := make(map[string]decimal.Decimal, len(table)+1)
	parsed[pivot] = decimal.NewFromInt(1)
	for code, rate := range table {
		code = money.NormalizeCurrency(code)
		if !money.IsValidCurrency(code) {
			return nil, fmt.Errorf("invalid currency in rate table: %s", code)
		}
		value, err := decimal.NewFromString(rate)
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %s: %w", code, err)
		}
		if !value.IsPositive() {
			return nil, fmt.Errorf("rate for %s must be positive, got %s", code, value)
		}
		parsed[code] = value
	}
	return &StaticTable{pivot: pivot, rates: parsed}, nil
}

// DefaultTable covers the currencies the stock UI exposes, pivoted on USD.
func DefaultTable() *StaticTable {
	table, err := NewStaticTable("USD", map[string]string{
		"EUR": "0.92",
		"GBP": "0.79",
		"CHF": "0.88",
		"JPY": "149.50",
		"CAD": "1.36",
		"AUD": "1.52",
		"PLN": "3.98",
		"CZK": "23.20",
		"UAH": "41.20",
		"TRY": "34.10",
	})
	if err != nil {
		panic(err) // table above is static, a failure here is a programmer error
	}
	return table
}

func (t *StaticTable) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from = money.NormalizeCurrency(from)
	to = money.NormalizeCurrency(to)
	if from == to {
		return amount, nil
	}

	fromRate, ok := t.rates[from]
	if !ok {
		return decimal.Zero, appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("No conversion rate for currency: %s", from),
		}
	}
	toRate, ok := t.rates[to]
	if !ok {
		return decimal.Zero, appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("No conversion rate for currency: %s", to),
		}
	}

	// amount -> pivot -> target
	return amount.Div(fromRate).Mul(toRate), nil
}
