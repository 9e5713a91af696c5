package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestIsValidCurrency(t *testing.T) {
	require.True(t, IsValidCurrency("USD"))
	require.True(t, IsValidCurrency("eur"))
	require.False(t, IsValidCurrency("ZZZ"))
	require.False(t, IsValidCurrency(""))
}

func TestRoundForCurrency(t *testing.T) {
	amount := decimal.RequireFromString("3.33333")

	got := RoundForCurrency(amount, "USD")
	require.True(t, got.Equal(decimal.RequireFromString("3.33")), "got %s", got)

	// JPY carries no fraction digits
	got = RoundForCurrency(amount, "JPY")
	require.True(t, got.Equal(decimal.NewFromInt(3)), "got %s", got)

	// unknown currency falls back to two digits
	got = RoundForCurrency(amount, "ZZZ")
	require.True(t, got.Equal(decimal.RequireFromString("3.33")), "got %s", got)
}

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount(" 12.50 ")
	require.NoError(t, err)
	require.True(t, got.Equal(decimal.RequireFromString("12.5")))

	_, err = ParseAmount("twelve")
	require.Error(t, err)
}
