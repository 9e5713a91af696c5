package finance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	appErrors "github.com/mishacol/balance-tracker/apperrors"
	"github.com/mishacol/balance-tracker/internal/money"
	"github.com/mishacol/balance-tracker/internal/rates"
)

func expense(userID, category, amount, currency string, date money.Date) Transaction {
	return Transaction{
		ID:        category + "-" + amount,
		Type:      TypeExpense,
		Amount:    decimal.RequireFromString(amount),
		Currency:  currency,
		Category:  category,
		Date:      date,
		CreatedBy: userID,
	}
}

func TestSummaryAggregation(t *testing.T) {
	storage := NewMockStorage()
	storage.profiles["user-1"] = Profile{UserID: "user-1", BaseCurrency: "USD"}

	march := func(day int) money.Date { return money.NewDate(2025, time.March, day) }

	storage.transactions = []Transaction{
		{ID: "t1", Type: TypeIncome, Amount: decimal.RequireFromString("2000"), Currency: "USD", Category: "Salary", Date: march(1), CreatedBy: "user-1"},
		expense("user-1", "Groceries", "100", "USD", march(3)),
		expense("user-1", "Groceries", "50", "USD", march(10)),
		expense("user-1", "Restaurants", "150", "USD", march(12)),
		{ID: "t5", Type: TypeInvestment, Amount: decimal.RequireFromString("300"), Currency: "USD", Category: "Stocks", Date: march(15), CreatedBy: "user-1"},
		// outside the period, must be ignored
		expense("user-1", "Groceries", "999", "USD", money.NewDate(2025, time.February, 20)),
		// another user's transaction, must be ignored
		expense("user-2", "Groceries", "999", "USD", march(5)),
	}

	table, err := rates.NewStaticTable("USD", nil)
	require.NoError(t, err)
	tracker := NewTracker(storage, table, nil)

	summary, err := tracker.Summary(context.Background(), "user-1", march(1), march(31))
	require.NoError(t, err)

	require.Equal(t, "USD", summary.BaseCurrency)
	require.True(t, summary.TotalIncome.Equal(decimal.RequireFromString("2000")))
	require.True(t, summary.TotalExpense.Equal(decimal.RequireFromString("300")))
	require.True(t, summary.TotalInvestment.Equal(decimal.RequireFromString("300")))
	require.True(t, summary.Balance.Equal(decimal.RequireFromString("1400")))

	// per-category totals must sum back to the total expense
	sum := decimal.Zero
	for _, entry := range summary.ByCategory {
		sum = sum.Add(entry.Total)
	}
	require.True(t, sum.Equal(summary.TotalExpense))

	// sorted by total descending
	require.Len(t, summary.ByCategory, 2)
	require.Equal(t, "Groceries", summary.ByCategory[0].Category)
	require.True(t, summary.ByCategory[0].Total.Equal(decimal.RequireFromString("150")))
	require.Equal(t, 50.0, summary.ByCategory[0].Percent)
	require.Equal(t, "Restaurants", summary.ByCategory[1].Category)
	require.Equal(t, 50.0, summary.ByCategory[1].Percent)
}

func TestSummaryConvertsToBaseCurrency(t *testing.T) {
	storage := NewMockStorage()
	storage.profiles["user-1"] = Profile{UserID: "user-1", BaseCurrency: "USD"}

	march := func(day int) money.Date { return money.NewDate(2025, time.March, day) }

	// 1 USD = 0.5 EUR, so 10 EUR = 20 USD
	table, err := rates.NewStaticTable("USD", map[string]string{
		"EUR": "0.5",
	})
	require.NoError(t, err)

	storage.transactions = []Transaction{
		expense("user-1", "Groceries", "10", "EUR", march(3)),
		expense("user-1", "Groceries", "5", "USD", march(4)),
	}

	tracker := NewTracker(storage, table, nil)
	summary, err := tracker.Summary(context.Background(), "user-1", march(1), march(31))
	require.NoError(t, err)
	require.True(t, summary.TotalExpense.Equal(decimal.RequireFromString("25")),
		"got %s", summary.TotalExpense)
}

func TestSummaryRoundsConvertedAmounts(t *testing.T) {
	storage := NewMockStorage()
	storage.profiles["user-1"] = Profile{UserID: "user-1", BaseCurrency: "USD"}

	march := func(day int) money.Date { return money.NewDate(2025, time.March, day) }

	// 3 EUR per USD, so 10 EUR = 3.333... USD, rounded to cents
	table, err := rates.NewStaticTable("USD", map[string]string{
		"EUR": "3",
	})
	require.NoError(t, err)

	storage.transactions = []Transaction{
		expense("user-1", "Groceries", "10", "EUR", march(3)),
	}

	tracker := NewTracker(storage, table, nil)
	summary, err := tracker.Summary(context.Background(), "user-1", march(1), march(31))
	require.NoError(t, err)
	require.True(t, summary.TotalExpense.Equal(decimal.RequireFromString("3.33")),
		"got %s", summary.TotalExpense)
	require.True(t, summary.ByCategory[0].Total.Equal(summary.TotalExpense))
}

func TestSummaryValidatesPeriod(t *testing.T) {
	tracker, _ := newTestTracker(t, nil)
	ctx := context.Background()

	_, err := tracker.Summary(ctx, "user-1", money.Date{}, money.NewDate(2025, time.March, 31))
	require.True(t, errors.Is(err, appErrors.ErrInvalidInput))

	_, err = tracker.Summary(ctx, "user-1", money.NewDate(2025, time.March, 31), money.NewDate(2025, time.March, 1))
	require.True(t, errors.Is(err, appErrors.ErrInvalidInput))
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		name          string
		current       string
		previous      string
		wantPercent   float64
		wantDirection TrendDirection
	}{
		{name: "zero previous is stable", current: "500", previous: "0", wantPercent: 0, wantDirection: TrendStable},
		{name: "both zero is stable", current: "0", previous: "0", wantPercent: 0, wantDirection: TrendStable},
		{name: "small increase within deadband", current: "104.9", previous: "100", wantPercent: 4.9, wantDirection: TrendStable},
		{name: "small decrease within deadband", current: "95.1", previous: "100", wantPercent: -4.9, wantDirection: TrendStable},
		{name: "exactly at deadband counts as up", current: "105", previous: "100", wantPercent: 5, wantDirection: TrendUp},
		{name: "clear increase", current: "150", previous: "100", wantPercent: 50, wantDirection: TrendUp},
		{name: "clear decrease", current: "60", previous: "100", wantPercent: -40, wantDirection: TrendDown},
		{name: "spend stopped entirely", current: "0", previous: "100", wantPercent: -100, wantDirection: TrendDown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			percent, direction := ClassifyTrend(
				decimal.RequireFromString(tc.current),
				decimal.RequireFromString(tc.previous),
			)
			require.Equal(t, tc.wantPercent, percent)
			require.Equal(t, tc.wantDirection, direction)
		})
	}
}

func TestTrendComparesAdjacentPeriods(t *testing.T) {
	storage := NewMockStorage()
	storage.profiles["user-1"] = Profile{UserID: "user-1", BaseCurrency: "USD"}

	// current period: March 11-20, previous period: March 1-10
	storage.transactions = []Transaction{
		expense("user-1", "Groceries", "100", "USD", money.NewDate(2025, time.March, 5)),
		expense("user-1", "Groceries", "200", "USD", money.NewDate(2025, time.March, 15)),
		// income in the current period must not count toward spend
		{ID: "inc", Type: TypeIncome, Amount: decimal.RequireFromString("5000"), Currency: "USD", Category: "Salary", Date: money.NewDate(2025, time.March, 12), CreatedBy: "user-1"},
		// before the previous window, must be ignored
		expense("user-1", "Groceries", "999", "USD", money.NewDate(2025, time.February, 25)),
	}

	table, err := rates.NewStaticTable("USD", nil)
	require.NoError(t, err)
	tracker := NewTracker(storage, table, nil)

	report, err := tracker.Trend(context.Background(), "user-1",
		money.NewDate(2025, time.March, 11), money.NewDate(2025, time.March, 20))
	require.NoError(t, err)

	require.True(t, report.Current.Equal(decimal.RequireFromString("200")))
	require.True(t, report.Previous.Equal(decimal.RequireFromString("100")))
	require.Equal(t, 100.0, report.ChangePercent)
	require.Equal(t, TrendUp, report.Direction)
}
