package finance

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	appErrors "github.com/mishacol/balance-tracker/apperrors"
	"github.com/mishacol/balance-tracker/internal/money"
)

// Summary aggregates the user's transactions over [from, to] into totals per
// type plus per-category expense totals, everything converted into the
// profile's base currency.
func (tr *Tracker) Summary(ctx context.Context, userID string, from, to money.Date) (FinancialSummary, error) {
	if err := validatePeriod(from, to); err != nil {
		return FinancialSummary{}, err
	}

	profile, err := tr.storage.GetProfile(ctx, userID)
	if err != nil {
		return FinancialSummary{}, fmt.Errorf("failed to get profile for summary: %w", err)
	}

	ts, err := tr.storage.GetFilteredTransactions(ctx, userID, &TransactionFilter{From: from, To: to})
	if err != nil {
		return FinancialSummary{}, fmt.Errorf("failed to get transactions for summary: %w", err)
	}

	summary := FinancialSummary{
		BaseCurrency:    profile.BaseCurrency,
		From:            from,
		To:              to,
		TotalIncome:     decimal.Zero,
		TotalExpense:    decimal.Zero,
		TotalInvestment: decimal.Zero,
		Balance:         decimal.Zero,
	}

	categoryTotals := map[string]decimal.Decimal{}

	for _, t := range ts {
		converted, err := tr.converter.Convert(t.Amount, t.Currency, profile.BaseCurrency)
		if err != nil {
			return FinancialSummary{}, fmt.Errorf("failed to convert %s to base currency: %w", t.Currency, err)
		}
		converted = money.RoundForCurrency(converted, profile.BaseCurrency)

		switch t.Type {
		case TypeIncome:
			summary.TotalIncome = summary.TotalIncome.Add(converted)
		case TypeExpense:
			summary.TotalExpense = summary.TotalExpense.Add(converted)
			categoryTotals[t.Category] = categoryTotals[t.Category].Add(converted)
		case TypeInvestment:
			summary.TotalInvestment = summary.TotalInvestment.Add(converted)
		}
	}

	summary.Balance = summary.TotalIncome.Sub(summary.TotalExpense).Sub(summary.TotalInvestment)
	summary.ByCategory = buildCategoryTotals(categoryTotals, summary.TotalExpense)

	return summary, nil
}

// CategoryTotals returns the per-category expense breakdown for [from, to].
func (tr *Tracker) CategoryTotals(ctx context.Context, userID string, from, to money.Date) ([]CategoryTotal, error) {
	summary, err := tr.Summary(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	return summary.ByCategory, nil
}

func buildCategoryTotals(totals map[string]decimal.Decimal, totalExpense decimal.Decimal) []CategoryTotal {
	result := make([]CategoryTotal, 0, len(totals))
	for category, total := range totals {
		entry := CategoryTotal{Category: category, Total: total}
		if totalExpense.IsPositive() {
			entry.Percent, _ = total.Div(totalExpense).Mul(decimal.NewFromInt(100)).Round(2).Float64()
		}
		result = append(result, entry)
	}
	// largest spender first, name as tiebreaker so the order is deterministic
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Total.Equal(result[j].Total) {
			return result[i].Total.GreaterThan(result[j].Total)
		}
		return result[i].Category < result[j].Category
	})
	return result
}

// Trend compares expense spend in [from, to] against the adjacent previous
// period of identical length ending the day before from.
func (tr *Tracker) Trend(ctx context.Context, userID string, from, to money.Date) (TrendReport, error) {
	if err := validatePeriod(from, to); err != nil {
		return TrendReport{}, err
	}

	profile, err := tr.storage.GetProfile(ctx, userID)
	if err != nil {
		return TrendReport{}, fmt.Errorf("failed to get profile for trend: %w", err)
	}

	periodDays := from.DaysUntil(to) + 1
	prevTo := from.Add(-1)
	prevFrom := from.Add(-periodDays)

	current, err := tr.expenseTotal(ctx, userID, from, to, profile.BaseCurrency)
	if err != nil {
		return TrendReport{}, err
	}
	previous, err := tr.expenseTotal(ctx, userID, prevFrom, prevTo, profile.BaseCurrency)
	if err != nil {
		return TrendReport{}, err
	}

	report := TrendReport{
		BaseCurrency: profile.BaseCurrency,
		From:         from,
		To:           to,
		Current:      current,
		Previous:     previous,
	}
	report.ChangePercent, report.Direction = ClassifyTrend(current, previous)
	return report, nil
}

// ClassifyTrend computes the period-over-period change and applies the
// deadband: changes under 5% in either direction count as stable. A previous
// period with zero spend always classifies stable with 0%.
func ClassifyTrend(current, previous decimal.Decimal) (float64, TrendDirection) {
	if previous.IsZero() {
		return 0, TrendStable
	}

	change := current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100))
	percent, _ := change.Round(2).Float64()

	if change.Abs().LessThan(decimal.NewFromFloat(TrendDeadbandPercent)) {
		return percent, TrendStable
	}
	if change.IsPositive() {
		return percent, TrendUp
	}
	return percent, TrendDown
}

func (tr *Tracker) expenseTotal(ctx context.Context, userID string, from, to money.Date, baseCurrency string) (decimal.Decimal, error) {
	ts, err := tr.storage.GetFilteredTransactions(ctx, userID, &TransactionFilter{
		Types: []TransactionType{TypeExpense},
		From:  from,
		To:    to,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get expenses for trend: %w", err)
	}

	total := decimal.Zero
	for _, t := range ts {
		converted, err := tr.converter.Convert(t.Amount, t.Currency, baseCurrency)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to convert %s to base currency: %w", t.Currency, err)
		}
		total = total.Add(money.RoundForCurrency(converted, baseCurrency))
	}
	return total, nil
}

func validatePeriod(from, to money.Date) error {
	if from.IsZero() || to.IsZero() {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: "Period start and end dates are required.",
		}
	}
	if to.Before(from) {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: "Period end date cannot be before start date.",
		}
	}
	return nil
}
