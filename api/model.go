package api

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	appErrors "github.com/mishacol/balance-tracker/apperrors"
	"github.com/mishacol/balance-tracker/internal/backup"
	"github.com/mishacol/balance-tracker/internal/finance"
	"github.com/mishacol/balance-tracker/internal/money"
)

// REQUESTS START:

type SaveUserRequest struct {
	UserName string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type UserLoginRequest struct {
	UserName string `json:"username"`
	Password string `json:"password"`
}

type TransactionRequest struct {
	Type        string `json:"type"`
	Amount      string `json:"amount"` // string keeps decimals exact on the wire
	Currency    string `json:"currency"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

type UpdateProfileRequest struct {
	BaseCurrency        string `json:"base_currency"`
	MonthlyIncomeTarget string `json:"monthly_income_target"`
	BackupMode          string `json:"backup_mode"`
}

type CreateBackupRequest struct {
	Description string `json:"description"`
}

// REQUESTS END:

// RESPONSES:

type UserCreatedResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type LoginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type TransactionItem struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Date        string `json:"date"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type ListTransactionResponse struct {
	Transactions []TransactionItem `json:"transactions"`
}

type CategoryTotalItem struct {
	Category string  `json:"category"`
	Total    string  `json:"total"`
	Percent  float64 `json:"percent"`
}

type SummaryResponse struct {
	BaseCurrency    string              `json:"base_currency"`
	From            string              `json:"from"`
	To              string              `json:"to"`
	TotalIncome     string              `json:"total_income"`
	TotalExpense    string              `json:"total_expense"`
	TotalInvestment string              `json:"total_investment"`
	Balance         string              `json:"balance"`
	ByCategory      []CategoryTotalItem `json:"by_category"`
}

type TrendResponse struct {
	BaseCurrency  string  `json:"base_currency"`
	From          string  `json:"from"`
	To            string  `json:"to"`
	Current       string  `json:"current"`
	Previous      string  `json:"previous"`
	ChangePercent float64 `json:"change_percent"`
	Direction     string  `json:"direction"`
}

type ProfileResponse struct {
	UserID              string `json:"user_id"`
	Email               string `json:"email"`
	UserName            string `json:"username"`
	BaseCurrency        string `json:"base_currency"`
	MonthlyIncomeTarget string `json:"monthly_income_target"`
	BackupMode          string `json:"backup_mode"`
}

type BackupItem struct {
	ID                string `json:"id"`
	CreatedAt         string `json:"created_at"`
	Version           string `json:"version"`
	Description       string `json:"description"`
	Mode              string `json:"mode"`
	TotalTransactions int    `json:"total_transactions"`
}

type ListBackupsResponse struct {
	Backups []BackupItem `json:"backups"`
}

type RestoreResponse struct {
	Message  string `json:"message"`
	Restored int    `json:"restored"`
}

type ImportResponse struct {
	Message  string `json:"message"`
	Imported int    `json:"imported"`
}

func httpStatusFromError(err error) int {
	switch {
	case errors.Is(err, appErrors.ErrNotFound):
		return 404 // not found
	case errors.Is(err, appErrors.ErrInvalidInput):
		return 400 // bad request
	case errors.Is(err, appErrors.ErrAuth):
		return 401 // unauthorized
	case errors.Is(err, appErrors.ErrAccessDenied):
		return 403 // access denied
	case errors.Is(err, appErrors.ErrConflict):
		return 409 // conflict
	default:
		return 500 // internal error
	}
}

const timestampFormat = "02/01/2006 15:04"

func TransactionToHttp(t finance.Transaction) TransactionItem {
	return TransactionItem{
		ID:          t.ID,
		Type:        string(t.Type),
		Amount:      t.Amount.String(),
		Currency:    t.Currency,
		Category:    t.Category,
		Description: t.Description,
		Date:        t.Date.String(),
		CreatedAt:   t.CreatedAt.Format(timestampFormat),
		UpdatedAt:   t.UpdatedAt.Format(timestampFormat),
	}
}

func SummaryToHttp(s finance.FinancialSummary) SummaryResponse {
	byCategory := make([]CategoryTotalItem, 0, len(s.ByCategory))
	for _, c := range s.ByCategory {
		byCategory = append(byCategory, CategoryTotalItem{
			Category: c.Category,
			Total:    c.Total.StringFixed(2),
			Percent:  c.Percent,
		})
	}
	return SummaryResponse{
		BaseCurrency:    s.BaseCurrency,
		From:            s.From.String(),
		To:              s.To.String(),
		TotalIncome:     s.TotalIncome.StringFixed(2),
		TotalExpense:    s.TotalExpense.StringFixed(2),
		TotalInvestment: s.TotalInvestment.StringFixed(2),
		Balance:         s.Balance.StringFixed(2),
		ByCategory:      byCategory,
	}
}

func TrendToHttp(t finance.TrendReport) TrendResponse {
	return TrendResponse{
		BaseCurrency:  t.BaseCurrency,
		From:          t.From.String(),
		To:            t.To.String(),
		Current:       t.Current.StringFixed(2),
		Previous:      t.Previous.StringFixed(2),
		ChangePercent: t.ChangePercent,
		Direction:     string(t.Direction),
	}
}

func ProfileToHttp(p finance.Profile) ProfileResponse {
	return ProfileResponse{
		UserID:              p.UserID,
		Email:               p.Email,
		UserName:            p.UserName,
		BaseCurrency:        p.BaseCurrency,
		MonthlyIncomeTarget: p.MonthlyIncomeTarget.String(),
		BackupMode:          string(p.BackupMode),
	}
}

func BackupToHttp(s backup.Snapshot) BackupItem {
	return BackupItem{
		ID:                s.ID,
		CreatedAt:         s.CreatedAt.Format(timestampFormat),
		Version:           s.Version,
		Description:       s.Description,
		Mode:              string(s.Mode),
		TotalTransactions: len(s.Transactions),
	}
}

// TransactionToDomain validates and converts an API transaction payload.
func TransactionToDomain(req TransactionRequest) (finance.TransactionRequest, error) {
	amount, err := money.ParseAmount(req.Amount)
	if err != nil {
		return finance.TransactionRequest{}, fmt.Errorf("%w: invalid amount: %s", appErrors.ErrInvalidInput, req.Amount)
	}

	date, err := money.ParseDate(req.Date)
	if err != nil {
		return finance.TransactionRequest{}, fmt.Errorf("%w: invalid date: %s, expected format: %s", appErrors.ErrInvalidInput, req.Date, money.DateFormat)
	}

	return finance.TransactionRequest{
		Type:        finance.TransactionType(strings.ToLower(req.Type)),
		Amount:      amount,
		Currency:    req.Currency,
		Category:    req.Category,
		Description: req.Description,
		Date:        date,
	}, nil
}

// ListValidateParams turns transaction-list query parameters into a filter.
func ListValidateParams(params url.Values) (*finance.TransactionFilter, error) {
	var filters finance.TransactionFilter
	if len(params) == 0 {
		filters.IsAllNil = true
		return &filters, nil
	}

	if typesStr := params.Get("types"); typesStr != "" {
		for _, t := range strings.Split(typesStr, ",") {
			transactionType := finance.TransactionType(strings.ToLower(strings.TrimSpace(t)))
			if !transactionType.IsValid() {
				return nil, fmt.Errorf("%w: invalid transaction type: %s", appErrors.ErrInvalidInput, t)
			}
			filters.Types = append(filters.Types, transactionType)
		}
	}

	if categoriesStr := params.Get("categories"); categoriesStr != "" {
		filters.Categories = strings.Split(categoriesStr, ",")
	}

	if currency := params.Get("currency"); currency != "" {
		if !money.IsValidCurrency(currency) {
			return nil, fmt.Errorf("%w: invalid currency: %s", appErrors.ErrInvalidInput, currency)
		}
		filters.Currency = money.NormalizeCurrency(currency)
	}

	if fromStr := params.Get("from"); fromStr != "" {
		from, err := money.ParseDate(fromStr)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid from date: %s", appErrors.ErrInvalidInput, fromStr)
		}
		filters.From = from
	}

	if toStr := params.Get("to"); toStr != "" {
		to, err := money.ParseDate(toStr)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid to date: %s", appErrors.ErrInvalidInput, toStr)
		}
		filters.To = to
	}

	if !filters.From.IsZero() && !filters.To.IsZero() && filters.To.Before(filters.From) {
		return nil, fmt.Errorf("%w: to date cannot be before from date", appErrors.ErrInvalidInput)
	}

	return &filters, nil
}

// PeriodParams reads the from/to pair every analytics endpoint takes.
// Missing values default to the current calendar month.
func PeriodParams(params url.Values) (money.Date, money.Date, error) {
	fromStr := params.Get("from")
	toStr := params.Get("to")

	if fromStr == "" && toStr == "" {
		today := money.Today()
		from := money.NewDate(today.Year(), today.Month(), 1)
		to := from.Add(32)
		to = money.NewDate(to.Year(), to.Month(), 1).Add(-1) // last day of the month
		return from, to, nil
	}

	from, err := money.ParseDate(fromStr)
	if err != nil {
		return money.Date{}, money.Date{}, fmt.Errorf("%w: invalid from date: %s", appErrors.ErrInvalidInput, fromStr)
	}
	to, err := money.ParseDate(toStr)
	if err != nil {
		return money.Date{}, money.Date{}, fmt.Errorf("%w: invalid to date: %s", appErrors.ErrInvalidInput, toStr)
	}
	return from, to, nil
}
