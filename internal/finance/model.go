package finance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mishacol/balance-tracker/internal/money"
)

type TransactionType string

const (
	TypeIncome     TransactionType = "income"
	TypeExpense    TransactionType = "expense"
	TypeInvestment TransactionType = "investment"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeInvestment:
		return true
	}
	return false
}

type BackupMode string

const (
	BackupModeManual    BackupMode = "manual"
	BackupModeAutomatic BackupMode = "automatic"
)

func (m BackupMode) IsValid() bool {
	return m == BackupModeManual || m == BackupModeAutomatic
}

// REQUESTS:

type TransactionRequest struct {
	Type        TransactionType
	Amount      decimal.Decimal
	Currency    string
	Category    string
	Description string
	Date        money.Date
}

type UpdateTransactionRequest struct {
	ID          string
	Type        TransactionType
	Amount      decimal.Decimal
	Currency    string
	Category    string
	Description string
	Date        money.Date
}

type UpdateProfileRequest struct {
	BaseCurrency        string
	MonthlyIncomeTarget decimal.Decimal
	BackupMode          BackupMode
}

// MODELS:

type Transaction struct {
	ID          string          `json:"id"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        money.Date      `json:"date"`
	CreatedBy   string          `json:"-"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Profile mirrors the profiles table row, one per user.
type Profile struct {
	UserID              string
	Email               string
	UserName            string
	BaseCurrency        string
	MonthlyIncomeTarget decimal.Decimal
	BackupMode          BackupMode
}

// TransactionFilter narrows a transaction listing. IsAllNil short-circuits
// filtering when the request carried no parameters at all.
type TransactionFilter struct {
	Types      []TransactionType
	Categories []string
	Currency   string
	From       money.Date
	To         money.Date
	IsAllNil   bool
}

// DERIVED, recomputed on read:

type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
	Percent  float64
}

type FinancialSummary struct {
	BaseCurrency    string
	From            money.Date
	To              money.Date
	TotalIncome     decimal.Decimal
	TotalExpense    decimal.Decimal
	TotalInvestment decimal.Decimal
	Balance         decimal.Decimal
	ByCategory      []CategoryTotal
}

type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

type TrendReport struct {
	BaseCurrency  string
	From          money.Date
	To            money.Date
	Current       decimal.Decimal
	Previous      decimal.Decimal
	ChangePercent float64
	Direction     TrendDirection
}
