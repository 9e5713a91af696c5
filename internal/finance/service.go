package finance

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	appErrors "github.com/mishacol/balance-tracker/apperrors"
	"github.com/mishacol/balance-tracker/internal/auth"
	"github.com/mishacol/balance-tracker/internal/money"
	"github.com/mishacol/balance-tracker/internal/rates"
	"github.com/mishacol/balance-tracker/logging"
)

const (
	MAX_TRANSACTION_CATEGORY_LENGTH    = 255
	MAX_TRANSACTION_DESCRIPTION_LENGTH = 1000
	TrendDeadbandPercent               = 5.0
)

var maxTransactionAmount = decimal.RequireFromString("999999999999999999")

// Storage is the persistence surface the tracker runs on. The Postgres and
// in-memory implementations both satisfy it.
type Storage interface {
	SaveUser(ctx context.Context, user auth.User) error
	ValidateUser(ctx context.Context, credentials auth.UserCredentialsPure) (auth.User, error)
	IsUserExists(ctx context.Context, username string) (bool, error)
	IsEmailTaken(ctx context.Context, email string) (bool, error)
	SaveSession(ctx context.Context, session auth.Session) error
	GetSessionByToken(ctx context.Context, token string) (auth.Session, error)
	UpdateSession(ctx context.Context, userID string, expireAt time.Time) error
	DeleteSession(ctx context.Context, userID string, token string) error

	GetProfile(ctx context.Context, userID string) (Profile, error)
	UpdateProfile(ctx context.Context, profile Profile) error

	SaveTransaction(ctx context.Context, t Transaction) error
	UpdateTransaction(ctx context.Context, userID string, t Transaction) error
	DeleteTransaction(ctx context.Context, userID string, transactionID string) error
	GetTransactionByID(ctx context.Context, userID string, transactionID string) (Transaction, error)
	GetFilteredTransactions(ctx context.Context, userID string, filters *TransactionFilter) ([]Transaction, error)
	CountTransactions(ctx context.Context, userID string) (int, error)
	ReplaceTransactions(ctx context.Context, userID string, ts []Transaction) error
}

// LocalState is the named local slot that holds transactions recorded before
// the first sign-in. It is drained into hosted storage at login.
type LocalState interface {
	Load() ([]Transaction, error)
	Clear() error
}

type Tracker struct {
	storage   Storage
	converter rates.Converter
	local     LocalState
}

func NewTracker(s Storage, c rates.Converter, local LocalState) Tracker {
	return Tracker{
		storage:   s,
		converter: c,
		local:     local,
	}
}

// --- USERS & SESSIONS --- //

func (tr *Tracker) SaveUser(ctx context.Context, newUser auth.NewUser) (string, error) {
	isUserExists, err := tr.storage.IsUserExists(ctx, newUser.UserName)
	if err != nil {
		return "", fmt.Errorf("failed to check username availability: %w", err)
	}
	if isUserExists {
		return "", appErrors.ErrorResponse{
			Code:    appErrors.ErrConflict,
			Message: fmt.Sprintf("This '%s' username already taken.", newUser.UserName),
		}
	}
	isEmailTaken, err := tr.storage.IsEmailTaken(ctx, newUser.Email)
	if err != nil {
		return "", fmt.Errorf("failed to check email availability: %w", err)
	}
	if isEmailTaken {
		return "", appErrors.ErrorResponse{
			Code:    appErrors.ErrConflict,
			Message: fmt.Sprintf("This '%s' email address already taken, try to register with another email.", newUser.Email),
		}
	}

	hashedPassword, err := auth.HashPassword(newUser.PasswordPlain)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := auth.User{
		ID:             uuid.New().String(),
		UserName:       strings.ToLower(newUser.UserName),
		Email:          strings.ToLower(newUser.Email),
		PasswordHashed: hashedPassword,
		CreatedAt:      time.Now().UTC(),
	}

	if err := tr.storage.SaveUser(ctx, user); err != nil {
		return "", fmt.Errorf("failed to registration: %w", err)
	}

	credentials := auth.UserCredentialsPure{
		UserName:      newUser.UserName,
		PasswordPlain: newUser.PasswordPlain,
	}

	token, err := tr.GenerateSession(ctx, credentials)
	if err != nil {
		return "", fmt.Errorf("registration successfully but failed to generate session: %w | try login", err)
	}
	return token, nil
}

func (tr *Tracker) GenerateSession(ctx context.Context, credentials auth.UserCredentialsPure) (string, error) {
	user, err := tr.storage.ValidateUser(ctx, credentials)
	if err != nil {
		return "", fmt.Errorf("%w", err)
	}

	tokenByte := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, tokenByte); err != nil {
		return "", fmt.Errorf("failed to generate new session: %w", err)
	}

	token := hex.EncodeToString(tokenByte)

	now := time.Now().UTC()
	session := auth.Session{
		ID:        uuid.New().String(),
		Token:     token,
		CreatedAt: now,
		ExpireAt:  now.AddDate(0, 3, 0),
		UserID:    user.ID,
	}

	if err := tr.storage.SaveSession(ctx, session); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}

	tr.migrateLocalState(ctx, user.ID)

	return token, nil
}

// migrateLocalState drains the offline slot into hosted storage on sign-in.
// The hosted store wins when it already holds transactions; there is no merge.
// A migration failure is logged and never blocks the login itself.
func (tr *Tracker) migrateLocalState(ctx context.Context, userID string) {
	if tr.local == nil {
		return
	}

	local, err := tr.local.Load()
	if err != nil {
		logging.Logger.Warnf("failed to load local state during login: %v", err)
		return
	}
	if len(local) == 0 {
		return
	}

	count, err := tr.storage.CountTransactions(ctx, userID)
	if err != nil {
		logging.Logger.Warnf("failed to count hosted transactions during local migration: %v", err)
		return
	}
	if count > 0 {
		logging.Logger.Infof("hosted store already has %d transactions, skipping local migration", count)
		return
	}

	for i := range local {
		local[i].CreatedBy = userID
	}
	if err := tr.storage.ReplaceTransactions(ctx, userID, local); err != nil {
		logging.Logger.Warnf("failed to migrate local state to hosted storage: %v", err)
		return
	}
	if err := tr.local.Clear(); err != nil {
		logging.Logger.Warnf("local state migrated but slot cleanup failed: %v", err)
	}
	logging.Logger.Infof("migrated %d local transactions into hosted storage", len(local))
}

func (tr *Tracker) CheckSession(ctx context.Context, token string) (string, error) {
	session, err := tr.storage.GetSessionByToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("failed to get session by token: %w", err)
	}

	now := time.Now().UTC()
	if session.ExpireAt.Before(now) {
		return "", appErrors.ErrorResponse{
			Code:    appErrors.ErrAuth,
			Message: "Your session expired, please login again.",
		}
	}

	// sliding expiry: renew sessions that are about to run out
	daysUntilExpiry := int(session.ExpireAt.Sub(now).Hours() / 24)
	if daysUntilExpiry <= 5 {
		newExpireAt := now.AddDate(0, 1, 0)
		if err := tr.storage.UpdateSession(ctx, session.UserID, newExpireAt); err != nil {
			return "", fmt.Errorf("failed to update session: %w", err)
		}
	}

	return session.UserID, nil
}

func (tr *Tracker) LogoutUser(ctx context.Context, userID string, token string) error {
	if err := tr.storage.DeleteSession(ctx, userID, token); err != nil {
		return err
	}
	return nil
}

// --- PROFILE --- //

func (tr *Tracker) GetProfile(ctx context.Context, userID string) (Profile, error) {
	profile, err := tr.storage.GetProfile(ctx, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

func (tr *Tracker) UpdateProfile(ctx context.Context, userID string, fields UpdateProfileRequest) (Profile, error) {
	baseCurrency := money.NormalizeCurrency(fields.BaseCurrency)
	if !money.IsValidCurrency(baseCurrency) {
		return Profile{}, appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("Invalid base currency: %s", fields.BaseCurrency),
		}
	}
	if fields.MonthlyIncomeTarget.IsNegative() {
		return Profile{}, appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: "Monthly income target cannot be negative.",
		}
	}
	if !fields.BackupMode.IsValid() {
		return Profile{}, appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("Invalid backup mode: %s, allowed modes are: manual and automatic", fields.BackupMode),
		}
	}

	profile, err := tr.storage.GetProfile(ctx, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}

	profile.BaseCurrency = baseCurrency
	profile.MonthlyIncomeTarget = fields.MonthlyIncomeTarget
	profile.BackupMode = fields.BackupMode

	if err := tr.storage.UpdateProfile(ctx, profile); err != nil {
		return Profile{}, fmt.Errorf("failed to update profile: %w", err)
	}
	return profile, nil
}

// --- TRANSACTIONS --- //

func validateTransactionFields(t TransactionRequest) error {
	if !t.Type.IsValid() {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("Invalid transaction type: %s, allowed types are: income, expense and investment", t.Type),
		}
	}
	if !t.Amount.IsPositive() {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: "Transaction amount must be greater than zero.",
		}
	}
	if t.Amount.GreaterThan(maxTransactionAmount) {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("Maximum allowed amount per transaction is: %s", maxTransactionAmount),
		}
	}
	if !money.IsValidCurrency(t.Currency) {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("Invalid currency code: %s", t.Currency),
		}
	}
	if t.Category == "" {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: "Transaction category is required.",
		}
	}
	if len(t.Category) > MAX_TRANSACTION_CATEGORY_LENGTH {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("Category so long, maximum allowed length is: %d", MAX_TRANSACTION_CATEGORY_LENGTH),
		}
	}
	if len(t.Description) > MAX_TRANSACTION_DESCRIPTION_LENGTH {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("Description so long, maximum allowed length is: %d", MAX_TRANSACTION_DESCRIPTION_LENGTH),
		}
	}
	if t.Date.IsZero() {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: "Transaction date is required.",
		}
	}
	return nil
}

func (tr *Tracker) SaveTransaction(ctx context.Context, userID string, transaction TransactionRequest) (Transaction, error) {
	if err := validateTransactionFields(transaction); err != nil {
		return Transaction{}, err
	}

	now := time.Now().UTC()
	txn := Transaction{
		ID:          uuid.New().String(),
		Type:        transaction.Type,
		Amount:      transaction.Amount,
		Currency:    money.NormalizeCurrency(transaction.Currency),
		Category:    transaction.Category,
		Description: transaction.Description,
		Date:        transaction.Date,
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := tr.storage.SaveTransaction(ctx, txn); err != nil {
		return Transaction{}, fmt.Errorf("failed to save transaction to db: %w", err)
	}
	return txn, nil
}

func (tr *Tracker) UpdateTransaction(ctx context.Context, userID string, fields UpdateTransactionRequest) (Transaction, error) {
	request := TransactionRequest{
		Type:        fields.Type,
		Amount:      fields.Amount,
		Currency:    fields.Currency,
		Category:    fields.Category,
		Description: fields.Description,
		Date:        fields.Date,
	}
	if err := validateTransactionFields(request); err != nil {
		return Transaction{}, err
	}

	existing, err := tr.storage.GetTransactionByID(ctx, userID, fields.ID)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to get transaction for update: %w", err)
	}

	existing.Type = fields.Type
	existing.Amount = fields.Amount
	existing.Currency = money.NormalizeCurrency(fields.Currency)
	existing.Category = fields.Category
	existing.Description = fields.Description
	existing.Date = fields.Date
	existing.UpdatedAt = time.Now().UTC()

	if err := tr.storage.UpdateTransaction(ctx, userID, existing); err != nil {
		return Transaction{}, fmt.Errorf("failed to update transaction: %w", err)
	}
	return existing, nil
}

func (tr *Tracker) DeleteTransaction(ctx context.Context, userID string, transactionID string) error {
	if err := tr.storage.DeleteTransaction(ctx, userID, transactionID); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

func (tr *Tracker) GetTransactionByID(ctx context.Context, userID string, transactionID string) (Transaction, error) {
	t, err := tr.storage.GetTransactionByID(ctx, userID, transactionID)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to get transaction by id: %w", err)
	}
	return t, nil
}

func (tr *Tracker) GetFilteredTransactions(ctx context.Context, userID string, filters *TransactionFilter) ([]Transaction, error) {
	ts, err := tr.storage.GetFilteredTransactions(ctx, userID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	return ts, nil
}
