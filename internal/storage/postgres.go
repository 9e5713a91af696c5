package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	appErrors "github.com/mishacol/balance-tracker/apperrors"
	"github.com/mishacol/balance-tracker/internal/auth"
	"github.com/mishacol/balance-tracker/internal/backup"
	"github.com/mishacol/balance-tracker/internal/contextutil"
	"github.com/mishacol/balance-tracker/internal/finance"
	"github.com/mishacol/balance-tracker/internal/money"
	"github.com/mishacol/balance-tracker/logging"
)

const uniqueViolation = "23505" // Postgres duplicate key error code

// --- INIT START --- //

func Init() (*sql.DB, error) {
	dsn := os.Getenv("FULL_DSN")
	if dsn == "" {
		username := os.Getenv("DB_USER")
		password := os.Getenv("DB_PASS")
		host := os.Getenv("DB_HOST")
		port := os.Getenv("DB_PORT")
		dbname := os.Getenv("DB_NAME")
		if dbname == "" {
			dbname = "balance_tracker"
		}
		if username == "" || host == "" || port == "" {
			return nil, fmt.Errorf("missing required DB environment variables")
		}
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", username, password, host, port, dbname)
	}

	logging.Logger.Info("Connecting to database...")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database handle: %v", err)
	}

	retryBackoff := backoff.NewExponentialBackOff()
	retryBackoff.MaxElapsedTime = 45 * time.Second
	err = backoff.RetryNotify(db.Ping, retryBackoff, func(err error, next time.Duration) {
		logging.Logger.Warnf("Database not ready, retrying in %s...", next.Round(time.Second))
	})
	if err != nil {
		return nil, fmt.Errorf("database unreachable after multiple attempts: %v", err)
	}

	logging.Logger.Info("Connected to database successfully")
	logging.Logger.Info("Running migrations...")

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	return db, nil
}

func runMigrations(db *sql.DB) error {
	migrationFiles, err := getMigrationFiles("db/migrations")
	if err != nil {
		return fmt.Errorf("failed to get migration files: %v", err)
	}

	lastAppliedMigration, err := getLastAppliedMigration(db)
	if err != nil {
		return fmt.Errorf("failed to get last applied migration name: %v", err)
	}

	newMigrations := filterNewMigrations(migrationFiles, lastAppliedMigration)

	if len(newMigrations) == 0 {
		logging.Logger.Info("no new migration")
		return nil
	}

	for _, migrationFile := range newMigrations {
		logging.Logger.Info("applying migration: ", migrationFile)
		migrationContent, err := os.ReadFile(filepath.Join("db/migrations/", migrationFile))
		if err != nil {
			return fmt.Errorf("failed to read this '%s' migration file, error: %v", migrationFile, err)
		}

		if err := applyMigration(db, migrationFile, string(migrationContent)); err != nil {
			return fmt.Errorf("failed to apply this '%s' migration file, error: %v", migrationFile, err)
		}
	}

	logging.Logger.Info("all migrations applied successfully")
	return nil
}

func getMigrationFiles(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)
	return migrationFiles, nil
}

func getLastAppliedMigration(db *sql.DB) (string, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS migration (
        id SERIAL PRIMARY KEY,
        migration_name VARCHAR(255) NOT NULL UNIQUE,
        applied_at TIMESTAMPTZ DEFAULT NOW()
    );`)

	if err != nil {
		return "", err
	}

	var lastMigration string
	err = db.QueryRow("SELECT migration_name FROM migration ORDER BY migration_name DESC LIMIT 1").Scan(&lastMigration)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return lastMigration, err
}

func filterNewMigrations(all []string, lastApplied string) []string {
	if lastApplied == "" {
		return all
	}

	var result []string
	for _, migration := range all {
		if migration > lastApplied {
			result = append(result, migration)
		}
	}
	return result
}

func applyMigration(db *sql.DB, name, sqlContent string) error {
	txn, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	statements := strings.Split(sqlContent, ";")

	for _, statement := range statements {
		trimmedStmt := strings.TrimSpace(statement)
		if trimmedStmt == "" {
			continue
		}

		if _, err := txn.Exec(trimmedStmt); err != nil {
			txn.Rollback()
			return fmt.Errorf("migration statement failed: %w\nStatement: %s", err, trimmedStmt)
		}
	}

	if _, err := txn.Exec("INSERT INTO migration (migration_name) VALUES ($1)", name); err != nil {
		txn.Rollback()
		return fmt.Errorf("failed to record migration name: %w", err)
	}

	return txn.Commit()
}

// --- INIT END --- //

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

var errInternal = appErrors.ErrorResponse{
	Code:    appErrors.ErrInternal,
	Message: "Something went wrong, try again later.",
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// --- USERS & SESSIONS --- //

func (pg *PostgresStorage) SaveUser(ctx context.Context, user auth.User) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	txn, err := pg.db.BeginTx(ctx, nil)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to begin tx in Storage.SaveUser() | Error: %v", traceID, err)
		return errInternal
	}

	query := "INSERT INTO users (id, username, email, hashed_password, created_at) VALUES ($1, $2, $3, $4, $5);"
	if _, err := txn.ExecContext(ctx, query, user.ID, user.UserName, user.Email, user.PasswordHashed, user.CreatedAt); err != nil {
		txn.Rollback()
		if isUniqueViolation(err) {
			return appErrors.ErrorResponse{
				Code:    appErrors.ErrConflict,
				Message: "The username or email already taken.",
			}
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to save user in Storage.SaveUser() | Error: %v", traceID, err)
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInternal,
			Message: "Registration failed, try again later.",
		}
	}

	// every user gets a profile row with defaults immediately
	profileQuery := "INSERT INTO profiles (user_id, base_currency, monthly_income_target, backup_mode) VALUES ($1, $2, $3, $4);"
	if _, err := txn.ExecContext(ctx, profileQuery, user.ID, "USD", "0", finance.BackupModeManual); err != nil {
		txn.Rollback()
		logging.Logger.Errorf("[TraceID=%s] | failed to save default profile in Storage.SaveUser() | Error: %v", traceID, err)
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInternal,
			Message: "Registration failed, try again later.",
		}
	}

	if err := txn.Commit(); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to commit tx in Storage.SaveUser() | Error: %v", traceID, err)
		return errInternal
	}
	return nil
}

func (pg *PostgresStorage) ValidateUser(ctx context.Context, credentials auth.UserCredentialsPure) (auth.User, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "SELECT id, username, email, hashed_password, created_at FROM users WHERE username = $1;"
	var user auth.User
	err := pg.db.QueryRowContext(ctx, query, strings.ToLower(credentials.UserName)).Scan(
		&user.ID,
		&user.UserName,
		&user.Email,
		&user.PasswordHashed,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.User{}, appErrors.ErrorResponse{
				Code:    appErrors.ErrAuth,
				Message: "Username or password is wrong.",
			}
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to get user in Storage.ValidateUser() | Error: %v", traceID, err)
		return auth.User{}, errInternal
	}

	if !auth.ComparePasswords(user.PasswordHashed, credentials.PasswordPlain) {
		return auth.User{}, appErrors.ErrorResponse{
			Code:    appErrors.ErrAuth,
			Message: "Username or password is wrong.",
		}
	}
	return user, nil
}

func (pg *PostgresStorage) IsUserExists(ctx context.Context, username string) (bool, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM users WHERE username = $1);"
	if err := pg.db.QueryRowContext(ctx, query, strings.ToLower(username)).Scan(&exists); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to check user existence in Storage.IsUserExists() | Error: %v", traceID, err)
		return false, errInternal
	}
	return exists, nil
}

func (pg *PostgresStorage) IsEmailTaken(ctx context.Context, email string) (bool, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM users WHERE email = $1);"
	if err := pg.db.QueryRowContext(ctx, query, strings.ToLower(email)).Scan(&exists); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to check email existence in Storage.IsEmailTaken() | Error: %v", traceID, err)
		return false, errInternal
	}
	return exists, nil
}

func (pg *PostgresStorage) SaveSession(ctx context.Context, session auth.Session) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "INSERT INTO sessions (id, token, created_at, expire_at, user_id) VALUES ($1, $2, $3, $4, $5);"
	if _, err := pg.db.ExecContext(ctx, query, session.ID, session.Token, session.CreatedAt, session.ExpireAt, session.UserID); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to save session in Storage.SaveSession() | Error: %v", traceID, err)
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInternal,
			Message: "Failed to create session, try again later.",
		}
	}
	return nil
}

func (pg *PostgresStorage) GetSessionByToken(ctx context.Context, token string) (auth.Session, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "SELECT id, token, created_at, expire_at, user_id FROM sessions WHERE token = $1;"
	var session auth.Session
	err := pg.db.QueryRowContext(ctx, query, token).Scan(
		&session.ID,
		&session.Token,
		&session.CreatedAt,
		&session.ExpireAt,
		&session.UserID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.Session{}, appErrors.ErrorResponse{
				Code:    appErrors.ErrAuth,
				Message: "Session does not exist, please login.",
			}
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to get session in Storage.GetSessionByToken() | Error: %v", traceID, err)
		return auth.Session{}, errInternal
	}
	return session, nil
}

func (pg *PostgresStorage) UpdateSession(ctx context.Context, userID string, expireAt time.Time) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "UPDATE sessions SET expire_at = $1 WHERE user_id = $2;"
	res, err := pg.db.ExecContext(ctx, query, expireAt, userID)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to update session in Storage.UpdateSession() | Error: %v", traceID, err)
		return errInternal
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to check affected rows in Storage.UpdateSession() | Error: %v", traceID, err)
		return errInternal
	}
	if rowsAffected == 0 {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrAuth,
			Message: "Session does not exist, please login.",
		}
	}
	return nil
}

func (pg *PostgresStorage) DeleteSession(ctx context.Context, userID string, token string) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "DELETE FROM sessions WHERE user_id = $1 AND token = $2;"
	if _, err := pg.db.ExecContext(ctx, query, userID, token); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to delete session in Storage.DeleteSession() | Error: %v", traceID, err)
		return errInternal
	}
	return nil
}

// --- PROFILES --- //

func (pg *PostgresStorage) GetProfile(ctx context.Context, userID string) (finance.Profile, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := `SELECT p.user_id, u.email, u.username, p.base_currency, p.monthly_income_target, p.backup_mode
		FROM profiles p JOIN users u ON u.id = p.user_id
		WHERE p.user_id = $1;`

	var row dbProfile
	err := pg.db.QueryRowContext(ctx, query, userID).Scan(
		&row.UserID,
		&row.Email,
		&row.UserName,
		&row.BaseCurrency,
		&row.MonthlyIncomeTarget,
		&row.BackupMode,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return finance.Profile{}, appErrors.ErrorResponse{
				Code:    appErrors.ErrNotFound,
				Message: "Profile not found.",
			}
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to get profile in Storage.GetProfile() | Error: %v", traceID, err)
		return finance.Profile{}, errInternal
	}

	target, err := decimal.NewFromString(row.MonthlyIncomeTarget)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | corrupted monthly income target in Storage.GetProfile() | Error: %v", traceID, err)
		return finance.Profile{}, errInternal
	}

	return finance.Profile{
		UserID:              row.UserID,
		Email:               row.Email,
		UserName:            row.UserName,
		BaseCurrency:        row.BaseCurrency,
		MonthlyIncomeTarget: target,
		BackupMode:          finance.BackupMode(row.BackupMode),
	}, nil
}

func (pg *PostgresStorage) UpdateProfile(ctx context.Context, profile finance.Profile) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "UPDATE profiles SET base_currency = $1, monthly_income_target = $2, backup_mode = $3 WHERE user_id = $4;"
	res, err := pg.db.ExecContext(ctx, query, profile.BaseCurrency, profile.MonthlyIncomeTarget.String(), string(profile.BackupMode), profile.UserID)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to update profile in Storage.UpdateProfile() | Error: %v", traceID, err)
		return errInternal
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to check affected rows in Storage.UpdateProfile() | Error: %v", traceID, err)
		return errInternal
	}
	if rowsAffected == 0 {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrNotFound,
			Message: "Profile not found.",
		}
	}
	return nil
}

// --- TRANSACTIONS --- //

func rowToTransaction(row dbTransaction) (finance.Transaction, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return finance.Transaction{}, fmt.Errorf("corrupted amount %q: %w", row.Amount, err)
	}

	return finance.Transaction{
		ID:          row.ID,
		Type:        finance.TransactionType(row.Type),
		Amount:      amount,
		Currency:    row.Currency,
		Category:    row.Category,
		Description: row.Description,
		Date:        money.DateOf(row.Date),
		CreatedBy:   row.CreatedBy,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

func (pg *PostgresStorage) SaveTransaction(ctx context.Context, t finance.Transaction) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := `INSERT INTO transactions (id, type, amount, currency, category, description, date, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`
	_, err := pg.db.ExecContext(ctx, query,
		t.ID, string(t.Type), t.Amount.String(), t.Currency, t.Category, t.Description,
		t.Date.Time(), t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return appErrors.ErrorResponse{
				Code:    appErrors.ErrConflict,
				Message: "The transaction already exists.",
			}
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to save transaction in Storage.SaveTransaction() | Error: %v", traceID, err)
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInternal,
			Message: "Failed to save transaction, try again later.",
		}
	}
	return nil
}

func (pg *PostgresStorage) UpdateTransaction(ctx context.Context, userID string, t finance.Transaction) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := `UPDATE transactions
		SET type = $1, amount = $2, currency = $3, category = $4, description = $5, date = $6, updated_at = $7
		WHERE id = $8 AND created_by = $9;`
	res, err := pg.db.ExecContext(ctx, query,
		string(t.Type), t.Amount.String(), t.Currency, t.Category, t.Description,
		t.Date.Time(), t.UpdatedAt, t.ID, userID,
	)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to update transaction in Storage.UpdateTransaction() | Error: %v", traceID, err)
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInternal,
			Message: "Failed to update transaction, try again later.",
		}
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to check affected rows in Storage.UpdateTransaction() | Error: %v", traceID, err)
		return errInternal
	}
	if rowsAffected == 0 {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrNotFound,
			Message: "Transaction not found.",
		}
	}
	return nil
}

func (pg *PostgresStorage) DeleteTransaction(ctx context.Context, userID string, transactionID string) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "DELETE FROM transactions WHERE id = $1 AND created_by = $2;"
	res, err := pg.db.ExecContext(ctx, query, transactionID, userID)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to delete transaction in Storage.DeleteTransaction() | Error: %v", traceID, err)
		return errInternal
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to check affected rows in Storage.DeleteTransaction() | Error: %v", traceID, err)
		return errInternal
	}
	if rowsAffected == 0 {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrNotFound,
			Message: "Transaction not found.",
		}
	}
	return nil
}

func (pg *PostgresStorage) GetTransactionByID(ctx context.Context, userID string, transactionID string) (finance.Transaction, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := `SELECT id, type, amount, currency, category, description, date, created_by, created_at, updated_at
		FROM transactions WHERE id = $1 AND created_by = $2;`

	var row dbTransaction
	err := pg.db.QueryRowContext(ctx, query, transactionID, userID).Scan(
		&row.ID, &row.Type, &row.Amount, &row.Currency, &row.Category,
		&row.Description, &row.Date, &row.CreatedBy, &row.CreatedAt, &row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return finance.Transaction{}, appErrors.ErrorResponse{
				Code:    appErrors.ErrNotFound,
				Message: "Transaction not found.",
			}
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to get transaction in Storage.GetTransactionByID() | Error: %v", traceID, err)
		return finance.Transaction{}, errInternal
	}

	t, err := rowToTransaction(row)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to map transaction row in Storage.GetTransactionByID() | Error: %v", traceID, err)
		return finance.Transaction{}, errInternal
	}
	return t, nil
}

func (pg *PostgresStorage) GetFilteredTransactions(ctx context.Context, userID string, filters *finance.TransactionFilter) ([]finance.Transaction, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := `SELECT id, type, amount, currency, category, description, date, created_by, created_at, updated_at
		FROM transactions WHERE created_by = $1`
	args := []interface{}{userID}

	if filters != nil && !filters.IsAllNil {
		if len(filters.Types) > 0 {
			types := make([]string, 0, len(filters.Types))
			for _, t := range filters.Types {
				types = append(types, string(t))
			}
			args = append(args, pq.Array(types))
			query += fmt.Sprintf(" AND type = ANY($%d)", len(args))
		}
		if len(filters.Categories) > 0 {
			args = append(args, pq.Array(filters.Categories))
			query += fmt.Sprintf(" AND category = ANY($%d)", len(args))
		}
		if filters.Currency != "" {
			args = append(args, filters.Currency)
			query += fmt.Sprintf(" AND currency = $%d", len(args))
		}
		if !filters.From.IsZero() {
			args = append(args, filters.From.Time())
			query += fmt.Sprintf(" AND date >= $%d", len(args))
		}
		if !filters.To.IsZero() {
			args = append(args, filters.To.Time())
			query += fmt.Sprintf(" AND date <= $%d", len(args))
		}
	}

	query += " ORDER BY date DESC, created_at DESC;"

	rows, err := pg.db.QueryContext(ctx, query, args...)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to get transactions in Storage.GetFilteredTransactions() | Error: %v", traceID, err)
		return nil, appErrors.ErrorResponse{
			Code:    appErrors.ErrInternal,
			Message: "Failed to get transactions, try again later.",
		}
	}
	return pg.processTransactionRows(ctx, rows)
}

func (pg *PostgresStorage) processTransactionRows(ctx context.Context, rows *sql.Rows) ([]finance.Transaction, error) {
	traceID := contextutil.TraceIDFromContext(ctx)
	defer rows.Close()

	var transactions []finance.Transaction
	for rows.Next() {
		var row dbTransaction
		err := rows.Scan(
			&row.ID, &row.Type, &row.Amount, &row.Currency, &row.Category,
			&row.Description, &row.Date, &row.CreatedBy, &row.CreatedAt, &row.UpdatedAt,
		)
		if err != nil {
			logging.Logger.Errorf("[TraceID=%s] | failed to scan row in Storage.processTransactionRows() | Error: %v", traceID, err)
			return nil, errInternal
		}

		t, err := rowToTransaction(row)
		if err != nil {
			logging.Logger.Errorf("[TraceID=%s] | failed to map row in Storage.processTransactionRows() | Error: %v", traceID, err)
			return nil, errInternal
		}
		transactions = append(transactions, t)
	}

	if err := rows.Err(); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to iterate rows in Storage.processTransactionRows() | Error: %v", traceID, err)
		return nil, errInternal
	}
	return transactions, nil
}

func (pg *PostgresStorage) ListTransactions(ctx context.Context, userID string) ([]finance.Transaction, error) {
	return pg.GetFilteredTransactions(ctx, userID, &finance.TransactionFilter{IsAllNil: true})
}

func (pg *PostgresStorage) CountTransactions(ctx context.Context, userID string) (int, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	var count int
	query := "SELECT COUNT(*) FROM transactions WHERE created_by = $1;"
	if err := pg.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to count transactions in Storage.CountTransactions() | Error: %v", traceID, err)
		return 0, errInternal
	}
	return count, nil
}

// ReplaceTransactions swaps the user's whole transaction set atomically.
// Restore and import both rely on the no-merge semantics here.
func (pg *PostgresStorage) ReplaceTransactions(ctx context.Context, userID string, ts []finance.Transaction) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	txn, err := pg.db.BeginTx(ctx, nil)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to begin tx in Storage.ReplaceTransactions() | Error: %v", traceID, err)
		return errInternal
	}

	if _, err := txn.ExecContext(ctx, "DELETE FROM transactions WHERE created_by = $1;", userID); err != nil {
		txn.Rollback()
		logging.Logger.Errorf("[TraceID=%s] | failed to clear transactions in Storage.ReplaceTransactions() | Error: %v", traceID, err)
		return errInternal
	}

	insertQuery := `INSERT INTO transactions (id, type, amount, currency, category, description, date, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`
	for _, t := range ts {
		_, err := txn.ExecContext(ctx, insertQuery,
			t.ID, string(t.Type), t.Amount.String(), t.Currency, t.Category, t.Description,
			t.Date.Time(), userID, t.CreatedAt, t.UpdatedAt,
		)
		if err != nil {
			txn.Rollback()
			logging.Logger.Errorf("[TraceID=%s] | failed to insert transaction in Storage.ReplaceTransactions() | Error: %v", traceID, err)
			return appErrors.ErrorResponse{
				Code:    appErrors.ErrInternal,
				Message: "Failed to replace transactions, nothing was changed.",
			}
		}
	}

	if err := txn.Commit(); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to commit tx in Storage.ReplaceTransactions() | Error: %v", traceID, err)
		return errInternal
	}
	return nil
}

// --- BACKUPS --- //

func (pg *PostgresStorage) SaveBackup(ctx context.Context, snapshot backup.Snapshot) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	payload, err := json.Marshal(snapshot.Transactions)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to marshal backup payload in Storage.SaveBackup() | Error: %v", traceID, err)
		return errInternal
	}

	query := `INSERT INTO backups (id, created_at, version, description, mode, created_by, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7);`
	_, err = pg.db.ExecContext(ctx, query,
		snapshot.ID, snapshot.CreatedAt, snapshot.Version, snapshot.Description,
		string(snapshot.Mode), snapshot.OwnerID, payload,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return appErrors.ErrorResponse{
				Code:    appErrors.ErrConflict,
				Message: "The backup already exists.",
			}
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to save backup in Storage.SaveBackup() | Error: %v", traceID, err)
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInternal,
			Message: "Failed to save backup, try again later.",
		}
	}
	return nil
}

func rowToSnapshot(row dbBackup) (backup.Snapshot, error) {
	snapshot := backup.Snapshot{
		ID:          row.ID,
		CreatedAt:   row.CreatedAt,
		Version:     row.Version,
		Description: row.Description,
		Mode:        finance.BackupMode(row.Mode),
		OwnerID:     row.CreatedBy,
	}
	if err := json.Unmarshal(row.Payload, &snapshot.Transactions); err != nil {
		return backup.Snapshot{}, fmt.Errorf("corrupted backup payload: %w", err)
	}
	return snapshot, nil
}

func (pg *PostgresStorage) ListBackups(ctx context.Context, userID string) ([]backup.Snapshot, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := `SELECT id, created_at, version, description, mode, created_by, payload
		FROM backups WHERE created_by = $1 ORDER BY created_at DESC;`
	rows, err := pg.db.QueryContext(ctx, query, userID)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to list backups in Storage.ListBackups() | Error: %v", traceID, err)
		return nil, appErrors.ErrorResponse{
			Code:    appErrors.ErrInternal,
			Message: "Failed to get backups, try again later.",
		}
	}
	defer rows.Close()

	var snapshots []backup.Snapshot
	for rows.Next() {
		var row dbBackup
		err := rows.Scan(&row.ID, &row.CreatedAt, &row.Version, &row.Description, &row.Mode, &row.CreatedBy, &row.Payload)
		if err != nil {
			logging.Logger.Errorf("[TraceID=%s] | failed to scan backup row in Storage.ListBackups() | Error: %v", traceID, err)
			return nil, errInternal
		}

		snapshot, err := rowToSnapshot(row)
		if err != nil {
			logging.Logger.Errorf("[TraceID=%s] | failed to map backup row in Storage.ListBackups() | Error: %v", traceID, err)
			return nil, errInternal
		}
		snapshots = append(snapshots, snapshot)
	}

	if err := rows.Err(); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to iterate backup rows in Storage.ListBackups() | Error: %v", traceID, err)
		return nil, errInternal
	}
	return snapshots, nil
}

func (pg *PostgresStorage) GetBackup(ctx context.Context, userID string, backupID string) (backup.Snapshot, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := `SELECT id, created_at, version, description, mode, created_by, payload
		FROM backups WHERE id = $1 AND created_by = $2;`

	var row dbBackup
	err := pg.db.QueryRowContext(ctx, query, backupID, userID).Scan(
		&row.ID, &row.CreatedAt, &row.Version, &row.Description, &row.Mode, &row.CreatedBy, &row.Payload,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return backup.Snapshot{}, appErrors.ErrorResponse{
				Code:    appErrors.ErrNotFound,
				Message: "Backup not found.",
			}
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to get backup in Storage.GetBackup() | Error: %v", traceID, err)
		return backup.Snapshot{}, errInternal
	}

	snapshot, err := rowToSnapshot(row)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to map backup row in Storage.GetBackup() | Error: %v", traceID, err)
		return backup.Snapshot{}, errInternal
	}
	return snapshot, nil
}

func (pg *PostgresStorage) DeleteBackup(ctx context.Context, userID string, backupID string) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "DELETE FROM backups WHERE id = $1 AND created_by = $2;"
	res, err := pg.db.ExecContext(ctx, query, backupID, userID)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to delete backup in Storage.DeleteBackup() | Error: %v", traceID, err)
		return errInternal
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to check affected rows in Storage.DeleteBackup() | Error: %v", traceID, err)
		return errInternal
	}
	if rowsAffected == 0 {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrNotFound,
			Message: "Backup not found.",
		}
	}
	return nil
}

func (pg *PostgresStorage) ListAutomaticBackupUsers(ctx context.Context) ([]string, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "SELECT user_id FROM profiles WHERE backup_mode = $1;"
	rows, err := pg.db.QueryContext(ctx, query, string(finance.BackupModeAutomatic))
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to list automatic backup users in Storage.ListAutomaticBackupUsers() | Error: %v", traceID, err)
		return nil, errInternal
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			logging.Logger.Errorf("[TraceID=%s] | failed to scan user id in Storage.ListAutomaticBackupUsers() | Error: %v", traceID, err)
			return nil, errInternal
		}
		userIDs = append(userIDs, userID)
	}

	if err := rows.Err(); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to iterate rows in Storage.ListAutomaticBackupUsers() | Error: %v", traceID, err)
		return nil, errInternal
	}
	return userIDs, nil
}
