// Package backup manages versioned snapshots of a user's transaction state:
// creation (manual or timer-driven), restore-with-replace, pruning, and the
// export/import document format.
package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/mishacol/balance-tracker/apperrors"
	"github.com/mishacol/balance-tracker/internal/finance"
	"github.com/mishacol/balance-tracker/logging"
)

const (
	// FormatVersion tags snapshots and export documents so older files stay
	// readable if the layout ever changes.
	FormatVersion = "1.0"

	// Prune policy: keep the newest MaxSnapshots and nothing older than MaxAge.
	MaxSnapshots = 20
	MaxAge       = 90 * 24 * time.Hour
)

// Snapshot is one append-only backup row. The transaction array is persisted
// as an opaque JSON blob keyed by user id.
type Snapshot struct {
	ID           string                `json:"id"`
	CreatedAt    time.Time             `json:"createdAt"`
	Version      string                `json:"version"`
	Description  string                `json:"description"`
	Mode         finance.BackupMode    `json:"mode"`
	OwnerID      string                `json:"-"`
	Transactions []finance.Transaction `json:"transactions"`
}

// ExportDocument is the import/export file format.
type ExportDocument struct {
	Transactions      []finance.Transaction `json:"transactions"`
	Backups           []Snapshot            `json:"backups,omitempty"`
	ExportDate        time.Time             `json:"exportDate"`
	Version           string                `json:"version"`
	TotalTransactions int                   `json:"totalTransactions"`
}

// Store is the slice of persistence the manager needs. The Postgres storage
// satisfies it alongside finance.Storage.
type Store interface {
	SaveBackup(ctx context.Context, snapshot Snapshot) error
	ListBackups(ctx context.Context, userID string) ([]Snapshot, error)
	GetBackup(ctx context.Context, userID string, backupID string) (Snapshot, error)
	DeleteBackup(ctx context.Context, userID string, backupID string) error
	ListTransactions(ctx context.Context, userID string) ([]finance.Transaction, error)
	ReplaceTransactions(ctx context.Context, userID string, ts []finance.Transaction) error
	ListAutomaticBackupUsers(ctx context.Context) ([]string, error)
}

type Manager struct {
	store Store
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Create snapshots the user's current transaction set and prunes old rows.
func (m *Manager) Create(ctx context.Context, userID string, description string, mode finance.BackupMode) (Snapshot, error) {
	if !mode.IsValid() {
		return Snapshot{}, appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("Invalid backup mode: %s", mode),
		}
	}

	ts, err := m.store.ListTransactions(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read transactions for backup: %w", err)
	}

	snapshot := Snapshot{
		ID:           uuid.New().String(),
		CreatedAt:    time.Now().UTC(),
		Version:      FormatVersion,
		Description:  description,
		Mode:         mode,
		OwnerID:      userID,
		Transactions: ts,
	}

	if err := m.store.SaveBackup(ctx, snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("failed to save backup: %w", err)
	}

	if err := m.prune(ctx, userID); err != nil {
		// the snapshot itself is safe, pruning can catch up next time
		logging.Logger.Warnf("failed to prune backups for user %s: %v", userID, err)
	}

	return snapshot, nil
}

// List returns the user's snapshots newest first.
func (m *Manager) List(ctx context.Context, userID string) ([]Snapshot, error) {
	snapshots, err := m.store.ListBackups(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	return snapshots, nil
}

// Restore replaces the user's entire transaction set with the snapshot
// contents. There is no merge.
func (m *Manager) Restore(ctx context.Context, userID string, backupID string) (int, error) {
	snapshot, err := m.store.GetBackup(ctx, userID, backupID)
	if err != nil {
		return 0, fmt.Errorf("failed to get backup: %w", err)
	}

	for i := range snapshot.Transactions {
		snapshot.Transactions[i].CreatedBy = userID
	}

	if err := m.store.ReplaceTransactions(ctx, userID, snapshot.Transactions); err != nil {
		return 0, fmt.Errorf("failed to restore backup: %w", err)
	}
	return len(snapshot.Transactions), nil
}

func (m *Manager) Delete(ctx context.Context, userID string, backupID string) error {
	if err := m.store.DeleteBackup(ctx, userID, backupID); err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}
	return nil
}

// Export builds the download document from the user's current state.
func (m *Manager) Export(ctx context.Context, userID string, includeBackups bool) (ExportDocument, error) {
	ts, err := m.store.ListTransactions(ctx, userID)
	if err != nil {
		return ExportDocument{}, fmt.Errorf("failed to read transactions for export: %w", err)
	}

	doc := ExportDocument{
		Transactions:      ts,
		ExportDate:        time.Now().UTC(),
		Version:           FormatVersion,
		TotalTransactions: len(ts),
	}

	if includeBackups {
		snapshots, err := m.store.ListBackups(ctx, userID)
		if err != nil {
			return ExportDocument{}, fmt.Errorf("failed to read backups for export: %w", err)
		}
		doc.Backups = snapshots
	}

	return doc, nil
}

// Import replaces the user's transactions with the document contents and
// appends any bundled snapshots. IDs are preserved so an export/import
// round-trip reproduces an equal set.
func (m *Manager) Import(ctx context.Context, userID string, doc ExportDocument) (int, error) {
	if doc.Version == "" {
		return 0, appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: "Import file is missing a version tag.",
		}
	}
	if doc.TotalTransactions != len(doc.Transactions) {
		return 0, appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("Import file is corrupted: totalTransactions says %d but %d transactions present.", doc.TotalTransactions, len(doc.Transactions)),
		}
	}
	for _, t := range doc.Transactions {
		if t.ID == "" || !t.Type.IsValid() {
			return 0, appErrors.ErrorResponse{
				Code:    appErrors.ErrInvalidInput,
				Message: "Import file contains an invalid transaction.",
			}
		}
	}

	ts := make([]finance.Transaction, len(doc.Transactions))
	copy(ts, doc.Transactions)
	for i := range ts {
		ts[i].CreatedBy = userID
	}

	// snapshots go in first: they are additive, so a failure here leaves the
	// existing transaction set untouched
	inserted := make([]string, 0, len(doc.Backups))
	for _, snapshot := range doc.Backups {
		snapshot.OwnerID = userID
		if snapshot.ID == "" {
			snapshot.ID = uuid.New().String()
		}
		if err := m.store.SaveBackup(ctx, snapshot); err != nil {
			m.rollbackSnapshots(ctx, userID, inserted)
			return 0, fmt.Errorf("failed to import backup %s: %w", snapshot.ID, err)
		}
		inserted = append(inserted, snapshot.ID)
	}

	if err := m.store.ReplaceTransactions(ctx, userID, ts); err != nil {
		m.rollbackSnapshots(ctx, userID, inserted)
		return 0, fmt.Errorf("failed to import transactions: %w", err)
	}

	return len(ts), nil
}

// rollbackSnapshots removes snapshots inserted by a failed import.
func (m *Manager) rollbackSnapshots(ctx context.Context, userID string, ids []string) {
	for _, id := range ids {
		if err := m.store.DeleteBackup(ctx, userID, id); err != nil {
			logging.Logger.Warnf("failed to roll back imported backup %s for user %s: %v", id, userID, err)
		}
	}
}

// prune drops snapshots beyond the count cap or older than the age cap,
// oldest first. List order (newest first) is relied upon here.
func (m *Manager) prune(ctx context.Context, userID string) error {
	snapshots, err := m.store.ListBackups(ctx, userID)
	if err != nil {
		return err
	}

	cutoff := time.Now().UTC().Add(-MaxAge)
	for i, snapshot := range snapshots {
		if i < MaxSnapshots && !snapshot.CreatedAt.Before(cutoff) {
			continue
		}
		if err := m.store.DeleteBackup(ctx, userID, snapshot.ID); err != nil {
			return err
		}
	}
	return nil
}
