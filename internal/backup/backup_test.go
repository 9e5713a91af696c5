package backup

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	appErrors "github.com/mishacol/balance-tracker/apperrors"
	"github.com/mishacol/balance-tracker/internal/finance"
	"github.com/mishacol/balance-tracker/internal/money"
	"github.com/mishacol/balance-tracker/logging"
)

func init() {
	if err := logging.Init("error"); err != nil {
		panic(err)
	}
}

type memStore struct {
	snapshots    []Snapshot
	transactions map[string][]finance.Transaction
	autoUsers    []string

	// per-call failure injection
	saveBackupErr error
	replaceErr    error
	listErr       map[string]error
}

func newMemStore() *memStore {
	return &memStore{transactions: map[string][]finance.Transaction{}}
}

func (s *memStore) SaveBackup(ctx context.Context, snapshot Snapshot) error {
	if s.saveBackupErr != nil {
		return s.saveBackupErr
	}
	s.snapshots = append(s.snapshots, snapshot)
	return nil
}

func (s *memStore) ListBackups(ctx context.Context, userID string) ([]Snapshot, error) {
	var result []Snapshot
	for _, snapshot := range s.snapshots {
		if snapshot.OwnerID == userID {
			result = append(result, snapshot)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *memStore) GetBackup(ctx context.Context, userID string, backupID string) (Snapshot, error) {
	for _, snapshot := range s.snapshots {
		if snapshot.OwnerID == userID && snapshot.ID == backupID {
			return snapshot, nil
		}
	}
	return Snapshot{}, appErrors.ErrorResponse{Code: appErrors.ErrNotFound, Message: "Backup not found."}
}

func (s *memStore) DeleteBackup(ctx context.Context, userID string, backupID string) error {
	for i, snapshot := range s.snapshots {
		if snapshot.OwnerID == userID && snapshot.ID == backupID {
			s.snapshots = append(s.snapshots[:i], s.snapshots[i+1:]...)
			return nil
		}
	}
	return appErrors.ErrorResponse{Code: appErrors.ErrNotFound, Message: "Backup not found."}
}

func (s *memStore) ListTransactions(ctx context.Context, userID string) ([]finance.Transaction, error) {
	if err := s.listErr[userID]; err != nil {
		return nil, err
	}
	return s.transactions[userID], nil
}

func (s *memStore) ReplaceTransactions(ctx context.Context, userID string, ts []finance.Transaction) error {
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.transactions[userID] = ts
	return nil
}

func (s *memStore) ListAutomaticBackupUsers(ctx context.Context) ([]string, error) {
	return s.autoUsers, nil
}

func sampleTransactions(userID string) []finance.Transaction {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	return []finance.Transaction{
		{
			ID:        "txn-1",
			Type:      finance.TypeIncome,
			Amount:    decimal.RequireFromString("2500"),
			Currency:  "USD",
			Category:  "Salary",
			Date:      money.NewDate(2025, time.March, 1),
			CreatedBy: userID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:          "txn-2",
			Type:        finance.TypeExpense,
			Amount:      decimal.RequireFromString("42.75"),
			Currency:    "EUR",
			Category:    "Groceries",
			Description: "weekly shop",
			Date:        money.NewDate(2025, time.March, 8),
			CreatedBy:   userID,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
}

func TestCreateAndList(t *testing.T) {
	store := newMemStore()
	store.transactions["user-1"] = sampleTransactions("user-1")
	manager := NewManager(store)
	ctx := context.Background()

	snapshot, err := manager.Create(ctx, "user-1", "before vacation", finance.BackupModeManual)
	require.NoError(t, err)
	require.NotEmpty(t, snapshot.ID)
	require.Equal(t, FormatVersion, snapshot.Version)
	require.Equal(t, "before vacation", snapshot.Description)
	require.Len(t, snapshot.Transactions, 2)

	_, err = manager.Create(ctx, "user-1", "", "hourly")
	require.True(t, errors.Is(err, appErrors.ErrInvalidInput))

	snapshots, err := manager.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.Equal(t, snapshot.ID, snapshots[0].ID)

	snapshots, err = manager.List(ctx, "user-2")
	require.NoError(t, err)
	require.Empty(t, snapshots)
}

func TestRestoreReplacesEverything(t *testing.T) {
	store := newMemStore()
	store.transactions["user-1"] = sampleTransactions("user-1")
	manager := NewManager(store)
	ctx := context.Background()

	snapshot, err := manager.Create(ctx, "user-1", "", finance.BackupModeManual)
	require.NoError(t, err)

	// state diverges after the snapshot
	store.transactions["user-1"] = append(store.transactions["user-1"], finance.Transaction{
		ID:       "txn-later",
		Type:     finance.TypeExpense,
		Amount:   decimal.RequireFromString("10"),
		Currency: "USD",
		Category: "Fuel",
		Date:     money.NewDate(2025, time.March, 20),
	})

	count, err := manager.Restore(ctx, "user-1", snapshot.ID)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	restored := store.transactions["user-1"]
	require.Len(t, restored, 2)
	require.Equal(t, "txn-1", restored[0].ID)
	require.Equal(t, "txn-2", restored[1].ID)

	_, err = manager.Restore(ctx, "user-1", "no-such-backup")
	require.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestDeleteBackup(t *testing.T) {
	store := newMemStore()
	manager := NewManager(store)
	ctx := context.Background()

	snapshot, err := manager.Create(ctx, "user-1", "", finance.BackupModeManual)
	require.NoError(t, err)

	require.NoError(t, manager.Delete(ctx, "user-1", snapshot.ID))
	require.True(t, errors.Is(manager.Delete(ctx, "user-1", snapshot.ID), appErrors.ErrNotFound))
}

func TestExportImportRoundTrip(t *testing.T) {
	store := newMemStore()
	original := sampleTransactions("user-1")
	store.transactions["user-1"] = original
	manager := NewManager(store)
	ctx := context.Background()

	doc, err := manager.Export(ctx, "user-1", false)
	require.NoError(t, err)
	require.Equal(t, FormatVersion, doc.Version)
	require.Equal(t, 2, doc.TotalTransactions)

	// through the wire format and into a fresh account
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded ExportDocument
	require.NoError(t, json.Unmarshal(raw, &decoded))

	count, err := manager.Import(ctx, "user-2", decoded)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	imported := store.transactions["user-2"]
	require.Len(t, imported, len(original))
	for i, want := range original {
		got := imported[i]
		require.Equal(t, want.ID, got.ID)
		require.Equal(t, want.Type, got.Type)
		require.True(t, want.Amount.Equal(got.Amount), "amount mismatch for %s", want.ID)
		require.Equal(t, want.Currency, got.Currency)
		require.Equal(t, want.Category, got.Category)
		require.Equal(t, want.Description, got.Description)
		require.Equal(t, want.Date, got.Date)
		require.Equal(t, "user-2", got.CreatedBy)
	}
}

func TestExportIncludesBackupsOnRequest(t *testing.T) {
	store := newMemStore()
	store.transactions["user-1"] = sampleTransactions("user-1")
	manager := NewManager(store)
	ctx := context.Background()

	snapshot, err := manager.Create(ctx, "user-1", "", finance.BackupModeManual)
	require.NoError(t, err)

	doc, err := manager.Export(ctx, "user-1", false)
	require.NoError(t, err)
	require.Empty(t, doc.Backups)

	doc, err = manager.Export(ctx, "user-1", true)
	require.NoError(t, err)
	require.Len(t, doc.Backups, 1)
	require.Equal(t, snapshot.ID, doc.Backups[0].ID)
}

func TestImportRejectsCorruptedDocuments(t *testing.T) {
	store := newMemStore()
	manager := NewManager(store)
	ctx := context.Background()

	ts := sampleTransactions("user-1")

	tests := []struct {
		name string
		doc  ExportDocument
	}{
		{
			name: "missing version",
			doc:  ExportDocument{Transactions: ts, TotalTransactions: 2},
		},
		{
			name: "count mismatch",
			doc:  ExportDocument{Transactions: ts, Version: FormatVersion, TotalTransactions: 5},
		},
		{
			name: "transaction without id",
			doc: ExportDocument{
				Transactions:      []finance.Transaction{{Type: finance.TypeExpense}},
				Version:           FormatVersion,
				TotalTransactions: 1,
			},
		},
		{
			name: "transaction with unknown type",
			doc: ExportDocument{
				Transactions:      []finance.Transaction{{ID: "x", Type: "transfer"}},
				Version:           FormatVersion,
				TotalTransactions: 1,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := manager.Import(ctx, "user-1", tc.doc)
			require.True(t, errors.Is(err, appErrors.ErrInvalidInput))
			require.Empty(t, store.transactions["user-1"])
		})
	}
}

func TestImportFailureLeavesStateIntact(t *testing.T) {
	store := newMemStore()
	prior := sampleTransactions("user-1")[:1]
	store.transactions["user-1"] = prior
	manager := NewManager(store)
	ctx := context.Background()

	doc := ExportDocument{
		Transactions:      sampleTransactions("user-1"),
		Version:           FormatVersion,
		TotalTransactions: 2,
		Backups: []Snapshot{
			{ID: "bundled-1", Version: FormatVersion, Mode: finance.BackupModeManual},
		},
	}

	// a snapshot insert failing must not touch the transaction set
	store.saveBackupErr = errors.New("duplicate key")
	_, err := manager.Import(ctx, "user-1", doc)
	require.Error(t, err)
	require.Equal(t, prior, store.transactions["user-1"])
	require.Empty(t, store.snapshots)

	// a replace failing must not leave the bundled snapshots behind
	store.saveBackupErr = nil
	store.replaceErr = errors.New("db down")
	_, err = manager.Import(ctx, "user-1", doc)
	require.Error(t, err)
	require.Equal(t, prior, store.transactions["user-1"])
	require.Empty(t, store.snapshots)

	store.replaceErr = nil
	count, err := manager.Import(ctx, "user-1", doc)
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Len(t, store.snapshots, 1)
}

func TestRunOnceSnapshotsAutomaticUsersOnly(t *testing.T) {
	store := newMemStore()
	store.transactions["auto-user"] = sampleTransactions("auto-user")
	store.transactions["manual-user"] = sampleTransactions("manual-user")
	store.autoUsers = []string{"auto-user"}
	manager := NewManager(store)

	manager.runOnce(context.Background())

	snapshots, err := manager.List(context.Background(), "auto-user")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.Equal(t, finance.BackupModeAutomatic, snapshots[0].Mode)
	require.NotEmpty(t, snapshots[0].Description)

	snapshots, err = manager.List(context.Background(), "manual-user")
	require.NoError(t, err)
	require.Empty(t, snapshots)
}

func TestRunOnceKeepsGoingAfterUserFailure(t *testing.T) {
	store := newMemStore()
	store.transactions["good-user"] = sampleTransactions("good-user")
	store.autoUsers = []string{"bad-user", "good-user"}
	store.listErr = map[string]error{"bad-user": errors.New("db down")}
	manager := NewManager(store)

	manager.runOnce(context.Background())

	snapshots, err := manager.List(context.Background(), "good-user")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)

	snapshots, err = manager.List(context.Background(), "bad-user")
	require.NoError(t, err)
	require.Empty(t, snapshots)
}

func TestRunSchedulerStopsOnCancel(t *testing.T) {
	store := newMemStore()
	store.autoUsers = []string{"auto-user"}
	manager := NewManager(store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		manager.RunScheduler(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after context cancel")
	}

	snapshots, err := manager.List(context.Background(), "auto-user")
	require.NoError(t, err)
	require.NotEmpty(t, snapshots)
}

func TestPruneKeepsNewestSnapshots(t *testing.T) {
	store := newMemStore()
	manager := NewManager(store)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < MaxSnapshots+4; i++ {
		store.snapshots = append(store.snapshots, Snapshot{
			ID:        "snap-" + string(rune('a'+i)),
			CreatedAt: now.Add(-time.Duration(i) * time.Hour),
			Version:   FormatVersion,
			Mode:      finance.BackupModeManual,
			OwnerID:   "user-1",
		})
	}

	// creating one more triggers the prune
	_, err := manager.Create(ctx, "user-1", "", finance.BackupModeManual)
	require.NoError(t, err)

	snapshots, err := manager.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, snapshots, MaxSnapshots)
}

func TestPruneDropsExpiredSnapshots(t *testing.T) {
	store := newMemStore()
	manager := NewManager(store)
	ctx := context.Background()

	store.snapshots = append(store.snapshots, Snapshot{
		ID:        "snap-old",
		CreatedAt: time.Now().UTC().Add(-MaxAge - 24*time.Hour),
		Version:   FormatVersion,
		Mode:      finance.BackupModeManual,
		OwnerID:   "user-1",
	})

	created, err := manager.Create(ctx, "user-1", "", finance.BackupModeManual)
	require.NoError(t, err)

	snapshots, err := manager.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.Equal(t, created.ID, snapshots[0].ID)
}
