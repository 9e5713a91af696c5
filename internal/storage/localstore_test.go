package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mishacol/balance-tracker/internal/finance"
	"github.com/mishacol/balance-tracker/internal/money"
)

func TestLocalStoreMissingFileIsEmptySlot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "local_state.json"))

	ts, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, ts)

	// clearing an already-empty slot is fine too
	require.NoError(t, store.Clear())
}

func TestLocalStoreSaveLoadRoundTrip(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "nested", "local_state.json"))

	saved := []finance.Transaction{
		{
			ID:        "local-1",
			Type:      finance.TypeExpense,
			Amount:    decimal.RequireFromString("42.75"),
			Currency:  "EUR",
			Category:  "Groceries",
			Date:      money.NewDate(2025, time.March, 8),
			CreatedAt: time.Date(2025, time.March, 8, 9, 30, 0, 0, time.UTC),
			UpdatedAt: time.Date(2025, time.March, 8, 9, 30, 0, 0, time.UTC),
		},
	}
	require.NoError(t, store.Save(saved))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "local-1", loaded[0].ID)
	require.True(t, loaded[0].Amount.Equal(saved[0].Amount))
	require.Equal(t, saved[0].Date, loaded[0].Date)
}

func TestLocalStoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local_state.json")
	store := NewLocalStore(path)

	require.NoError(t, store.Save([]finance.Transaction{{ID: "x", Type: finance.TypeIncome}}))
	require.NoError(t, store.Clear())

	ts, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, ts)
}
