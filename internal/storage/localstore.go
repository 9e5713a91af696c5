package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mishacol/balance-tracker/internal/finance"
)

// LocalStore is the named local slot: a single JSON file holding the
// serialized transaction state recorded while offline or unauthenticated.
// It is drained into hosted storage on first sign-in.
type LocalStore struct {
	path string
}

func NewLocalStore(path string) *LocalStore {
	return &LocalStore{path: path}
}

// Load reads the slot. A missing file is an empty slot, not an error.
func (ls *LocalStore) Load() ([]finance.Transaction, error) {
	data, err := os.ReadFile(ls.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read local state: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var ts []finance.Transaction
	if err := json.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("failed to parse local state: %w", err)
	}
	return ts, nil
}

func (ls *LocalStore) Save(ts []finance.Transaction) error {
	data, err := json.Marshal(ts)
	if err != nil {
		return fmt.Errorf("failed to serialize local state: %w", err)
	}
	if dir := filepath.Dir(ls.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create local state directory: %w", err)
		}
	}
	return os.WriteFile(ls.path, data, 0644)
}

// Clear removes the slot after a successful migration.
func (ls *LocalStore) Clear() error {
	if err := os.Remove(ls.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear local state: %w", err)
	}
	return nil
}
