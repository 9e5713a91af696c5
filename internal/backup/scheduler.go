package backup

import (
	"context"
	"time"

	"github.com/mishacol/balance-tracker/internal/finance"
	"github.com/mishacol/balance-tracker/logging"
)

// DefaultInterval is how often automatic snapshots are taken for users whose
// profile sets backup_mode=automatic.
const DefaultInterval = 24 * time.Hour

// RunScheduler snapshots every automatic-mode user on each tick until the
// context is cancelled. Failures for one user are logged and do not stop the
// loop; manual-mode users are never touched.
func (m *Manager) RunScheduler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	logging.Logger.Infof("automatic backup scheduler started, interval: %s", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Logger.Info("automatic backup scheduler stopped")
			return
		case <-ticker.C:
			m.runOnce(ctx)
		}
	}
}

func (m *Manager) runOnce(ctx context.Context) {
	userIDs, err := m.store.ListAutomaticBackupUsers(ctx)
	if err != nil {
		logging.Logger.Errorf("failed to list automatic backup users: %v", err)
		return
	}

	for _, userID := range userIDs {
		description := "Automatic backup " + time.Now().UTC().Format("2006-01-02 15:04")
		if _, err := m.Create(ctx, userID, description, finance.BackupModeAutomatic); err != nil {
			logging.Logger.Errorf("automatic backup failed for user %s: %v", userID, err)
		}
	}
}
