package storage

import "time"

// row types: amounts travel as strings so NUMERIC columns stay exact.

type dbTransaction struct {
	ID          string
	Type        string
	Amount      string
	Currency    string
	Category    string
	Description string
	Date        time.Time
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type dbProfile struct {
	UserID              string
	Email               string
	UserName            string
	BaseCurrency        string
	MonthlyIncomeTarget string
	BackupMode          string
}

type dbBackup struct {
	ID          string
	CreatedAt   time.Time
	Version     string
	Description string
	Mode        string
	CreatedBy   string
	Payload     []byte
}
