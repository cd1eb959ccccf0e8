package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteRepository stores transactions in a SQLite database
type SQLiteRepository struct {
	sqlRepository
}

// NewSQLiteRepository opens (and if needed creates) the database at dbPath
func NewSQLiteRepository(dbPath string, logger *zap.Logger) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY; :memory: databases are per connection
	db.SetMaxOpenConns(1)

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			date TEXT NOT NULL,
			value TEXT NOT NULL,
			currency TEXT NOT NULL,
			business TEXT NOT NULL,
			business_type TEXT,
			bank TEXT NOT NULL,
			expense_priority TEXT,
			expense_type TEXT,
			body TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	// Create index on date for window queries
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &SQLiteRepository{sqlRepository{
		db:     db,
		logger: logger,
		dialect: dialect{
			name: "sqlite3",
			bindTime: func(t time.Time) interface{} {
				return t.UTC().Format(storedTimeLayout)
			},
			isDuplicate: isSQLiteDuplicate,
		},
	}}, nil
}

func isSQLiteDuplicate(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
