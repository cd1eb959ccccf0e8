package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/mail-ledger/internal/merchant"
	"go.uber.org/zap"
)

// SQLiteCache is a SQLite merchant category cache
type SQLiteCache struct {
	sqlCache
}

// NewSQLiteCache creates a new SQLite cache
func NewSQLiteCache(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS merchant_cache (
			merchant_key TEXT PRIMARY KEY,
			business_type TEXT NOT NULL,
			classified_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	// Create index on expires_at for faster cleanup
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_merchant_cache_expires_at ON merchant_cache(expires_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	cache := &SQLiteCache{sqlCache{
		db:     db,
		logger: logger,
		upsert: `
			INSERT OR REPLACE INTO merchant_cache (merchant_key, business_type, classified_at, expires_at)
			VALUES (?, ?, ?, ?)
		`,
		stopCh: make(chan struct{}),
		now:    time.Now,
	}}

	// Start background cleanup
	if cleanupFreq > 0 {
		go startCleanupTask(cache, cleanupFreq, cache.stopCh, logger)
	}

	return cache, nil
}

var _ merchant.Cache = (*SQLiteCache)(nil)
