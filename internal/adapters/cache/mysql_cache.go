package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// MySQLCache is a MySQL merchant category cache
type MySQLCache struct {
	sqlCache
}

// NewMySQLCache creates a new MySQL cache
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS merchant_cache (
			merchant_key VARCHAR(255) PRIMARY KEY,
			business_type VARCHAR(64) NOT NULL,
			classified_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			INDEX idx_merchant_cache_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	cache := &MySQLCache{sqlCache{
		db:     db,
		logger: logger,
		upsert: `
			INSERT INTO merchant_cache (merchant_key, business_type, classified_at, expires_at)
			VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				business_type = VALUES(business_type),
				classified_at = VALUES(classified_at),
				expires_at = VALUES(expires_at)
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
