// Package cache stores merchant classifications so the LLM is asked once per
// merchant. Expiry times are unix seconds so SQLite and MySQL share queries.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mikey/mail-ledger/internal/merchant"
	"go.uber.org/zap"
)

type sqlCache struct {
	db       *sql.DB
	logger   *zap.Logger
	upsert   string
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// Get retrieves a live entry
func (c *sqlCache) Get(ctx context.Context, key string) (*merchant.Entry, error) {
	var businessType string
	var classifiedAt, expiresAt int64

	err := c.db.QueryRowContext(ctx, `
		SELECT business_type, classified_at, expires_at
		FROM merchant_cache
		WHERE merchant_key = ? AND expires_at > ?
	`, key, c.now().Unix()).Scan(&businessType, &classifiedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, merchant.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	return &merchant.Entry{
		Key:          key,
		BusinessType: businessType,
		ClassifiedAt: time.Unix(classifiedAt, 0).UTC(),
		ExpiresAt:    time.Unix(expiresAt, 0).UTC(),
	}, nil
}

// Set stores or replaces an entry
func (c *sqlCache) Set(ctx context.Context, entry *merchant.Entry) error {
	_, err := c.db.ExecContext(ctx, c.upsert,
		entry.Key, entry.BusinessType, entry.ClassifiedAt.Unix(), entry.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (c *sqlCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `
		DELETE FROM merchant_cache
		WHERE expires_at <= ?
	`, c.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		c.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int64("expired_count", rowsAffected))
	}
	return nil
}

// Stop stops the background cleanup task and closes the database connection
func (c *sqlCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close cache database", zap.Error(err))
		}
	})
}
