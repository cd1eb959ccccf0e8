package merchant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mikey/mail-ledger/internal/core"
	"github.com/mikey/mail-ledger/internal/utils"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned by a Cache when no live entry exists
var ErrCacheMiss = errors.New("merchant not cached")

// Entry is a remembered classification
type Entry struct {
	Key          string
	BusinessType string
	ClassifiedAt time.Time
	ExpiresAt    time.Time
}

// Cache remembers classifications per merchant so repeat purchases at the
// same place never reach the model
type Cache interface {
	// Get returns a live entry or ErrCacheMiss
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores or replaces an entry
	Set(ctx context.Context, entry *Entry) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error

	// Stop ends background cleanup and releases storage
	Stop()
}

// CacheKey normalizes a merchant name: case and spacing differ between
// notifications for the same store
func CacheKey(business string) string {
	return strings.ToLower(utils.CollapseWhitespace(business))
}

// CachedClassifier consults a Cache before delegating to a model
type CachedClassifier struct {
	inner  core.MerchantClassifier
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewCachedClassifier wraps inner with cache
func NewCachedClassifier(inner core.MerchantClassifier, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedClassifier {
	return &CachedClassifier{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// ClassifyMerchant returns the cached category or asks the wrapped classifier.
// Cache failures are logged and never fail the classification.
func (c *CachedClassifier) ClassifyMerchant(ctx context.Context, tx *core.Transaction) (string, error) {
	key := CacheKey(tx.Business)

	entry, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		c.logger.Debug("Using cached merchant category",
			zap.String("business", tx.Business),
			zap.String("business_type", entry.BusinessType))
		return entry.BusinessType, nil
	case !errors.Is(err, ErrCacheMiss):
		c.logger.Warn("Failed to read merchant cache", zap.String("key", key), zap.Error(err))
	}

	category, err := c.inner.ClassifyMerchant(ctx, tx)
	if err != nil {
		return "", err
	}

	now := c.now()
	if err := c.cache.Set(ctx, &Entry{
		Key:          key,
		BusinessType: category,
		ClassifiedAt: now,
		ExpiresAt:    now.Add(c.ttl),
	}); err != nil {
		c.logger.Warn("Failed to cache merchant category", zap.String("key", key), zap.Error(err))
	}
	return category, nil
}
