package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/mail-ledger/internal/adapters/cache"
	"github.com/mikey/mail-ledger/internal/config"
	"github.com/mikey/mail-ledger/internal/merchant"
	"go.uber.org/zap"
)

// CacheFactory creates the merchant category cache
type CacheFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCache returns the configured cache, or nil when caching is off
func (f *CacheFactory) CreateCache() (merchant.Cache, error) {
	cacheCfg := f.cfg.GetClassifier().Cache

	switch cacheCfg.Type {
	case "", "none":
		f.logger.Debug("Merchant cache disabled")
		return nil, nil
	case "memory":
		f.logger.Info("Using in-memory merchant cache")
		return cache.NewMemoryCache(f.logger, cacheCfg.CleanupFrequency), nil
	case "sqlite":
		if cacheCfg.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cacheCfg.SQLitePath), 0755); err != nil {
				return nil, fmt.Errorf("failed to create cache directory: %w", err)
			}
		}
		f.logger.Info("Using SQLite merchant cache", zap.String("path", cacheCfg.SQLitePath))
		return cache.NewSQLiteCache(cacheCfg.SQLitePath, f.logger, cacheCfg.CleanupFrequency)
	case "mysql":
		f.logger.Info("Using MySQL merchant cache")
		return cache.NewMySQLCache(cacheCfg.MySQLDSN, f.logger, cacheCfg.CleanupFrequency)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cacheCfg.Type)
	}
}
