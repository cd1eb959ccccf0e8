package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/mail-ledger/internal/adapters/repository"
	"github.com/mikey/mail-ledger/internal/config"
	"github.com/mikey/mail-ledger/internal/core"
	"go.uber.org/zap"
)

// RepositoryFactory creates transaction repositories based on configuration
type RepositoryFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) *RepositoryFactory {
	return &RepositoryFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateRepository creates a transaction repository based on the configuration
func (f *RepositoryFactory) CreateRepository(ctx context.Context) (core.TransactionRepository, error) {
	storageCfg := f.cfg.GetStorage()
	logger := f.logger.With(zap.String("storage", storageCfg.Type))

	switch storageCfg.Type {
	case "memory":
		return repository.NewMemoryRepository(logger), nil
	case "sqlite":
		if storageCfg.SQLitePath != ":memory:" {
			// Ensure directory exists
			if err := os.MkdirAll(filepath.Dir(storageCfg.SQLitePath), 0755); err != nil {
				return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
			}
		}
		return repository.NewSQLiteRepository(storageCfg.SQLitePath, logger)
	case "mysql":
		return repository.NewMySQLRepository(storageCfg.MySQLDSN, logger)
	case "postgres", "postgresql":
		return repository.NewPostgresRepository(ctx, storageCfg.PostgresURL, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageCfg.Type)
	}
}
