package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-ledger/internal/config"
	"github.com/mikey/mail-ledger/internal/core"
	"github.com/mikey/mail-ledger/internal/factory"
	"github.com/mikey/mail-ledger/internal/logging"
	"github.com/mikey/mail-ledger/internal/mailbody"
	"github.com/mikey/mail-ledger/internal/ports"
	"github.com/mikey/mail-ledger/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideIngestion(container); err != nil {
		return nil, err
	}

	// Register runners
	if err := container.Provide(factory.NewRunnerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.RunnerFactory) []ports.Runner {
		return f.CreateRunners()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideIngestion registers everything between configuration and the
// ingestion service. It expects *config.Config and *zap.Logger.
func provideIngestion(container *dig.Container) error {
	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return err
	}

	// Register factories
	if err := container.Provide(factory.NewRepositoryFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewClassifierFactory); err != nil {
		return err
	}

	// Register transaction repository
	if err := container.Provide(func(f *factory.RepositoryFactory) (core.TransactionRepository, error) {
		return f.CreateRepository(context.Background())
	}); err != nil {
		return err
	}

	// Register merchant classifier; nil when disabled
	if err := container.Provide(func(f *factory.ClassifierFactory) (core.MerchantClassifier, error) {
		return f.CreateClassifier(context.Background())
	}); err != nil {
		return err
	}

	// Register mail store factory
	if err := container.Provide(factory.NewMailStoreFactory); err != nil {
		return err
	}

	// Register bank parsers
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (core.ParserRegistry, error) {
		return factory.NewParserRegistry(cfg, logger)
	}); err != nil {
		return err
	}

	// Register body extractor
	if err := container.Provide(func(logger *zap.Logger, tp *utils.TextProcessor) core.BodyExtractor {
		return mailbody.NewExtractor(logger, tp)
	}); err != nil {
		return err
	}

	// Register ingestion service
	return container.Provide(func(
		cfg *config.Config,
		openStore core.MailStoreFactory,
		registry core.ParserRegistry,
		extractor core.BodyExtractor,
		repo core.TransactionRepository,
		classifier core.MerchantClassifier,
		logger *zap.Logger,
	) *core.IngestionService {
		return core.NewIngestionService(
			openStore,
			registry,
			extractor,
			repo,
			classifier,
			logger.Named("ingestion"),
			cfg.GetMail().Mailbox,
		)
	})
}
