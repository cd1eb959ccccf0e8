package factory

import (
	"context"
	"fmt"
	"io"

	"github.com/mikey/mail-ledger/internal/config"
	"github.com/mikey/mail-ledger/internal/core"
	"github.com/mikey/mail-ledger/internal/merchant"
	"github.com/mikey/mail-ledger/internal/utils"
	"go.uber.org/zap"
)

// ClassifierFactory creates the optional merchant classifier
type ClassifierFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	closers       []io.Closer
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *ClassifierFactory {
	return &ClassifierFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClassifier returns the configured classifier, or nil when
// classification is disabled
func (f *ClassifierFactory) CreateClassifier(ctx context.Context) (core.MerchantClassifier, error) {
	classifierCfg := f.cfg.GetClassifier()
	if !classifierCfg.Enabled {
		f.logger.Debug("Merchant classifier disabled")
		return nil, nil
	}

	f.logger.Info("Using merchant classifier", zap.String("provider", classifierCfg.Provider))

	classifier, err := f.createProvider(ctx, classifierCfg.Provider)
	if err != nil {
		return nil, err
	}

	store, err := NewCacheFactory(f.cfg, f.logger).CreateCache()
	if err != nil {
		return nil, err
	}
	if store == nil {
		return classifier, nil
	}
	f.closers = append(f.closers, stopCloser{store})
	return merchant.NewCachedClassifier(classifier, store, classifierCfg.Cache.TTL, f.logger), nil
}

func (f *ClassifierFactory) createProvider(ctx context.Context, provider string) (core.MerchantClassifier, error) {
	switch provider {
	case "bedrock":
		return NewBedrockFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier(ctx)
	case "gemini":
		client, err := NewGeminiFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier(ctx)
		if err != nil {
			return nil, err
		}
		f.closers = append(f.closers, client)
		return client, nil
	case "openai":
		return NewOpenAIFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier()
	default:
		return nil, fmt.Errorf("unsupported classifier provider: %s", provider)
	}
}

type stopCloser struct{ c merchant.Cache }

func (s stopCloser) Close() error {
	s.c.Stop()
	return nil
}

// Close releases provider clients that hold connections
func (f *ClassifierFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}
