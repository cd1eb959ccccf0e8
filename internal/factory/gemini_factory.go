package factory

import (
	"context"
	"fmt"

	"github.com/mikey/mail-ledger/internal/adapters/gemini"
	"github.com/mikey/mail-ledger/internal/config"
	"github.com/mikey/mail-ledger/internal/utils"
	"go.uber.org/zap"
)

// GeminiFactory creates Gemini merchant classifiers
type GeminiFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewGeminiFactory creates a new Gemini factory
func NewGeminiFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *GeminiFactory {
	return &GeminiFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClassifier creates a Gemini merchant classifier. The caller owns Close.
func (f *GeminiFactory) CreateClassifier(ctx context.Context) (*gemini.GeminiClient, error) {
	geminiCfg := f.cfg.GetGemini()

	if geminiCfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	return gemini.NewGeminiClient(
		ctx,
		geminiCfg.APIKey,
		geminiCfg.ModelName,
		geminiCfg.MaxTokens,
		geminiCfg.Temperature,
		geminiCfg.TopP,
		geminiCfg.MaxBodySize,
		f.logger.With(zap.String("provider", "gemini")),
		f.textProcessor,
	)
}
