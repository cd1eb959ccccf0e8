package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/mail-ledger/internal/core"
	"github.com/mikey/mail-ledger/internal/merchant"
	"github.com/mikey/mail-ledger/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ContentGenerator is satisfied by *genai.GenerativeModel
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiClient classifies merchants with Google Gemini
type GeminiClient struct {
	client        *genai.Client
	model         ContentGenerator
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	ctx context.Context,
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = genai.NewUserContent(genai.Text(merchant.SystemPrompt))

	c := newGeminiClient(model, modelName, maxBodySize, logger, textProcessor)
	c.client = client
	return c, nil
}

func newGeminiClient(model ContentGenerator, modelName string, maxBodySize int, logger *zap.Logger, tp *utils.TextProcessor) *GeminiClient {
	return &GeminiClient{
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: tp,
	}
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// ClassifyMerchant asks Gemini for the kind of business behind tx
func (c *GeminiClient) ClassifyMerchant(ctx context.Context, tx *core.Transaction) (string, error) {
	prompt := merchant.BuildPrompt(c.textProcessor, tx, c.maxBodySize)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}

	category, err := merchant.ParseCategory(sb.String())
	if err != nil {
		return "", err
	}

	c.logger.Debug("Gemini classified merchant",
		zap.String("model", c.modelName),
		zap.String("business", tx.Business),
		zap.String("business_type", category))
	return category, nil
}
