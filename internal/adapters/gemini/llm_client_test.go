package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/mail-ledger/internal/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeModel struct {
	prompt string
	resp   *genai.GenerateContentResponse
	err    error
}

func (f *fakeModel) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	if len(parts) > 0 {
		if text, ok := parts[0].(genai.Text); ok {
			f.prompt = string(text)
		}
	}
	return f.resp, f.err
}

func reply(parts ...genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
	}
}

func purchase() *core.Transaction {
	return &core.Transaction{
		Bank:     core.BankPromerica,
		Business: "FARMACIA FISCHEL",
		Currency: "USD",
		Value:    decimal.RequireFromString("18.40"),
	}
}

func TestClassifyMerchant(t *testing.T) {
	model := &fakeModel{resp: reply(genai.Text(`{"business_type":`), genai.Text(` "Pharmacy"}`))}
	c := newGeminiClient(model, "gemini-1.5-flash", 1000, zap.NewNop(), nil)

	got, err := c.ClassifyMerchant(context.Background(), purchase())
	require.NoError(t, err)
	assert.Equal(t, "Pharmacy", got)
	assert.Contains(t, model.prompt, "Merchant: FARMACIA FISCHEL")
	assert.NoError(t, c.Close())
}

func TestClassifyMerchant_Failures(t *testing.T) {
	for name, model := range map[string]*fakeModel{
		"api error":     {err: errors.New("quota exceeded")},
		"no candidates": {resp: &genai.GenerateContentResponse{}},
		"no text parts": {resp: reply(genai.Blob{MIMEType: "image/png"})},
		"unparseable":   {resp: reply(genai.Text("Pharmacy"))},
	} {
		c := newGeminiClient(model, "gemini-1.5-flash", 1000, zap.NewNop(), nil)
		_, err := c.ClassifyMerchant(context.Background(), purchase())
		assert.Error(t, err, name)
	}
}
