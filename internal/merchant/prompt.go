// Package merchant holds the prompt and response handling shared by the LLM
// merchant classifiers.
package merchant

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mikey/mail-ledger/internal/core"
	"github.com/mikey/mail-ledger/internal/utils"
)

// MaxCategoryLength caps the stored business type
const MaxCategoryLength = 64

// SystemPrompt is sent as the system role where the provider supports one
const SystemPrompt = "You categorize card purchases by merchant. Respond only with JSON."

const promptFormat = `You categorize card purchases from bank notification emails.
Given the merchant name and the notification text, name the kind of business in
two or three words (for example "Supermarket", "Restaurant", "Gas station",
"Pharmacy", "Streaming service").
Respond with a JSON object containing:
- business_type: string (the kind of business)

Purchase:
Bank: %s
Merchant: %s
Amount: %s %s
Notification:
%s

Respond only with the JSON object and nothing else.`

// ErrEmptyCategory is returned when the model answers without a business type
var ErrEmptyCategory = errors.New("model returned no business type")

type categoryResponse struct {
	BusinessType string `json:"business_type"`
}

// BuildPrompt renders the user prompt for tx. The body is sanitized and
// truncated to maxBodySize bytes.
func BuildPrompt(tp *utils.TextProcessor, tx *core.Transaction, maxBodySize int) string {
	body := tx.Body
	if tp != nil {
		body = tp.ProcessText(body, maxBodySize)
	}
	return fmt.Sprintf(promptFormat,
		tx.Bank, tx.Business, tx.Currency, tx.Value.StringFixed(2), body)
}

// ParseCategory reads the business type out of a model answer, salvaging a
// JSON object surrounded by prose or code fences
func ParseCategory(responseText string) (string, error) {
	var resp categoryResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(responseText)), &resp); err != nil {
		obj, ok := utils.ExtractJSONObject(responseText)
		if !ok {
			return "", fmt.Errorf("failed to extract JSON from model response: %w", err)
		}
		if err := json.Unmarshal([]byte(obj), &resp); err != nil {
			return "", fmt.Errorf("failed to parse model response as JSON: %w", err)
		}
	}

	category := utils.CollapseWhitespace(resp.BusinessType)
	if category == "" {
		return "", ErrEmptyCategory
	}
	if runes := []rune(category); len(runes) > MaxCategoryLength {
		category = strings.TrimSpace(string(runes[:MaxCategoryLength]))
	}
	return category, nil
}
