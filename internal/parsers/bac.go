package parsers

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mikey/mail-ledger/internal/core"
	"github.com/mikey/mail-ledger/internal/utils"
	"github.com/shopspring/decimal"
)

// BAC notifications put each value on the line after its label:
//
//	Comercio:
//	SUPER PALI HEREDIA
//	Monto:
//	CRC 12,500.00
var (
	bacBusiness = regexp.MustCompile(`Comercio:\s*([^\r\n]+)`)
	bacAmount   = regexp.MustCompile(`Monto:\s*([A-Za-z]{3,4})\s+([\d,]+\.\d{2})`)
)

// BACParser parses BAC Credomatic purchase notifications
type BACParser struct{}

// NewBACParser creates a new BAC parser
func NewBACParser() *BACParser {
	return &BACParser{}
}

func (p *BACParser) Bank() core.Bank {
	return core.BankBAC
}

// ParseBusiness returns the merchant line, whitespace collapsed
func (p *BACParser) ParseBusiness(body string) (string, error) {
	m := bacBusiness.FindStringSubmatch(body)
	if m == nil {
		return "", ErrNoMerchantFound
	}
	business := utils.CollapseWhitespace(m[1])
	if business == "" {
		return "", ErrNoMerchantFound
	}
	return business, nil
}

// ParseBusinessType always returns nil: BAC does not report merchant categories
func (p *BACParser) ParseBusinessType(string) *string {
	return nil
}

func (p *BACParser) ParseValueAndCurrency(body string) (decimal.Decimal, string, error) {
	m := bacAmount.FindStringSubmatch(body)
	if m == nil {
		return decimal.Zero, "", ErrNoAmountFound
	}
	value, err := parseAmount(m[2])
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("%w: %v", ErrNoAmountFound, err)
	}
	return value, strings.ToUpper(m[1]), nil
}

// ParseDate uses the transport Date header; BAC bodies carry no reliable timestamp
func (p *BACParser) ParseDate(_ string, dateHeader string) (time.Time, error) {
	return parseDateHeader(dateHeader)
}
