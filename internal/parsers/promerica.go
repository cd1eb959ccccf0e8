package parsers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mikey/mail-ledger/internal/core"
	"github.com/mikey/mail-ledger/internal/utils"
	"github.com/shopspring/decimal"
)

var (
	promericaBusiness     = regexp.MustCompile(`(?m)^[ \t]*Comercio[ \t]*:?[ \t]*(?:\r?\n[ \t]*)?([\p{Lu}0-9][\p{Lu}0-9 &.,'*#/\-]*)`)
	promericaBusinessType = regexp.MustCompile(`(?m)^[ \t]*Tipo de Comercio[ \t]*:?[ \t]*(?:\r?\n[ \t]*)?([\p{Lu}0-9][\p{Lu}0-9 &.,'*#/\-]*)`)
	promericaAmount       = regexp.MustCompile(`Monto\s+([A-Za-z]{3,4}):\s*([\d,]+\.\d{2})`)
	promericaDate         = regexp.MustCompile(`Fecha/hora\s*:?\s*(\d{1,2}) (\p{L}{3})\.? (\d{4}) / (\d{1,2}):(\d{2})`)
)

// Month abbreviations seen in Promerica templates, English and Spanish
var monthAbbreviations = map[string]time.Month{
	"jan": time.January, "ene": time.January,
	"feb": time.February,
	"mar": time.March,
	"apr": time.April, "abr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August, "ago": time.August,
	"sep": time.September, "set": time.September,
	"oct": time.October,
	"nov": time.November,
	"dec": time.December, "dic": time.December,
}

// CostaRica is UTC-6 year round
var CostaRica = time.FixedZone("America/Costa_Rica", -6*60*60)

// PromericaParser parses Promerica "Comprobante de" notifications
type PromericaParser struct {
	location *time.Location
}

// NewPromericaParser creates a parser that reads in-body timestamps in loc.
// A nil loc means Costa Rica time.
func NewPromericaParser(loc *time.Location) *PromericaParser {
	if loc == nil {
		loc = CostaRica
	}
	return &PromericaParser{location: loc}
}

func (p *PromericaParser) Bank() core.Bank {
	return core.BankPromerica
}

// ParseBusiness returns the uppercase run after the Comercio label
func (p *PromericaParser) ParseBusiness(body string) (string, error) {
	m := promericaBusiness.FindStringSubmatch(body)
	if m == nil {
		return "", ErrNoMerchantFound
	}
	business := utils.JoinWideGaps(m[1])
	if business == "" {
		return "", ErrNoMerchantFound
	}
	return business, nil
}

// ParseBusinessType returns nil when the template has no Tipo de Comercio line
func (p *PromericaParser) ParseBusinessType(body string) *string {
	m := promericaBusinessType.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	businessType := utils.JoinWideGaps(m[1])
	if businessType == "" {
		return nil
	}
	return &businessType
}

func (p *PromericaParser) ParseValueAndCurrency(body string) (decimal.Decimal, string, error) {
	m := promericaAmount.FindStringSubmatch(body)
	if m == nil {
		return decimal.Zero, "", ErrNoAmountFound
	}
	value, err := parseAmount(m[2])
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("%w: %v", ErrNoAmountFound, err)
	}
	return value, strings.ToUpper(m[1]), nil
}

// ParseDate reads the Fecha/hora line and falls back to the Date header
func (p *PromericaParser) ParseDate(body string, dateHeader string) (time.Time, error) {
	m := promericaDate.FindStringSubmatch(body)
	if m == nil {
		return parseDateHeader(dateHeader)
	}

	month, ok := monthAbbreviations[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unknown month %q", ErrNoDateFound, m[2])
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	if day < 1 || day > 31 || hour > 23 || minute > 59 {
		return time.Time{}, fmt.Errorf("%w: invalid timestamp %q", ErrNoDateFound, m[0])
	}

	return time.Date(year, month, day, hour, minute, 0, 0, p.location).UTC(), nil
}
