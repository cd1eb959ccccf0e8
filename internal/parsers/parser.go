// Package parsers extracts transactions from bank notification templates.
package parsers

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoAmountFound is returned when the amount anchor is absent
	ErrNoAmountFound = errors.New("no amount found")
	// ErrNoMerchantFound is returned when the merchant anchor is absent
	ErrNoMerchantFound = errors.New("no merchant found")
	// ErrNoDateFound is returned when neither the body nor the Date header yield a timestamp
	ErrNoDateFound = errors.New("no date found")
)

var addressPattern = regexp.MustCompile(`[\w.+\-]+@[\w\-]+(?:\.[\w\-]+)+`)

// parseAmount strips thousands separators and parses a fixed-point amount
func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
}

// parseDateHeader parses an RFC 5322 Date header, tolerating common deviations
func parseDateHeader(header string) (time.Time, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return time.Time{}, ErrNoDateFound
	}
	if t, err := mail.ParseDate(header); err == nil {
		return t.UTC(), nil
	}
	// Some relays append a zone comment after the offset
	if i := strings.Index(header, " ("); i > 0 {
		if t, err := mail.ParseDate(header[:i]); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if t, err := time.Parse(layout, header); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable Date header %q", ErrNoDateFound, header)
}

// SenderAddress pulls the bare address out of a From header value
func SenderAddress(from string) string {
	if addr, err := mail.ParseAddress(from); err == nil {
		return strings.ToLower(addr.Address)
	}
	if m := addressPattern.FindString(from); m != "" {
		return strings.ToLower(m)
	}
	return strings.ToLower(strings.TrimSpace(from))
}

// senderName returns the display name of a From header value
func senderName(from string) string {
	if addr, err := mail.ParseAddress(from); err == nil {
		return strings.TrimSpace(addr.Name)
	}
	return ""
}
