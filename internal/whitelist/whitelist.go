package whitelist

import (
	"strings"

	"go.uber.org/zap"
)

// Checker decides which envelope senders may push mail into the intake.
// Entries are full addresses ("me@example.com") or bare domains ("example.com").
type Checker struct {
	addresses map[string]bool
	domains   map[string]bool
	logger    *zap.Logger
}

// NewChecker creates a new whitelist checker
func NewChecker(entries []string, logger *zap.Logger) *Checker {
	c := &Checker{
		addresses: make(map[string]bool),
		domains:   make(map[string]bool),
		logger:    logger,
	}
	for _, entry := range entries {
		entry = strings.ToLower(strings.TrimSpace(entry))
		switch {
		case entry == "":
		case strings.HasPrefix(entry, "@"):
			c.domains[entry[1:]] = true
		case strings.Contains(entry, "@"):
			c.addresses[entry] = true
		default:
			c.domains[entry] = true
		}
	}

	if !c.IsEmpty() && logger != nil {
		logger.Info("Initialized sender whitelist",
			zap.Int("addresses", len(c.addresses)),
			zap.Int("domains", len(c.domains)))
	}
	return c
}

// IsEmpty reports whether no entries were configured
func (c *Checker) IsEmpty() bool {
	return len(c.addresses) == 0 && len(c.domains) == 0
}

// IsWhitelisted checks the address, then its domain
func (c *Checker) IsWhitelisted(from string) bool {
	addr := strings.ToLower(strings.Trim(strings.TrimSpace(from), "<>"))
	if c.addresses[addr] {
		return true
	}

	at := strings.LastIndexByte(addr, '@')
	if at < 0 || at == len(addr)-1 {
		return false
	}
	domain := addr[at+1:]
	if c.domains[domain] {
		if c.logger != nil {
			c.logger.Debug("Domain is whitelisted",
				zap.String("domain", domain),
				zap.String("email", from))
		}
		return true
	}
	return false
}
