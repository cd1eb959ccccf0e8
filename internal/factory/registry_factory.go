package factory

import (
	"github.com/mikey/mail-ledger/internal/config"
	"github.com/mikey/mail-ledger/internal/parsers"
	"go.uber.org/zap"
)

// NewParserRegistry builds the bank registry, applying banks.<bank>.senders
// and banks.<bank>.subject overrides on top of the built-in bindings
func NewParserRegistry(cfg *config.Config, logger *zap.Logger) (*parsers.Registry, error) {
	entries := parsers.DefaultEntries()
	for i := range entries {
		bank := entries[i].Parser.Bank()
		override := cfg.GetBank(string(bank))

		if len(override.Senders) > 0 {
			entries[i].Senders = override.Senders
		}
		if override.Subject != "" {
			entries[i].Subject = override.Subject
		}

		logger.Debug("Registered bank parser",
			zap.String("bank", string(bank)),
			zap.Strings("senders", entries[i].Senders),
			zap.String("subject", entries[i].Subject))
	}
	return parsers.NewRegistry(entries...)
}
