package factory

import (
	"fmt"

	"github.com/mikey/mail-ledger/internal/adapters/mailstore"
	"github.com/mikey/mail-ledger/internal/config"
	"github.com/mikey/mail-ledger/internal/core"
	"go.uber.org/zap"
)

// NewMailStoreFactory returns a core.MailStoreFactory that opens a fresh IMAP
// session per ingestion run
func NewMailStoreFactory(cfg *config.Config, logger *zap.Logger) core.MailStoreFactory {
	return func() (core.MailStore, error) {
		mailCfg := cfg.GetMail()
		if mailCfg.Host == "" {
			return nil, fmt.Errorf("mail.host is required")
		}
		if mailCfg.Username == "" {
			return nil, fmt.Errorf("mail.username is required")
		}

		return mailstore.NewIMAPClient(mailstore.Options{
			Host:               mailCfg.Host,
			Port:               mailCfg.Port,
			Username:           mailCfg.Username,
			Password:           mailCfg.Password,
			TLS:                mailCfg.TLS,
			InsecureSkipVerify: mailCfg.InsecureSkipVerify,
			Timeout:            mailCfg.Timeout,
		}, logger), nil
	}
}
