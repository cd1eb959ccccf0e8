package di

import (
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-ledger/internal/config"
	"github.com/mikey/mail-ledger/internal/logging"
)

// CLIFlags contains the global flags of the ledger-extract CLI
type CLIFlags struct {
	ConfigFile string
	Verbose    bool
	JSONLog    bool

	// Overrides holds flags bound onto configuration keys; only flags the
	// user actually set take precedence over the config file
	Overrides *pflag.FlagSet
}

// flagBindings maps CLI flag names to configuration keys
var flagBindings = map[string]string{
	"storage":       "storage.type",
	"sqlite-path":   "storage.sqlite_path",
	"mysql-dsn":     "storage.mysql_dsn",
	"postgres-url":  "storage.postgres_url",
	"imap-host":     "mail.host",
	"imap-port":     "mail.port",
	"imap-user":     "mail.username",
	"mailbox":       "mail.mailbox",
	"classify":      "classifier.enabled",
	"provider":      "classifier.provider",
	"openai-model":  "openai.model_name",
	"gemini-model":  "gemini.model_name",
	"bedrock-model": "bedrock.model_id",
}

// RegisterOverrideFlags declares the flags understood by BindOverrides
func RegisterOverrideFlags(fs *pflag.FlagSet) {
	fs.String("storage", "", "Storage backend (memory, sqlite, mysql, postgres)")
	fs.String("sqlite-path", "", "SQLite database path")
	fs.String("mysql-dsn", "", "MySQL DSN")
	fs.String("postgres-url", "", "PostgreSQL connection URL")
	fs.String("imap-host", "", "IMAP server host")
	fs.Int("imap-port", 993, "IMAP server port")
	fs.String("imap-user", "", "IMAP username (password via MAIL_LEDGER_MAIL_PASSWORD)")
	fs.String("mailbox", "", "Mailbox to search")
	fs.Bool("classify", false, "Classify merchants with an LLM when the bank reports no business type")
	fs.String("provider", "", "Classifier provider (bedrock, gemini, openai)")
	fs.String("openai-model", "", "OpenAI model name")
	fs.String("gemini-model", "", "Gemini model name")
	fs.String("bedrock-model", "", "Bedrock model ID")
}

// BindOverrides binds the registered override flags onto cfg
func BindOverrides(cfg *config.Config, fs *pflag.FlagSet) error {
	if fs == nil {
		return nil
	}
	v := cfg.GetViper()
	for name, key := range flagBindings {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		var (
			cfg *config.Config
			err error
		)
		if flags.ConfigFile != "" {
			cfg, err = config.NewFromFile(flags.ConfigFile)
		} else {
			cfg, err = config.New()
		}
		if err != nil {
			return nil, err
		}
		if used := cfg.GetViper().ConfigFileUsed(); used != "" {
			logger.Debug("Loaded configuration from file", zap.String("file", used))
		}
		if err := BindOverrides(cfg, flags.Overrides); err != nil {
			return nil, err
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	if err := provideIngestion(container); err != nil {
		return nil, err
	}

	return container, nil
}
