package config

import (
	"strings"
	"time"
)

// MailConfig represents the IMAP mail store connection
type MailConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	TLS                bool
	InsecureSkipVerify bool
	Timeout            time.Duration
	Mailbox            string
}

// StorageConfig selects and configures the transaction repository
type StorageConfig struct {
	Type        string
	SQLitePath  string
	MySQLDSN    string
	PostgresURL string
}

// SchedulerConfig represents the recurring refresh
type SchedulerConfig struct {
	Enabled    bool
	Interval   time.Duration
	RunOnStart bool
}

// APIConfig represents the HTTP API
type APIConfig struct {
	Enabled        bool
	ListenAddress  string
	RefreshTimeout time.Duration
}

// IntakeConfig represents the SMTP forward intake
type IntakeConfig struct {
	Enabled        bool
	ListenAddress  string
	Domain         string
	Username       string
	Password       string
	MaxMessageSize int64
	AllowedSenders []string
}

// ClassifierConfig represents the optional merchant classifier
type ClassifierConfig struct {
	Enabled  bool
	Provider string
	Cache    CacheConfig
}

// CacheConfig controls the merchant category cache. Type "none" disables it.
type CacheConfig struct {
	Type             string
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
}

// BankConfig overrides the sender addresses and subject used for a bank
type BankConfig struct {
	Senders []string
	Subject string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GetMail returns the mail store configuration
func (c *Config) GetMail() MailConfig {
	return MailConfig{
		Host:               c.GetString("mail.host"),
		Port:               c.GetInt("mail.port"),
		Username:           c.GetString("mail.username"),
		Password:           c.GetString("mail.password"),
		TLS:                c.GetBool("mail.tls"),
		InsecureSkipVerify: c.GetBool("mail.insecure_skip_verify"),
		Timeout:            c.GetDuration("mail.timeout"),
		Mailbox:            c.GetString("mail.mailbox"),
	}
}

// GetStorage returns the storage configuration
func (c *Config) GetStorage() StorageConfig {
	return StorageConfig{
		Type:        strings.ToLower(c.GetString("storage.type")),
		SQLitePath:  c.GetString("storage.sqlite_path"),
		MySQLDSN:    c.GetString("storage.mysql_dsn"),
		PostgresURL: c.GetString("storage.postgres_url"),
	}
}

// GetScheduler returns the scheduler configuration
func (c *Config) GetScheduler() SchedulerConfig {
	return SchedulerConfig{
		Enabled:    c.GetBool("scheduler.enabled"),
		Interval:   time.Duration(c.GetInt("scheduler.interval_minutes")) * time.Minute,
		RunOnStart: c.GetBool("scheduler.run_on_start"),
	}
}

// GetAPI returns the HTTP API configuration
func (c *Config) GetAPI() APIConfig {
	return APIConfig{
		Enabled:        c.GetBool("api.enabled"),
		ListenAddress:  c.GetString("api.listen_address"),
		RefreshTimeout: c.GetDuration("api.refresh_timeout"),
	}
}

// GetIntake returns the SMTP intake configuration
func (c *Config) GetIntake() IntakeConfig {
	return IntakeConfig{
		Enabled:        c.GetBool("intake.enabled"),
		ListenAddress:  c.GetString("intake.listen_address"),
		Domain:         c.GetString("intake.domain"),
		Username:       c.GetString("intake.username"),
		Password:       c.GetString("intake.password"),
		MaxMessageSize: int64(c.GetInt("intake.max_message_size")),
		AllowedSenders: c.GetStringSlice("intake.allowed_senders"),
	}
}

// GetClassifier returns the merchant classifier configuration
func (c *Config) GetClassifier() ClassifierConfig {
	return ClassifierConfig{
		Enabled:  c.GetBool("classifier.enabled"),
		Provider: strings.ToLower(c.GetString("classifier.provider")),
		Cache: CacheConfig{
			Type:             strings.ToLower(c.GetString("classifier.cache.type")),
			TTL:              c.GetDuration("classifier.cache.ttl"),
			CleanupFrequency: c.GetDuration("classifier.cache.cleanup_frequency"),
			SQLitePath:       c.GetString("classifier.cache.sqlite_path"),
			MySQLDSN:         c.GetString("classifier.cache.mysql_dsn"),
		},
	}
}

// GetBank returns the overrides for one bank, keyed by its lowercased tag
func (c *Config) GetBank(bank string) BankConfig {
	prefix := "banks." + strings.ToLower(bank)
	return BankConfig{
		Senders: c.GetStringSlice(prefix + ".senders"),
		Subject: c.GetString(prefix + ".subject"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}
