// Package config loads the intake service configuration.
//
// Configuration is read once at startup from an optional YAML file, then
// overridden by INTAKE_* environment variables, validated, and passed
// explicitly to the components that need it. Secrets are never stored here;
// fields ending in Ref name a secret resolved through the secrets provider.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Log          LogConfig          `yaml:"log"`
	Payments     PaymentsConfig     `yaml:"payments"`
	Stripe       StripeConfig       `yaml:"stripe"`
	Verification VerificationConfig `yaml:"verification"`
	Email        EmailConfig        `yaml:"email"`
	Outbox       OutboxConfig       `yaml:"outbox"`
	NATS         NATSConfig         `yaml:"nats"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// PaymentsConfig holds the payment switches.
type PaymentsConfig struct {
	// Disabled turns off card payments; instructions entering POID take a
	// deal snapshot instead.
	Disabled bool   `yaml:"disabled"`
	Currency string `yaml:"currency"`
}

// StripeConfig names the Stripe secrets.
type StripeConfig struct {
	SecretKeyRef     string `yaml:"secret_key_ref"`
	WebhookSecretRef string `yaml:"webhook_secret_ref"`
}

// VerificationConfig configures the ID-verification provider.
// An empty BaseURL disables submission.
type VerificationConfig struct {
	Provider        string        `yaml:"provider"`
	BaseURL         string        `yaml:"base_url"`
	TokenURL        string        `yaml:"token_url"`
	ClientID        string        `yaml:"client_id"`
	ClientSecretRef string        `yaml:"client_secret_ref"`
	Scopes          []string      `yaml:"scopes"`
	Timeout         time.Duration `yaml:"timeout"`
}

// EmailConfig configures notification emails.
type EmailConfig struct {
	Debug             bool        `yaml:"debug"` // log instead of sending
	From              string      `yaml:"from"`
	FirmName          string      `yaml:"firm_name"` // signs every message
	FeeEarnerDomain   string      `yaml:"fee_earner_domain"`
	FeeEarnerFallback string      `yaml:"fee_earner_fallback"`
	AccountsAddress   string      `yaml:"accounts_address"`
	Graph             GraphConfig `yaml:"graph"`
	SMTP              SMTPConfig  `yaml:"smtp"`
}

// GraphConfig configures Microsoft Graph sendMail. An empty TenantID disables it.
type GraphConfig struct {
	TenantID        string        `yaml:"tenant_id"`
	ClientID        string        `yaml:"client_id"`
	ClientSecretRef string        `yaml:"client_secret_ref"`
	BaseURL         string        `yaml:"base_url"`
	TokenURL        string        `yaml:"token_url"` // defaults to the tenant's v2 endpoint
	Timeout         time.Duration `yaml:"timeout"`
}

// SMTPConfig configures the SMTP fallback. An empty Host disables it.
type SMTPConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	PasswordRef string `yaml:"password_ref"`
}

// OutboxConfig tunes the background worker.
type OutboxConfig struct {
	PollInterval time.Duration  `yaml:"poll_interval"`
	BatchSize    int            `yaml:"batch_size"`
	RetryBase    time.Duration  `yaml:"retry_base"`
	StaleAfter   time.Duration  `yaml:"stale_after"`
	MaxAttempts  map[string]int `yaml:"max_attempts"` // per task kind, overrides defaults
}

// NATSConfig configures lifecycle event publishing. An empty URL disables it.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "data/intake.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Payments: PaymentsConfig{
			Currency: "gbp",
		},
		Stripe: StripeConfig{
			SecretKeyRef:     "STRIPE_SECRET_KEY",
			WebhookSecretRef: "STRIPE_WEBHOOK_SECRET",
		},
		Verification: VerificationConfig{
			Provider:        "tiller",
			ClientSecretRef: "VERIFICATION_CLIENT_SECRET",
			Timeout:         10 * time.Second,
		},
		Email: EmailConfig{
			From:              "automations@helix-law.example",
			FirmName:          "Helix Law",
			FeeEarnerDomain:   "helix-law.example",
			FeeEarnerFallback: "team@helix-law.example",
			AccountsAddress:   "accounts@helix-law.example",
			Graph: GraphConfig{
				ClientSecretRef: "GRAPH_CLIENT_SECRET",
				BaseURL:         "https://graph.microsoft.com/v1.0",
				Timeout:         10 * time.Second,
			},
			SMTP: SMTPConfig{
				Port:        587,
				PasswordRef: "SMTP_PASSWORD",
			},
		},
		Outbox: OutboxConfig{
			PollInterval: 2 * time.Second,
			BatchSize:    20,
			RetryBase:    30 * time.Second,
			StaleAfter:   5 * time.Minute,
		},
		NATS: NATSConfig{
			SubjectPrefix: "intake",
		},
	}
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Load builds the runtime configuration: defaults, then the file at path
// (skipped when empty), then environment overrides, then validation.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		cfg, err = LoadFromFile(path)
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides configuration from INTAKE_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}

	if v := getenv("INTAKE_HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getenv("INTAKE_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := getenv("INTAKE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("INTAKE_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := getenv("INTAKE_VERIFICATION_URL"); v != "" {
		c.Verification.BaseURL = v
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"INTAKE_PAYMENTS_DISABLED", &c.Payments.Disabled},
		{"INTAKE_EMAIL_DEBUG", &c.Email.Debug},
	}
	for _, b := range bools {
		v := getenv(b.key)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", b.key, v, err)
		}
		*b.dst = parsed
	}

	return nil
}

// Validate checks that the configuration is valid. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Addr == "" {
		fail("server.addr is required")
	}
	if c.Database.Path == "" {
		fail("database.path is required")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		fail("log.level must be one of debug, info, warn, error (got %q)", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		fail("log.format must be json or console (got %q)", c.Log.Format)
	}

	if len(strings.TrimSpace(c.Payments.Currency)) != 3 {
		fail("payments.currency must be a 3-letter ISO code (got %q)", c.Payments.Currency)
	}

	if c.Verification.BaseURL != "" {
		if c.Verification.TokenURL == "" {
			fail("verification.token_url is required when verification.base_url is set")
		}
		if c.Verification.ClientID == "" {
			fail("verification.client_id is required when verification.base_url is set")
		}
	}

	if c.Email.Graph.TenantID != "" && c.Email.Graph.ClientID == "" {
		fail("email.graph.client_id is required when email.graph.tenant_id is set")
	}
	if !c.Email.Debug && c.Email.From == "" {
		fail("email.from is required unless email.debug is set")
	}

	if c.Outbox.PollInterval <= 0 {
		fail("outbox.poll_interval must be positive")
	}
	if c.Outbox.BatchSize <= 0 {
		fail("outbox.batch_size must be positive")
	}
	if c.Outbox.RetryBase <= 0 {
		fail("outbox.retry_base must be positive")
	}
	for kind, n := range c.Outbox.MaxAttempts {
		if n < 1 {
			fail("outbox.max_attempts[%s] must be at least 1", kind)
		}
	}

	return errors.Join(errs...)
}
