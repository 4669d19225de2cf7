// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the mail relay.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Supported values for Config.Transport.
const (
	TransportSMTP   = "smtp"
	TransportSES    = "ses"
	TransportStdout = "stdout"
)

// Config holds the complete application configuration.
type Config struct {
	HTTP      HTTPConfig    `yaml:"http"`
	SMTP      SMTPConfig    `yaml:"smtp"`
	Transport string        `yaml:"transport" env:"MAIL_TRANSPORT"`
	SES       SESConfig     `yaml:"ses"`
	Logging   LoggingConfig `yaml:"logging"`
}

// HTTPConfig holds the API listener configuration.
type HTTPConfig struct {
	Listen          string        `yaml:"listen" env:"HTTP_LISTEN"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"CORS_ALLOW_ORIGINS" envSeparator:","`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// SMTPConfig holds the upstream SMTP server settings. Missing credentials are
// not an error here; they surface when a send is attempted.
type SMTPConfig struct {
	Host                  string `yaml:"host" env:"SMTP_HOST"`
	Port                  int    `yaml:"port" env:"SMTP_PORT"`
	Username              string `yaml:"username" env:"SMTP_USER"`
	Password              string `yaml:"password" env:"SMTP_PASS"`
	TLSCAFile             string `yaml:"tls_ca_file" env:"SMTP_TLS_CA_FILE"`
	TLSInsecureSkipVerify bool   `yaml:"tls_insecure_skip_verify" env:"SMTP_TLS_INSECURE_SKIP_VERIFY"`
}

// SESConfig holds AWS SES configuration.
type SESConfig struct {
	Region          string `yaml:"region" env:"SES_REGION"`
	AccessKeyID     string `yaml:"access_key_id" env:"SES_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"SES_SECRET_ACCESS_KEY"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

// Validate reports settings that make the process unable to start.
func (c *Config) Validate() error {
	var errs []error

	switch c.Transport {
	case TransportSMTP:
		if c.SMTP.Host == "" {
			errs = append(errs, errors.New("smtp.host must not be empty"))
		}
		if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
			errs = append(errs, fmt.Errorf("smtp.port %d out of range", c.SMTP.Port))
		}
	case TransportSES:
		if c.SES.Region == "" {
			errs = append(errs, errors.New("SES transport selected but SES_REGION is required"))
		}
	case TransportStdout:
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q (want smtp, ses or stdout)", c.Transport))
	}

	if c.HTTP.Listen == "" {
		errs = append(errs, errors.New("http.listen must not be empty"))
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("http.shutdown_timeout must be positive"))
	}
	for _, origin := range c.HTTP.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			errs = append(errs, fmt.Errorf("http.allowed_origins: %q needs an http:// or https:// scheme", origin))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// AuthConfigured returns true if both SMTP username and password are set.
func (c *Config) AuthConfigured() bool {
	return c.SMTP.Username != "" && c.SMTP.Password != ""
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.HTTP.Listen = ":8000"
	c.HTTP.AllowedOrigins = []string{"*"}
	c.HTTP.ShutdownTimeout = 30 * time.Second
	c.SMTP.Host = "smtp.gmail.com"
	c.SMTP.Port = 587
	c.Transport = TransportSMTP
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Unset or empty variables leave the existing value in place.
func (c *Config) applyEnvVars() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	origins := c.HTTP.AllowedOrigins[:0]
	for _, o := range c.HTTP.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.HTTP.AllowedOrigins = origins

	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	return nil
}
