// Package config defines CLI configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Loading layers defaults, an optional YAML file and MSR_* env vars.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Token backend selectors.
const (
	TokenBackendAuto    = "auto"
	TokenBackendKeyring = "keyring"
	TokenBackendFile    = "file"
)

// Default endpoints and limits.
const (
	DefaultBaseURL      = "https://api.motorsportreg.com"
	DefaultAuthorizeURL = "https://www.motorsportreg.com/index.cfm/event/oauth"
	DefaultCallbackPort = 8089
	defaultServiceName  = "hpde-analytics"
	maxPort             = 65535
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// ConsumerKey and ConsumerSecret identify the application to MSR.
	ConsumerKey    string `koanf:"consumer_key"`
	ConsumerSecret string `koanf:"consumer_secret"`

	// BaseURL is the API root, AuthorizeURL the browser authorization page.
	BaseURL      string `koanf:"base_url"`
	AuthorizeURL string `koanf:"authorize_url"`

	// CallbackPort is the local port the OAuth redirect lands on.
	CallbackPort int `koanf:"callback_port"`

	// OrganizationID is sent as X-Organization-Id when --org-id is absent.
	OrganizationID string `koanf:"organization_id"`

	// TokenBackend selects keyring, file or auto (keyring with file fallback).
	TokenBackend string `koanf:"token_backend"`
	// TokenFile is the fallback token location.
	TokenFile string `koanf:"token_file"`
	// KeyringService namespaces entries in the OS keystore.
	KeyringService string `koanf:"keyring_service"`

	RequestTimeoutMS int `koanf:"request_timeout_ms"`
	AuthTimeoutMS    int `koanf:"auth_timeout_ms"`
	MaxAttempts      int `koanf:"max_attempts"`
	RetryBaseDelayMS int `koanf:"retry_base_delay_ms"`

	// OutputDir is the parent directory for export runs.
	OutputDir string `koanf:"output_dir"`

	// MetricsFile, when set, receives a Prometheus textfile at exit.
	MetricsFile string `koanf:"metrics_file"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		BaseURL:          DefaultBaseURL,
		AuthorizeURL:     DefaultAuthorizeURL,
		CallbackPort:     DefaultCallbackPort,
		TokenBackend:     TokenBackendAuto,
		TokenFile:        defaultTokenFile(),
		KeyringService:   defaultServiceName,
		RequestTimeoutMS: 30_000,
		AuthTimeoutMS:    300_000,
		MaxAttempts:      3,
		RetryBaseDelayMS: 1_000,
		OutputDir:        "output",
	}
}

// RequestTimeout returns the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// AuthTimeout returns how long the handshake waits for the browser redirect.
func (c *Config) AuthTimeout() time.Duration {
	return time.Duration(c.AuthTimeoutMS) * time.Millisecond
}

// RetryBaseDelay returns the first backoff step.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

// HasConsumer reports whether both consumer credentials are present.
func (c *Config) HasConsumer() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != ""
}

// FillConsumer sets the consumer key and secret from stored values where
// the configuration left them blank. It reports whether anything was filled.
func (c *Config) FillConsumer(key, secret string) bool {
	filled := false
	if c.ConsumerKey == "" && key != "" {
		c.ConsumerKey = key
		filled = true
	}
	if c.ConsumerSecret == "" && secret != "" {
		c.ConsumerSecret = secret
		filled = true
	}
	return filled
}

// Validate checks the values that the rest of the program relies on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("%w: base_url must not be empty", ErrInvalidConfig)
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("%w: base_url: %w", ErrInvalidConfig, err)
	}
	if strings.TrimSpace(c.AuthorizeURL) == "" {
		return fmt.Errorf("%w: authorize_url must not be empty", ErrInvalidConfig)
	}
	if c.CallbackPort <= 0 || c.CallbackPort > maxPort {
		return fmt.Errorf("%w: callback_port %d out of range", ErrInvalidConfig, c.CallbackPort)
	}
	switch c.TokenBackend {
	case TokenBackendAuto, TokenBackendKeyring, TokenBackendFile:
	default:
		return fmt.Errorf("%w: token_backend %q (want auto, keyring or file)", ErrInvalidConfig, c.TokenBackend)
	}
	if c.TokenBackend != TokenBackendKeyring && c.TokenFile == "" {
		return fmt.Errorf("%w: token_file must not be empty", ErrInvalidConfig)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max_attempts must be at least 1", ErrInvalidConfig)
	}
	if c.RequestTimeoutMS <= 0 || c.AuthTimeoutMS <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	if c.RetryBaseDelayMS < 0 {
		return fmt.Errorf("%w: retry_base_delay_ms must not be negative", ErrInvalidConfig)
	}
	return nil
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".", "tokens", "access_token.json")
	}
	return filepath.Join(dir, defaultServiceName, "access_token.json")
}
