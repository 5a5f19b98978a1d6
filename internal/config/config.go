// Package config holds the runtime settings of photobookd.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	defaultDatabaseURL    = "sqlite:///tmp/photobook.db"
	defaultListenAddr     = ":8080"
	defaultAllowedOrigin  = "http://localhost:3000"
	defaultSessionIssuer  = "photobook"
	defaultSessionCookie  = "photobook_session"
	defaultRequestTimeout = 10 * time.Second
	minSigningKeyLength   = 32
)

var ErrInvalidConfig = errors.New("invalid config")

// Config aggregates runtime settings for the HTTP service and the sweep.
type Config struct {
	DatabaseURL       string
	ListenAddr        string
	AllowedOrigins    []string
	SessionSigningKey string
	SessionIssuer     string
	SessionCookieName string
	RequestTimeout    time.Duration
	PushEndpoint      string
	PushAccessToken   string
	PaymentBaseURL    string
	PaymentSecretKey  string
	SweepInterval     time.Duration
	MinimumMatchScore float64
}

// Validate fills defaults and rejects inconsistent settings.
func (cfg *Config) Validate() error {
	cfg.DatabaseURL = defaultIfEmpty(cfg.DatabaseURL, defaultDatabaseURL)
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	cfg.SessionIssuer = defaultIfEmpty(cfg.SessionIssuer, defaultSessionIssuer)
	cfg.SessionCookieName = defaultIfEmpty(cfg.SessionCookieName, defaultSessionCookie)
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.SweepInterval < 0 {
		return fmt.Errorf("%w: sweep interval must not be negative", ErrInvalidConfig)
	}
	if cfg.MinimumMatchScore < 0 || cfg.MinimumMatchScore > 100 {
		return fmt.Errorf("%w: minimum match score must be within 0..100", ErrInvalidConfig)
	}
	if len(cfg.SessionSigningKey) < minSigningKeyLength {
		return fmt.Errorf("%w: jwt signing key must hold at least %d bytes", ErrInvalidConfig, minSigningKeyLength)
	}
	if cfg.PushEndpoint != "" {
		if err := requireURL(cfg.PushEndpoint); err != nil {
			return fmt.Errorf("%w: push endpoint: %v", ErrInvalidConfig, err)
		}
	}
	if cfg.PaymentBaseURL != "" {
		if err := requireURL(cfg.PaymentBaseURL); err != nil {
			return fmt.Errorf("%w: payment base url: %v", ErrInvalidConfig, err)
		}
		if strings.TrimSpace(cfg.PaymentSecretKey) == "" {
			return fmt.Errorf("%w: payment secret key is required with a payment base url", ErrInvalidConfig)
		}
	}
	return nil
}

// ValidateStorage checks only the settings the sweep command needs.
func (cfg *Config) ValidateStorage() error {
	cfg.DatabaseURL = defaultIfEmpty(cfg.DatabaseURL, defaultDatabaseURL)
	return nil
}

func requireURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
