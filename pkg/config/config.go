// Package config provides centralized configuration management for the Sentry MCP server.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// DefaultSentryHost is the multi-tenant Sentry SaaS host.
const DefaultSentryHost = "sentry.io"

// Config holds the complete configuration for the application
type Config struct {
	// Sentry API and OAuth application configuration
	Sentry struct {
		Host           string
		AuthToken      string
		Organization   string
		ClientID       string
		ClientSecret   string
		RequestTimeout time.Duration
	}

	// HTTP server configuration, used by the serve command
	Server struct {
		Addr       string
		BaseURL    string
		SessionTTL time.Duration
	}

	// Logging configuration
	Log struct {
		Level  string
		Format string
	}

	Environment string
}

var (
	once   sync.Once
	config *Config
)

// Load initializes and loads the configuration from environment variables
// and any flags bound onto the global viper instance.
func Load() *Config {
	once.Do(func() {
		config = New(viper.GetViper())
	})

	return config
}

// New builds a Config from the given viper instance. Defaults and environment
// bindings are registered on v before reading.
func New(v *viper.Viper) *Config {
	SetDefaults(v)
	BindEnv(v)

	cfg := &Config{}

	cfg.Sentry.Host = strings.TrimSpace(v.GetString("sentry.host"))
	if cfg.Sentry.Host == "" {
		cfg.Sentry.Host = DefaultSentryHost
	}
	cfg.Sentry.AuthToken = v.GetString("sentry.auth_token")
	cfg.Sentry.Organization = v.GetString("sentry.organization")
	cfg.Sentry.ClientID = v.GetString("sentry.client_id")
	cfg.Sentry.ClientSecret = v.GetString("sentry.client_secret")
	cfg.Sentry.RequestTimeout = v.GetDuration("sentry.request_timeout")

	cfg.Server.Addr = v.GetString("server.addr")
	cfg.Server.BaseURL = strings.TrimRight(v.GetString("server.base_url"), "/")
	cfg.Server.SessionTTL = v.GetDuration("server.session_ttl")

	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")

	cfg.Environment = v.GetString("environment")

	return cfg
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("sentry.host", DefaultSentryHost)
	v.SetDefault("sentry.request_timeout", 30*time.Second)
	v.SetDefault("server.addr", ":8788")
	v.SetDefault("server.session_ttl", 30*24*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("environment", "development")
}

// BindEnv maps the configuration keys onto their environment variables.
func BindEnv(v *viper.Viper) {
	bindings := map[string]string{
		"sentry.host":            "SENTRY_HOST",
		"sentry.auth_token":      "SENTRY_AUTH_TOKEN",
		"sentry.organization":    "SENTRY_ORG",
		"sentry.client_id":       "SENTRY_CLIENT_ID",
		"sentry.client_secret":   "SENTRY_CLIENT_SECRET",
		"sentry.request_timeout": "SENTRY_REQUEST_TIMEOUT",
		"server.addr":            "MCP_ADDR",
		"server.base_url":        "MCP_BASE_URL",
		"server.session_ttl":     "MCP_SESSION_TTL",
		"log.level":              "LOG_LEVEL",
		"log.format":             "LOG_FORMAT",
		"environment":            "ENVIRONMENT",
	}

	for key, env := range bindings {
		// BindEnv only fails when no key is given.
		_ = v.BindEnv(key, env)
	}
}

// IsProduction reports whether upstream error details should be hidden from callers.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// ValidateStdio checks the values required to serve a single local session over stdio.
func (c *Config) ValidateStdio() error {
	var errors []string

	if c.Sentry.AuthToken == "" {
		errors = append(errors, "SENTRY_AUTH_TOKEN is not set")
	}

	if c.Sentry.RequestTimeout <= 0 {
		errors = append(errors, "sentry request timeout must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

// ValidateServe checks the values required to run the OAuth-protected HTTP server.
func (c *Config) ValidateServe() error {
	var errors []string

	if c.Sentry.ClientID == "" || c.Sentry.ClientSecret == "" {
		errors = append(errors, "Sentry OAuth application (SENTRY_CLIENT_ID, SENTRY_CLIENT_SECRET) is incomplete")
	}

	if c.Server.Addr == "" {
		errors = append(errors, "server address is required")
	}

	if c.Sentry.RequestTimeout <= 0 {
		errors = append(errors, "sentry request timeout must be positive")
	}

	if c.Server.SessionTTL <= 0 {
		errors = append(errors, "session TTL must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}
