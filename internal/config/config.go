// Package config defines the global configuration structure for the Expanse
// storefront backend. Configuration is loaded once at process initialization
// and is immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to exit
// immediately on startup (fail fast).
package config

import (
	"time"

	"expanse/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the storefront backend.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server        ServerConfig
	WHMCS         WHMCSConfig
	Pricing       PricingConfig
	Catalog       CatalogConfig
	Database      DatabaseConfig
	Notify        NotifyConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string   `envconfig:"PORT" default:"8080"`
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// WHMCSConfig holds the upstream billing platform endpoint and credentials.
// Identifier/Secret may be empty in local development; the billing client
// degrades to an empty price mapping without making a network call.
type WHMCSConfig struct {
	BaseURL    string        `envconfig:"WHMCS_API_URL" default:"https://my.expanse.host" validate:"required,url"`
	Identifier SecretString  `envconfig:"WHMCS_API_IDENTIFIER"`
	Secret     SecretString  `envconfig:"WHMCS_API_SECRET"`
	Currency   string        `envconfig:"WHMCS_CURRENCY" default:"USD"`
	Timeout    time.Duration `envconfig:"WHMCS_TIMEOUT" default:"30s"`
}

// PricingConfig holds the inbound price endpoint credential and cache tuning.
type PricingConfig struct {
	// APIKey guards GET /v1/prices. Empty means the gate fails closed and
	// every price request is rejected.
	APIKey   SecretString  `envconfig:"PRICING_API_KEY"`
	CacheTTL time.Duration `envconfig:"PRICE_CACHE_TTL" default:"10m"`
}

// CatalogConfig controls where the commerce lookup tables are loaded from.
type CatalogConfig struct {
	// Path points to a catalog JSON file. Empty means the embedded default
	// catalog is used (unless a database source is configured).
	Path string `envconfig:"CATALOG_PATH"`
}

// DatabaseConfig holds the optional Postgres catalog source. When URL is
// empty, the catalog is loaded from file instead.
type DatabaseConfig struct {
	URL             SecretString  `envconfig:"DATABASE_URL"`
	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"4"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// NotifyConfig holds the Discord webhook destinations for contact-form and
// waitlist submissions. Empty URLs disable the corresponding endpoint's
// delivery (the request is still accepted and logged).
type NotifyConfig struct {
	ContactWebhookURL  SecretString  `envconfig:"DISCORD_CONTACT_WEBHOOK"`
	WaitlistWebhookURL SecretString  `envconfig:"DISCORD_WAITLIST_WEBHOOK"`
	Timeout            time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`
	UserAgent          string        `envconfig:"NOTIFY_USER_AGENT" default:"Expanse-Storefront/1.0"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Expanse"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
	AWSRegion       string `envconfig:"AWS_REGION" default:"us-east-1"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
