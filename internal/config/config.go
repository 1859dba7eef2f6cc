// Package config defines the global configuration for the CrewPlan
// generation engine. Configuration is loaded once at process
// initialization and is immutable thereafter, following 12-Factor
// principles: values come from the environment, optionally seeded from a
// .env file in development.
package config

import (
	"time"

	"crewplan/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret
// type used for sensitive configuration values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once
// during startup and never modified. Components receive only the
// subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"crewplan-engine"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server     ServerConfig
	Database   DatabaseConfig
	AWS        AWSConfig
	Generation GenerationConfig
	Platform   PlatformConfig
	Feature    FeatureConfig
}

// ServerConfig holds the ops HTTP API settings.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// AuthToken is the static bearer token admitted by the ops API.
	AuthToken SecretString `envconfig:"OPS_AUTH_TOKEN" validate:"required"`

	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"eu-central-1"`

	// JobEventsQueue receives job.created envelopes for the assignment
	// worker. Required only when announcements are enabled.
	JobEventsQueue string `envconfig:"SQS_JOB_EVENTS" validate:"omitempty,url"`

	// LocalStack support (empty in prod).
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// GenerationConfig holds pass execution tuning.
type GenerationConfig struct {
	// BatchLimit caps how many due plans one worker invocation
	// processes. 0 means no cap.
	BatchLimit int `envconfig:"GENERATION_BATCH_LIMIT" default:"100"`
	// Concurrency bounds parallel passes within one batch.
	Concurrency int `envconfig:"GENERATION_CONCURRENCY" default:"4"`
}

// PlatformConfig holds the admin platform API settings for deployments
// that materialize jobs remotely instead of into the engine's own
// database.
type PlatformConfig struct {
	// Enabled switches the materializer from the local jobs table to the
	// platform API.
	Enabled bool         `envconfig:"PLATFORM_MATERIALIZER" default:"false"`
	BaseURL string       `envconfig:"PLATFORM_BASE_URL" validate:"omitempty,url"`
	APIKey  SecretString `envconfig:"PLATFORM_API_KEY"`

	Timeout time.Duration `envconfig:"PLATFORM_TIMEOUT" default:"10s"`
}

// FeatureConfig holds emergency kill switches.
type FeatureConfig struct {
	EnableAnnouncements bool `envconfig:"FEATURE_ENABLE_ANNOUNCEMENTS" default:"true"`
	EnableMetrics       bool `envconfig:"FEATURE_ENABLE_METRICS" default:"true"`
}
