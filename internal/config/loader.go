package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// LoadConfig loads and validates the engine configuration.
//
// The loading sequence is:
//  1. Load a .env file via godotenv (non-fatal if absent; never
//     overrides already-set variables).
//  2. Process envconfig struct tags against the environment.
//  3. Validate with go-playground/validator; any violation fails
//     startup immediately.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: processing environment: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate checks struct tags plus the cross-field rules envconfig
// cannot express.
func validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			e := errs[0]
			return fmt.Errorf("config: field %s failed %q validation", e.Namespace(), e.Tag())
		}
		return fmt.Errorf("config: validation: %w", err)
	}

	if cfg.Platform.Enabled && cfg.Platform.BaseURL == "" {
		return fmt.Errorf("config: PLATFORM_BASE_URL is required when PLATFORM_MATERIALIZER is enabled")
	}
	if cfg.Platform.Enabled && cfg.Platform.APIKey.Unmask() == "" {
		return fmt.Errorf("config: PLATFORM_API_KEY is required when PLATFORM_MATERIALIZER is enabled")
	}
	if cfg.Feature.EnableAnnouncements && cfg.AWS.JobEventsQueue == "" {
		return fmt.Errorf("config: SQS_JOB_EVENTS is required when announcements are enabled")
	}
	return nil
}
