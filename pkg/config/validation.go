package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// MinSecretKeyLength is the shortest accepted session signing key.
// Tokens are signed with HMAC-SHA256, so anything shorter weakens the MAC.
const MinSecretKeyLength = 32

// Validate checks the configuration for errors.
//
// Struct tags handle the single-field rules (ranges, enumerations);
// everything spanning more than one field is checked by hand below.
// Validation never mutates the config; normalization happens in
// ApplyDefaults, so this is safe to call on a config the caller built
// directly.
func Validate(cfg *Config) error {
	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if len(cfg.Auth.SecretKey) < MinSecretKeyLength {
		return fmt.Errorf("auth.secret_key must be at least %d characters (got %d); set it in the config file or via %s",
			MinSecretKeyLength, len(cfg.Auth.SecretKey), EnvSecretKey)
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}

	// Rows must outlive data on disk, or expired groups would vanish from
	// listings while their files still count against storage.
	if cfg.Reclaim.DBAfter < cfg.Reclaim.DataAfter {
		return fmt.Errorf("reclaim.db_after (%s) must not be shorter than reclaim.data_after (%s)",
			cfg.Reclaim.DBAfter, cfg.Reclaim.DataAfter)
	}

	if cfg.Groups.MaxDuration > 0 && cfg.Groups.DefaultDuration > cfg.Groups.MaxDuration {
		return fmt.Errorf("groups.default_duration (%s) exceeds groups.max_duration (%s)",
			cfg.Groups.DefaultDuration, cfg.Groups.MaxDuration)
	}

	return nil
}
