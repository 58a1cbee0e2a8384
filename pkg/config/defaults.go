package config

import (
	"crypto/rand"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"

	"github.com/metorm/groupBin/internal/bytesize"
	"github.com/metorm/groupBin/pkg/store"
)

// ApplyDefaults fills every zero-valued field with its documented default.
//
// Load calls this after the file is read, so anything the operator wrote
// survives and only the gaps get filled. Two keys are deliberately
// skipped: upload.max_size and reclaim.interval treat an explicit zero as
// "disabled", so their defaults come from viper (file loads) or
// GetDefaultConfig (no file) where zero and absent are distinguishable.
func ApplyDefaults(cfg *Config) {
	applyDataDirDefaults(cfg)
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(cfg)
	applyDatabaseDefaults(cfg)
	applyUploadDefaults(cfg)
	applyGroupsDefaults(&cfg.Groups)
	applyAuthDefaults(&cfg.Auth)
	applySessionDefaults(cfg)
	applyReclaimDefaults(&cfg.Reclaim)
	applyTelemetryDefaults(&cfg.Telemetry)
}

// applyDataDirDefaults resolves the data directory everything else hangs off.
func applyDataDirDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = getDataDir()
	}
}

// applyLoggingDefaults fills logging defaults and uppercases the level,
// which every later comparison relies on.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 10 * bytesize.MB
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 5
	}
}

// applyServerDefaults sets HTTP server defaults.
func applyServerDefaults(cfg *Config) {
	cfg.Server.ApplyDefaults()
}

// applyDatabaseDefaults sets database defaults.
// The SQLite file lands in the data directory unless pointed elsewhere.
func applyDatabaseDefaults(cfg *Config) {
	cfg.Database.ApplyDefaults()

	if cfg.Database.Type == store.DatabaseTypeSQLite && cfg.Database.SQLite.Path == "" {
		cfg.Database.SQLite.Path = filepath.Join(cfg.DataDir, "groupbin.db")
	}
}

// applyUploadDefaults sets upload staging defaults.
func applyUploadDefaults(cfg *Config) {
	if cfg.Upload.Root == "" {
		cfg.Upload.Root = filepath.Join(cfg.DataDir, "data")
	}
	if cfg.Upload.ChunkSize == 0 {
		cfg.Upload.ChunkSize = 5 * bytesize.MB
	}
	if cfg.Upload.MoveMaxWait == 0 {
		cfg.Upload.MoveMaxWait = 3 * time.Second
	}
	// MaxSize is left alone: zero disables the size cap
}

// applyGroupsDefaults sets group lifetime defaults.
func applyGroupsDefaults(cfg *GroupsConfig) {
	if cfg.DefaultDuration == 0 {
		cfg.DefaultDuration = 72 * time.Hour
	}
	// MaxDuration is left alone: zero means uncapped
}

// applyAuthDefaults sets authentication defaults.
// SecretKey has no default here; a missing key fails validation instead.
func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.AuthDelay == 0 {
		cfg.AuthDelay = time.Second
	}
	if cfg.SessionLifetime == 0 {
		cfg.SessionLifetime = 168 * time.Hour
	}
	if cfg.MaxRecentGroups == 0 {
		cfg.MaxRecentGroups = 10
	}
}

// applySessionDefaults sets session storage defaults.
func applySessionDefaults(cfg *Config) {
	if cfg.Session.Dir == "" {
		cfg.Session.Dir = filepath.Join(cfg.DataDir, "sessions")
	}
}

// applyReclaimDefaults sets reclamation defaults.
func applyReclaimDefaults(cfg *ReclaimConfig) {
	if cfg.DataAfter == 0 {
		cfg.DataAfter = 72 * time.Hour
	}
	if cfg.DBAfter == 0 {
		cfg.DBAfter = 144 * time.Hour
	}
	if cfg.ChunkTTL == 0 {
		cfg.ChunkTTL = 24 * time.Hour
	}
	if cfg.SessionAfter == 0 {
		cfg.SessionAfter = 720 * time.Hour
	}
	// Interval is left alone: zero or negative disables the worker
}

// applyTelemetryDefaults points tracing at a local OTLP collector and
// keeps every trace unless told otherwise. Enabled stays false.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults targets a local Pyroscope server with the
// profile set that needs no runtime rate tuning. Enabled stays false.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// GetDefaultConfig builds a complete configuration from defaults alone.
// Config-less starts, the init template, and tests all begin here.
//
// The auth secret is freshly generated on every call, so a config-less
// start can still sign sessions. Sessions then die with the process;
// persisting the key requires a config file or GROUPBIN_AUTH_SECRET_KEY.
func GetDefaultConfig() *Config {
	enabled := true

	cfg := &Config{
		Database: store.Config{
			Type: store.DatabaseTypeSQLite,
		},
		Upload: UploadConfig{
			MaxSize: bytesize.GB,
		},
		Auth: AuthConfig{
			SecretKey: generateSecretKey(),
		},
		Reclaim: ReclaimConfig{
			Interval: time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: &enabled,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}

// generateSecretKey returns a fresh random session signing key in hex.
func generateSecretKey() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform cannot produce entropy
		panic("failed to generate secret key: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
