package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/metorm/groupBin/internal/bytesize"
	"github.com/metorm/groupBin/pkg/api"
	"github.com/metorm/groupBin/pkg/store"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvSecretKey is the environment variable that overrides auth.secret_key.
// It always wins, even when the key is absent from the config file.
const EnvSecretKey = "GROUPBIN_AUTH_SECRET_KEY"

// Config is the full GroupBin server configuration.
//
// Everything here is static for the lifetime of the process: where data
// lives, how uploads are staged, how long groups last, and how the server
// logs and reports. Groups, files, versions, and sessions are dynamic
// state and live in the database and session directory, never in this
// file.
//
// Values are resolved in order of precedence: CLI flags, then GROUPBIN_*
// environment variables, then the config file (YAML or TOML), then
// built-in defaults.
type Config struct {
	// DataDir is the root directory for everything GroupBin persists:
	// the SQLite database, uploaded files, and session state. Individual
	// paths (database.sqlite.path, upload.root, session.dir) can still be
	// pointed elsewhere; DataDir only seeds their defaults.
	// Default: $XDG_STATE_HOME/groupbin or ~/.local/state/groupbin
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains HTTP server configuration
	Server api.ServerConfig `mapstructure:"server" yaml:"server"`

	// Database configures the metadata database (SQLite or PostgreSQL).
	// This is the persistent store for groups, files, and file versions.
	Database store.Config `mapstructure:"database" yaml:"database"`

	// Upload controls the upload staging area and size limits
	Upload UploadConfig `mapstructure:"upload" yaml:"upload"`

	// Groups controls group lifetimes
	Groups GroupsConfig `mapstructure:"groups" yaml:"groups"`

	// Auth contains password and session token configuration
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`

	// Session configures server-side session storage
	Session SessionConfig `mapstructure:"session" yaml:"session"`

	// Reclaim configures the background reclamation worker that removes
	// expired groups, abandoned chunks, and stale sessions
	Reclaim ReclaimConfig `mapstructure:"reclaim" yaml:"reclaim"`

	// Metrics contains Prometheus metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// LoggingConfig selects what gets logged and where it lands.
type LoggingConfig struct {
	// Level is the minimum level emitted: DEBUG, INFO, WARN, or ERROR.
	// Either case is accepted; ApplyDefaults normalizes to uppercase.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format selects "text" or "json" output.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is "stdout", "stderr", or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`

	// MaxSize rotates file output once it grows past this size.
	// Ignored when Output is stdout or stderr.
	// Supports human-readable formats: "10MB", "512KiB"
	// Default: 10MB
	MaxSize bytesize.ByteSize `mapstructure:"max_size" yaml:"max_size"`

	// MaxBackups is the number of rotated log files to keep.
	// Default: 5
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

// UploadConfig controls the upload staging area and size limits.
type UploadConfig struct {
	// Root is the directory holding per-group file directories and the
	// tmp/ staging area for in-flight chunks.
	// Default: <data_dir>/data
	Root string `mapstructure:"root" validate:"required" yaml:"root"`

	// MaxSize caps the declared total size of a single upload.
	// Zero disables the cap.
	// Supports human-readable formats: "1GB", "500MiB"
	// Default: 1GB
	MaxSize bytesize.ByteSize `mapstructure:"max_size" yaml:"max_size"`

	// ChunkSize is the chunk size advertised to upload clients.
	// Default: 5MB
	ChunkSize bytesize.ByteSize `mapstructure:"chunk_size" yaml:"chunk_size"`

	// MoveMaxWait bounds how long a merge waits for the assembled file to
	// become visible in the group directory before giving up.
	// Default: 3s
	MoveMaxWait time.Duration `mapstructure:"move_max_wait" yaml:"move_max_wait"`
}

// GroupsConfig controls group lifetimes.
type GroupsConfig struct {
	// DefaultDuration is the lifetime a new group gets when the client
	// does not choose one. Refreshing a group extends it by the duration
	// it was created with, not by this value.
	// Default: 72h
	DefaultDuration time.Duration `mapstructure:"default_duration" yaml:"default_duration"`

	// MaxDuration caps the lifetime a client may request at creation.
	// Zero means uncapped.
	// Default: 0
	MaxDuration time.Duration `mapstructure:"max_duration" yaml:"max_duration"`
}

// AuthConfig contains password and session token configuration.
type AuthConfig struct {
	// SecretKey signs session tokens. It must be at least 32 characters;
	// changing it invalidates every outstanding session.
	// Override: GROUPBIN_AUTH_SECRET_KEY
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`

	// UnifiedPassword, when set, is accepted for any group in place of
	// the group's own password. Empty disables it.
	UnifiedPassword string `mapstructure:"unified_password" yaml:"unified_password,omitempty"`

	// CreatePassword, when set, must be presented to create a group.
	// Empty means anyone can create groups.
	CreatePassword string `mapstructure:"create_password" yaml:"create_password,omitempty"`

	// AuthDelay is the pause inserted before every failed password
	// response, slowing down guessing.
	// Default: 1s
	AuthDelay time.Duration `mapstructure:"auth_delay" yaml:"auth_delay"`

	// SessionLifetime is how long a session token stays valid.
	// Default: 168h (one week)
	SessionLifetime time.Duration `mapstructure:"session_lifetime" yaml:"session_lifetime"`

	// MaxRecentGroups caps the recently-visited group list kept per session.
	// Default: 10
	MaxRecentGroups int `mapstructure:"max_recent_groups" yaml:"max_recent_groups"`
}

// SessionConfig configures server-side session storage.
type SessionConfig struct {
	// Dir is the directory holding one state file per session.
	// Default: <data_dir>/sessions
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// ReclaimConfig configures the background reclamation worker.
//
// Reclamation runs in two stages: group data on disk is removed DataAfter
// past expiry, and the database rows DBAfter past expiry. DBAfter must not
// be shorter than DataAfter, so rows always outlive their data and expired
// groups stay listable until the final sweep.
type ReclaimConfig struct {
	// Interval is the pause between reclamation cycles. Zero or negative
	// disables the worker; values under a minute are raised to a minute.
	// Default: 1h
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`

	// DataAfter is how long past group expiry the files on disk survive.
	// Default: 72h
	DataAfter time.Duration `mapstructure:"data_after" yaml:"data_after"`

	// DBAfter is how long past group expiry the database rows survive.
	// Default: 144h
	DBAfter time.Duration `mapstructure:"db_after" yaml:"db_after"`

	// ChunkTTL is the age at which abandoned chunk directories and merge
	// lock files in the staging area are removed.
	// Default: 24h
	ChunkTTL time.Duration `mapstructure:"chunk_ttl" yaml:"chunk_ttl"`

	// SessionAfter is the age at which untouched session files are removed.
	// Default: 720h (30 days)
	SessionAfter time.Duration `mapstructure:"session_after" yaml:"session_after"`
}

// MetricsConfig configures Prometheus metrics collection.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served on /metrics.
	// It is a pointer so an absent key and an explicit false stay
	// distinguishable.
	// Default: true
	Enabled *bool `mapstructure:"enabled" yaml:"enabled"`
}

// IsEnabled reports whether metrics are collected. An unset key counts
// as enabled.
func (c *MetricsConfig) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// TelemetryConfig controls OpenTelemetry tracing. Spans are exported over
// OTLP gRPC to whatever collector listens at Endpoint (Jaeger, Tempo, or
// the OTel collector itself).
type TelemetryConfig struct {
	// Enabled turns tracing on.
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector address as host:port.
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure disables TLS toward the collector, which suits local
	// development setups.
	// Default: true
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the fraction of traces kept, 0.0 through 1.0.
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling configures Pyroscope continuous profiling.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling. Profiles stream
// to the server at Endpoint for flame graph inspection.
type ProfilingConfig struct {
	// Enabled turns profiling on.
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL.
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes lists the profiles to collect: cpu, alloc_objects,
	// alloc_space, inuse_objects, inuse_space, goroutines, mutex_count,
	// mutex_duration, block_count, block_duration.
	// Default: cpu, the alloc and inuse pairs, and goroutines
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// Load builds the configuration from the file at configPath plus the
// GROUPBIN_* environment and built-in defaults. An empty configPath
// searches the default location. A missing file is not an error; the
// result is then a pure-default config.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	var cfg *Config
	if found {
		cfg = new(Config)
		if err := v.Unmarshal(cfg, viper.DecodeHook(configDecodeHook())); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
		ApplyDefaults(cfg)
	} else {
		// The generated secret key changes on every load, so sessions
		// will not survive a restart until a config file or
		// GROUPBIN_AUTH_SECRET_KEY pins one.
		cfg = GetDefaultConfig()
	}
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// MustLoad is Load for commands that need an existing config file: when
// the file is missing it returns instructions for creating one instead of
// silently falling back to defaults.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no config file at the default location (%s)\n\n"+
				"Create one first:\n"+
				"  groupbin init\n\n"+
				"Or point at an existing file:\n"+
				"  groupbin <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s\n\n"+
			"Create it with:\n"+
			"  groupbin init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// setupViper wires the GROUPBIN_* environment and the config file
// location into v.
func setupViper(v *viper.Viper, configPath string) {
	// GROUPBIN_LOGGING_LEVEL=DEBUG overrides logging.level, and so on.
	v.SetEnvPrefix("GROUPBIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// An explicit zero for these keys is meaningful (it disables the
	// feature), so their defaults live here rather than in ApplyDefaults,
	// which cannot tell zero from absent.
	v.SetDefault("upload.max_size", "1GB")
	v.SetDefault("reclaim.interval", "1h")

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	// No explicit path: search the config directory for config.{yaml,toml}.
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reads the resolved config file into v and reports
// whether one was found. A missing file is not an error.
func readConfigFile(v *viper.Viper) (bool, error) {
	err := v.ReadInConfig()
	if err == nil {
		return true, nil
	}

	// Viper reports a missing file from the search path and a missing
	// explicitly-named file with different errors.
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) || os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to read config file: %w", err)
}

// applyEnvOverrides applies environment variables that must win even when
// the corresponding key never appears in the config file. Viper's
// AutomaticEnv only resolves keys it has already seen.
func applyEnvOverrides(cfg *Config) {
	if secret := os.Getenv(EnvSecretKey); secret != "" {
		cfg.Auth.SecretKey = secret
	}
}

// configDecodeHook converts config file scalars into the richer field
// types: human-readable sizes ("500MiB") into bytesize.ByteSize and
// duration strings ("90m") into time.Duration. Bare numbers pass through
// as bytes and nanoseconds respectively, and YAML hands numbers over as
// float64 as often as int.
func configDecodeHook() mapstructure.DecodeHookFunc {
	byteSizeType := reflect.TypeOf(bytesize.ByteSize(0))
	durationType := reflect.TypeOf(time.Duration(0))

	return func(from, to reflect.Type, data any) (any, error) {
		switch to {
		case byteSizeType:
			switch v := data.(type) {
			case string:
				return bytesize.ParseByteSize(v)
			case int:
				return bytesize.ByteSize(v), nil
			case int64:
				return bytesize.ByteSize(v), nil
			case uint64:
				return bytesize.ByteSize(v), nil
			case float64:
				return bytesize.ByteSize(v), nil
			}
		case durationType:
			switch v := data.(type) {
			case string:
				return time.ParseDuration(v)
			case int:
				return time.Duration(v), nil
			case int64:
				return time.Duration(v), nil
			case float64:
				return time.Duration(v), nil
			}
		}
		return data, nil
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/groupbin, or ~/.config/groupbin.
// Falls back to the current directory when no home is known.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "groupbin")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "groupbin")
}

// getDataDir returns $XDG_STATE_HOME/groupbin, or ~/.local/state/groupbin.
// Falls back to the current directory when no home is known.
func getDataDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "groupbin")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "state", "groupbin")
}

// GetDefaultConfigPath is where Load looks when --config is not given.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a file sits at GetDefaultConfigPath.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir exposes the config directory for the init command.
func GetConfigDir() string {
	return getConfigDir()
}
