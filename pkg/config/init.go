package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// configFileHeader is prepended to generated configuration files.
const configFileHeader = `# GroupBin Configuration File
#
# Generated by 'groupbin init'. Every value below is a default except
# auth.secret_key, which was freshly generated for this installation.
# Keys removed from this file fall back to their built-in defaults.
#
# Environment variables override file values using the GROUPBIN_ prefix:
#   GROUPBIN_LOGGING_LEVEL=DEBUG
#   GROUPBIN_AUTH_SECRET_KEY=<key>

`

// InitConfig creates a configuration file at the default location
// ($XDG_CONFIG_HOME/groupbin/config.yaml or ~/.config/groupbin/config.yaml).
//
// Returns the path of the created file. Fails if the file already exists,
// unless force is true.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath creates a configuration file at the given path.
//
// The generated file carries every section with default values and a
// freshly generated session signing key, so it is immediately loadable.
func InitConfigToPath(path string, force bool) error {
	return WriteConfig(GetDefaultConfig(), path, force)
}

// WriteConfig writes cfg to path as a commented YAML file with 0600
// permissions. Fails if the file already exists, unless force is true.
func WriteConfig(cfg *Config, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// 0600: the file holds the session signing key
	content := append([]byte(configFileHeader), data...)
	if err := os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
