package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/metorm/groupBin/internal/logger"
	"github.com/metorm/groupBin/pkg/config"
)

// InitLogger configures the process-wide logger from the loaded config.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		MaxSize:    int64(cfg.Logging.MaxSize),
		MaxBackups: cfg.Logging.MaxBackups,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// GetDefaultStateDir picks the platform state directory for PID and
// daemon log files: %LOCALAPPDATA% on Windows, $XDG_STATE_HOME elsewhere.
func GetDefaultStateDir() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData != "" {
			return filepath.Join(localAppData, "groupbin")
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "groupbin")
		}
		return filepath.Join(homeDir, "AppData", "Local", "groupbin")
	}

	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "groupbin")
		}
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(stateDir, "groupbin")
}

// GetDefaultPidFile is the PID file the daemon writes unless --pid-file
// says otherwise.
func GetDefaultPidFile() string {
	return filepath.Join(GetDefaultStateDir(), "groupbin.pid")
}

// GetDefaultLogFile is where a daemonized server sends its output.
func GetDefaultLogFile() string {
	return filepath.Join(GetDefaultStateDir(), "groupbin.log")
}

// readPidFile parses the process ID recorded at path. Read errors pass
// through unwrapped so callers can test os.IsNotExist.
func readPidFile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("malformed PID file %s: %q", path, strings.TrimSpace(string(raw)))
	}
	return pid, nil
}

// getConfigSource names the config file in use, or "defaults" when no
// file exists.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
