package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/metorm/groupBin/internal/bytesize"
	"github.com/metorm/groupBin/internal/cli/prompt"
	"github.com/metorm/groupBin/pkg/config"
	"github.com/metorm/groupBin/pkg/store"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a configuration file",
	Long: `Initialize a GroupBin configuration file.

By default, a sample file with default values and a freshly generated
session secret is created at $XDG_CONFIG_HOME/groupbin/config.yaml.
Use --config to specify a custom path, and --interactive to walk through
the common settings instead of editing the file afterwards.

Examples:
  # Write a sample config at the default location
  groupbin init

  # Guided setup
  groupbin init --interactive

  # Initialize with custom path
  groupbin init --config /etc/groupbin/config.yaml

  # Force overwrite existing config
  groupbin init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Walk through the common settings interactively")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if initInteractive {
		if err := runInitInteractive(configPath); err != nil {
			if prompt.IsAborted(err) {
				fmt.Println("Aborted.")
				return nil
			}
			return err
		}
	} else {
		if err := config.InitConfigToPath(configPath, initForce); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
	}

	printInitNextSteps(configPath)
	return nil
}

// runInitInteractive walks through the settings people actually change.
// Everything not asked about keeps its default and can still be edited
// in the generated file.
func runInitInteractive(configPath string) error {
	if !initForce {
		if _, err := os.Stat(configPath); err == nil {
			overwrite, err := prompt.Confirm(fmt.Sprintf("Configuration file %s already exists. Overwrite it", configPath), false)
			if err != nil {
				return err
			}
			if !overwrite {
				return prompt.ErrAborted
			}
		}
	}

	fmt.Println("GroupBin guided setup. Enter accepts the shown default, Ctrl+C aborts.")
	fmt.Println()

	cfg := config.GetDefaultConfig()

	dataDir, err := prompt.Input("Data directory", cfg.DataDir)
	if err != nil {
		return err
	}
	if dataDir != cfg.DataDir {
		// Paths derived from the data directory move with it.
		cfg.DataDir = dataDir
		cfg.Database.SQLite.Path = filepath.Join(dataDir, "groupbin.db")
		cfg.Upload.Root = filepath.Join(dataDir, "data")
		cfg.Session.Dir = filepath.Join(dataDir, "sessions")
	}

	cfg.Server.Port, err = prompt.InputPort("HTTP port", cfg.Server.Port)
	if err != nil {
		return err
	}

	dbType, err := prompt.SelectString("Database", []string{
		string(store.DatabaseTypeSQLite),
		string(store.DatabaseTypePostgres),
	})
	if err != nil {
		return err
	}
	cfg.Database.Type = store.DatabaseType(dbType)

	if cfg.Database.Type == store.DatabaseTypePostgres {
		if err := promptPostgres(&cfg.Database.Postgres); err != nil {
			return err
		}
	} else {
		cfg.Database.SQLite.Path, err = prompt.Input("SQLite database file", cfg.Database.SQLite.Path)
		if err != nil {
			return err
		}
	}

	sizeStr, err := prompt.InputWithValidation(
		fmt.Sprintf("Maximum upload size (e.g. 500MB, empty = %s)", cfg.Upload.MaxSize),
		func(input string) error {
			if input == "" {
				return nil
			}
			_, err := bytesize.ParseByteSize(input)
			return err
		})
	if err != nil {
		return err
	}
	if sizeStr != "" {
		cfg.Upload.MaxSize, _ = bytesize.ParseByteSize(sizeStr) // Already validated
	}

	hours, err := prompt.InputInt("Default group lifetime in hours", int(cfg.Groups.DefaultDuration.Hours()))
	if err != nil {
		return err
	}
	cfg.Groups.DefaultDuration = time.Duration(hours) * time.Hour

	cfg.Auth.CreatePassword, err = prompt.Password("Group creation password (empty = anyone can create groups)")
	if err != nil {
		return err
	}

	cfg.Auth.UnifiedPassword, err = prompt.Password("Unified access password (empty = disabled)")
	if err != nil {
		return err
	}

	cfg.Logging.Level, err = prompt.SelectString("Log level", []string{"INFO", "DEBUG", "WARN", "ERROR"})
	if err != nil {
		return err
	}

	cfg.Logging.Format, err = prompt.Select("Log format", []prompt.SelectOption{
		{Label: "text", Value: "text", Description: "Human readable lines"},
		{Label: "json", Value: "json", Description: "One JSON object per line"},
	})
	if err != nil {
		return err
	}

	logFile, err := prompt.InputOptional("Log file, empty logs to stdout")
	if err != nil {
		return err
	}
	if logFile != "" {
		cfg.Logging.Output = logFile
	}

	metricsEnabled, err := prompt.Confirm("Expose Prometheus metrics on /metrics", true)
	if err != nil {
		return err
	}
	cfg.Metrics.Enabled = &metricsEnabled

	// Overwriting was already confirmed above.
	if err := config.WriteConfig(cfg, configPath, true); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Println()
	return nil
}

// promptPostgres collects the PostgreSQL connection settings.
func promptPostgres(pg *store.PostgresConfig) error {
	var err error

	pg.Host, err = prompt.Input("PostgreSQL host", "localhost")
	if err != nil {
		return err
	}

	pg.Port, err = prompt.InputPort("PostgreSQL port", 5432)
	if err != nil {
		return err
	}

	pg.Database, err = prompt.InputRequired("PostgreSQL database")
	if err != nil {
		return err
	}

	pg.User, err = prompt.InputRequired("PostgreSQL user")
	if err != nil {
		return err
	}

	pg.Password, err = prompt.Password("PostgreSQL password")
	if err != nil {
		return err
	}

	pg.SSLMode, err = prompt.SelectString("PostgreSQL SSL mode", []string{
		"disable", "require", "verify-ca", "verify-full",
	})
	return err
}

func printInitNextSteps(configPath string) {
	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Review the configuration file and adjust it to your setup")
	fmt.Println("  2. Start the server with: groupbin start")
	fmt.Printf("  3. Or specify custom config: groupbin start --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  A random session secret has been generated for development use.")
	fmt.Println("  For production, generate a secure secret and use an environment variable:")
	fmt.Println("    # Generates a 64-character hex string (32 bytes of entropy)")
	fmt.Printf("    export %s=$(openssl rand -hex 32)\n", config.EnvSecretKey)
}
