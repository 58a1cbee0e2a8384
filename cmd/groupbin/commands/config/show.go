package config

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/metorm/groupBin/internal/cli/output"
	"github.com/metorm/groupBin/pkg/config"
)

var (
	showOutput  string
	showSecrets bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the current GroupBin configuration.

By default outputs YAML format. Use --output to change format.
Secret values (the session signing key, access passwords, the database
password) are redacted unless --secrets is given, so the output is safe
to attach to a bug report.

Examples:
  # Show default config as YAML
  groupbin config show

  # Show as JSON
  groupbin config show --output json

  # Include secret values
  groupbin config show --secrets

  # Show specific config file
  groupbin config show --config /etc/groupbin/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
	showCmd.Flags().BoolVar(&showSecrets, "secrets", false, "Print secret values instead of redacting them")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	if !showSecrets {
		redactSecrets(cfg)
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, cfg)
	default:
		return output.PrintYAML(os.Stdout, cfg)
	}
}

// redactSecrets masks every value that grants access. Empty values stay
// empty so the output still shows which features are disabled.
func redactSecrets(cfg *config.Config) {
	cfg.Auth.SecretKey = redact(cfg.Auth.SecretKey)
	cfg.Auth.UnifiedPassword = redact(cfg.Auth.UnifiedPassword)
	cfg.Auth.CreatePassword = redact(cfg.Auth.CreatePassword)
	cfg.Database.Postgres.Password = redact(cfg.Database.Postgres.Password)
}

func redact(value string) string {
	if value == "" {
		return ""
	}
	return "<redacted>"
}
