package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/metorm/groupBin/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config file for problems",
	Long: `Load the config file the same way the server does and report
anything that would stop it from starting, plus warnings about
settings that are legal but probably unintended.`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	shown := configPath
	if shown == "" {
		shown = config.GetDefaultConfigPath()
	}
	fmt.Printf("%s loads cleanly\n", shown)

	for _, w := range configWarnings(cfg) {
		fmt.Printf("  warning: %s\n", w)
	}

	fmt.Println("\nEffective settings:")
	for _, row := range [][2]string{
		{"database", string(cfg.Database.Type)},
		{"port", fmt.Sprintf("%d", cfg.Server.Port)},
		{"upload root", cfg.Upload.Root},
		{"max upload", cfg.Upload.MaxSize.String()},
		{"group lifetime", cfg.Groups.DefaultDuration.String()},
		{"log level", cfg.Logging.Level},
	} {
		fmt.Printf("  %-15s %s\n", row[0], row[1])
	}
	return nil
}

// configWarnings flags settings that load fine but deserve a second
// look before production use.
func configWarnings(cfg *config.Config) []string {
	var warnings []string
	if cfg.Auth.CreatePassword == "" {
		warnings = append(warnings, "auth.create_password not set, anyone can create groups")
	}
	if cfg.Auth.UnifiedPassword != "" {
		warnings = append(warnings, "auth.unified_password is set, it unlocks every protected group")
	}
	if cfg.Reclaim.Interval <= 0 {
		warnings = append(warnings, "reclaim.interval <= 0 disables reclamation, expired groups will accumulate")
	}
	if cfg.Upload.MaxSize == 0 {
		warnings = append(warnings, "upload.max_size not set, uploads of any size are accepted")
	}
	return warnings
}
