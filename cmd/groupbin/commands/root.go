// Package commands implements the groupbin CLI for server and group
// management.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/metorm/groupBin/cmd/groupbin/commands/config"
	"github.com/metorm/groupBin/cmd/groupbin/commands/group"
)

// Version information injected at build time via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Global flags.
var (
	cfgFile string
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "groupbin",
	Short: "GroupBin - Ephemeral group file sharing",
	Long: `GroupBin is a small self-hosted service for sharing files in short-lived,
optionally password-protected groups. Files are uploaded in resumable chunks,
kept with their full version history, and reclaimed automatically once a
group expires.

Use "groupbin [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. main.main calls this once; errors come back
// for it to report.
func Execute() error {
	return rootCmd.Execute()
}

// GetConfigFile exposes the --config flag value to the subcommands.
func GetConfigFile() string {
	return cfgFile
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/groupbin/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		versionCmd,
		initCmd,
		startCmd,
		stopCmd,
		statusCmd,
		logsCmd,
		migrateCmd,
		reclaimCmd,
		group.Cmd,
		config.Cmd,
		completionCmd,
	)

	// Our completion command replaces the stock one.
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
