// Package config implements the config subcommands for inspecting and
// maintaining groupbin configuration files.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd collects the config file subcommands.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Inspect and maintain GroupBin configuration files.

A new configuration is created with 'groupbin init'; the subcommands
here work on an existing one:

  show      Display the effective configuration
  edit      Open the configuration in $EDITOR
  validate  Check a configuration file for errors
  schema    Emit the JSON schema for IDE completion`,
}

func init() {
	Cmd.AddCommand(showCmd, editCmd, validateCmd, schemaCmd)
}
