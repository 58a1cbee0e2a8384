// Package group implements group administration commands for groupbin.
package group

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/metorm/groupBin/internal/cli/output"
	"github.com/metorm/groupBin/pkg/blob"
	"github.com/metorm/groupBin/pkg/config"
	"github.com/metorm/groupBin/pkg/service"
	"github.com/metorm/groupBin/pkg/store"
)

// Cmd is the parent command for group administration.
var Cmd = &cobra.Command{
	Use:   "group",
	Short: "Group administration",
	Long: `Administer groups directly against the configured stores.

Group commands operate on the database and upload directory from the
server configuration, so they work whether or not the server is running.
Password checks are bypassed; these are operator commands.

Examples:
  # List all groups
  groupbin group list

  # Show group details
  groupbin group show 1a2b3c4d

  # Create a new group
  groupbin group create --name "design review"

  # Extend a group's lifetime
  groupbin group extend 1a2b3c4d

  # Make a group read-only
  groupbin group readonly 1a2b3c4d

  # Set or clear a group password
  groupbin group password 1a2b3c4d

  # Delete a group and its files
  groupbin group delete 1a2b3c4d`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(extendCmd)
	Cmd.AddCommand(readonlyCmd)
	Cmd.AddCommand(passwordCmd)
	Cmd.AddCommand(deleteCmd)
}

// stores bundles the handles a group command works against.
type stores struct {
	cfg   *config.Config
	db    store.Store
	blobs *blob.Store
}

func (s *stores) Close() {
	_ = s.db.Close()
}

// service builds a Service over the open stores.
func (s *stores) service() *service.Service {
	return service.New(s.db, s.blobs, service.Config{
		DefaultDuration: s.cfg.Groups.DefaultDuration,
		MaxDuration:     s.cfg.Groups.MaxDuration,
		MaxSize:         int64(s.cfg.Upload.MaxSize),
	})
}

// printSuccess prints msg in green unless the root --no-color flag is set.
func printSuccess(cmd *cobra.Command, msg string) {
	disabled, _ := cmd.Flags().GetBool("no-color")
	output.NewPrinter(os.Stdout, !disabled).Success(msg)
}

// openStores loads configuration from the root --config flag and opens
// the metadata and blob stores.
func openStores(cmd *cobra.Command) (*stores, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return nil, err
	}

	db, err := store.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	blobCfg := blob.DefaultConfig(cfg.Upload.Root)
	blobCfg.MoveMaxWait = cfg.Upload.MoveMaxWait
	blobs, err := blob.New(blobCfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}

	return &stores{cfg: cfg, db: db, blobs: blobs}, nil
}
