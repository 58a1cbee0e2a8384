package group

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/metorm/groupBin/internal/cli/timeutil"
)

var extendCmd = &cobra.Command{
	Use:   "extend <group-id>",
	Short: "Extend a group's lifetime",
	Long: `Extend a group's expiry to now plus the duration it was created with.

The expiry never moves backwards; extending a group whose remaining
lifetime already exceeds its created duration is a no-op.

Examples:
  # Extend a group
  groupbin group extend 1a2b3c4d`,
	Args: cobra.ExactArgs(1),
	RunE: runExtend,
}

func runExtend(cmd *cobra.Command, args []string) error {
	id := args[0]

	st, err := openStores(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	g, err := st.service().RefreshExpiration(context.Background(), id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to extend group: %w", err)
	}

	printSuccess(cmd, fmt.Sprintf("Group %q now expires at %s", g.Name, g.ExpiresAt.Local().Format(timeutil.LocalTimeFormat)))
	return nil
}
