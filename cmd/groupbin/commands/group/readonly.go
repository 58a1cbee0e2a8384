package group

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var readonlyCmd = &cobra.Command{
	Use:   "readonly <group-id>",
	Short: "Convert a group to read-only",
	Long: `Convert a group to read-only. Existing files stay downloadable but
no further uploads or deletions are accepted. The conversion cannot
be undone.

Groups created with --no-readonly-convert refuse this operation.

Examples:
  # Make a group read-only
  groupbin group readonly 1a2b3c4d`,
	Args: cobra.ExactArgs(1),
	RunE: runReadonly,
}

func runReadonly(cmd *cobra.Command, args []string) error {
	id := args[0]

	st, err := openStores(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	g, err := st.service().ConvertToReadonly(context.Background(), id)
	if err != nil {
		return fmt.Errorf("failed to convert group: %w", err)
	}

	printSuccess(cmd, fmt.Sprintf("Group %q is now read-only", g.Name))
	return nil
}
