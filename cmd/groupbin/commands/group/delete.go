package group

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/metorm/groupBin/internal/cli/prompt"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <group-id>",
	Short: "Delete a group",
	Long: `Delete a group, its database rows, and its files on disk.

There is no undo. A confirmation prompt guards the deletion; --force
skips it for scripted use.

Examples:
  # Delete a group after confirming
  groupbin group delete 1a2b3c4d

  # Delete without the prompt
  groupbin group delete 1a2b3c4d --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
	id := args[0]

	st, err := openStores(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	g, err := st.db.GetGroupWithFiles(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get group: %w", err)
	}

	label := fmt.Sprintf("Delete group %q and its %d file(s)?", g.Name, len(g.Files))
	confirmed, err := prompt.ConfirmWithForce(label, deleteForce)
	if err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	if err := st.db.DeleteGroup(ctx, id); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if err := st.blobs.RemoveGroupDir(ctx, id); err != nil {
		return fmt.Errorf("group rows deleted but removing files failed: %w", err)
	}

	printSuccess(cmd, fmt.Sprintf("Group %q deleted", g.Name))
	return nil
}
