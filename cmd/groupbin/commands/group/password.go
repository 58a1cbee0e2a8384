package group

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/metorm/groupBin/internal/cli/prompt"
)

var (
	passwordValue string
	passwordClear bool
)

var passwordCmd = &cobra.Command{
	Use:   "password <group-id>",
	Short: "Set or clear a group's password",
	Long: `Set or clear the password protecting a group.

Without flags, prompts for a new password with confirmation. Clearing
the password makes the group open; existing sessions stay valid.

Examples:
  # Set a password interactively
  groupbin group password 1a2b3c4d

  # Set a password from a flag
  groupbin group password 1a2b3c4d --set s3cret

  # Remove the password
  groupbin group password 1a2b3c4d --clear`,
	Args: cobra.ExactArgs(1),
	RunE: runPassword,
}

func init() {
	passwordCmd.Flags().StringVar(&passwordValue, "set", "", "New password")
	passwordCmd.Flags().BoolVar(&passwordClear, "clear", false, "Remove the password")
}

func runPassword(cmd *cobra.Command, args []string) error {
	id := args[0]

	if passwordClear && passwordValue != "" {
		return fmt.Errorf("--set and --clear are mutually exclusive")
	}

	password := passwordValue
	if !passwordClear && password == "" {
		var err error
		password, err = prompt.NewPassword()
		if err != nil {
			return err
		}
	}

	st, err := openStores(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	g, err := st.db.GetGroup(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get group: %w", err)
	}

	if err := g.SetPassword(password); err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := st.db.UpdateGroup(ctx, g); err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}

	if passwordClear {
		printSuccess(cmd, fmt.Sprintf("Password removed from group %q", g.Name))
	} else {
		printSuccess(cmd, fmt.Sprintf("Password updated for group %q", g.Name))
	}
	return nil
}
