package group

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/metorm/groupBin/internal/cli/prompt"
	"github.com/metorm/groupBin/internal/cli/timeutil"
	"github.com/metorm/groupBin/pkg/service"
)

var (
	createName           string
	createDuration       int
	createPassword       string
	createPromptPassword bool
	createCreator        string
	createNoConvert      bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new group",
	Long: `Create a new group with its upload directory.

The group lifetime defaults to the configured default duration. Refreshing
the group later extends it by the duration it was created with.

Examples:
  # Create a group with the default lifetime
  groupbin group create --name "design review"

  # Create a group that lives for one week
  groupbin group create --name "handover" --duration 168

  # Create a password protected group (prompts for the password)
  groupbin group create --name "private" --prompt-password`,
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createName, "name", "", "Group name (required)")
	createCmd.Flags().IntVar(&createDuration, "duration", 0, "Lifetime in hours (0 = configured default)")
	createCmd.Flags().StringVar(&createPassword, "password", "", "Group password (empty = open group)")
	createCmd.Flags().BoolVar(&createPromptPassword, "prompt-password", false, "Prompt for the group password interactively")
	createCmd.Flags().StringVar(&createCreator, "creator", "", "Creator label stored with the group")
	createCmd.Flags().BoolVar(&createNoConvert, "no-readonly-convert", false, "Forbid converting this group to read-only later")
	_ = createCmd.MarkFlagRequired("name")
}

func runCreate(cmd *cobra.Command, args []string) error {
	password := createPassword
	if createPromptPassword {
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

	g, err := st.service().CreateGroup(context.Background(), service.CreateGroupParams{
		Name:                   createName,
		DurationHours:          createDuration,
		Password:               password,
		AllowConvertToReadonly: !createNoConvert,
		Creator:                createCreator,
	}, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	printSuccess(cmd, fmt.Sprintf("Group %q created", g.Name))
	fmt.Printf("  ID:        %s\n", g.ID)
	fmt.Printf("  Expires:   %s\n", g.ExpiresAt.Local().Format(timeutil.LocalTimeFormat))
	fmt.Printf("  Protected: %s\n", yesNo(g.HasPassword()))

	return nil
}
