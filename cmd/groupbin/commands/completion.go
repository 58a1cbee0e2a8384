package commands

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion <bash|zsh|fish|powershell>",
	Short: "Emit a shell completion script",
	Long: `Emit a completion script for the named shell on stdout.

Wire it into your shell, for example:

  # bash
  source <(groupbin completion bash)

  # zsh
  groupbin completion zsh > "${fpath[1]}/_groupbin"

  # fish
  groupbin completion fish | source

  # powershell
  groupbin completion powershell | Out-String | Invoke-Expression

Add the same line to your shell profile to load completions in every
session.`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE:                  runCompletion,
}

func runCompletion(cmd *cobra.Command, args []string) error {
	root := cmd.Root()
	out := cmd.OutOrStdout()

	switch args[0] {
	case "bash":
		return root.GenBashCompletionV2(out, true)
	case "zsh":
		return root.GenZshCompletion(out)
	case "fish":
		return root.GenFishCompletion(out, true)
	case "powershell":
		return root.GenPowerShellCompletionWithDesc(out)
	}
	return nil
}
