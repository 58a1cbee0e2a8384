package config

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/metorm/groupBin/pkg/config"
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit the config file in $EDITOR",
	Long: `Open the config file in $VISUAL or $EDITOR (vi when neither is set)
and reload it once the editor exits, so mistakes show up now instead
of at the next server start.`,
	RunE: runConfigEdit,
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}
	if _, err := os.Stat(configPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no config file at %s, create one with 'groupbin init'", configPath)
		}
		return err
	}

	editor := pickEditor()
	run := exec.Command(editor, configPath)
	run.Stdin = os.Stdin
	run.Stdout = os.Stdout
	run.Stderr = os.Stderr
	if err := run.Run(); err != nil {
		return fmt.Errorf("%s exited with an error: %w", editor, err)
	}

	if _, err := config.Load(configPath); err != nil {
		fmt.Printf("Warning: the edited file does not load:\n  %v\n", err)
		fmt.Println("Fix it and re-check with 'groupbin config validate'.")
		return nil
	}
	fmt.Println("Configuration OK")
	return nil
}

func pickEditor() string {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if e := os.Getenv(env); e != "" {
			return e
		}
	}
	return "vi"
}
