package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// errProcessDone signals that the server process had already exited
// before the stop signal was delivered.
var errProcessDone = errors.New("process already done")

var (
	stopPidFile string
	stopForce   bool
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running server",
	Long: `Signal the server identified by the PID file to shut down.

A plain stop sends SIGTERM and the server drains in-flight requests
before exiting. --force sends SIGKILL instead, skipping the drain.`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopPidFile, "pid-file", "", "PID file to read (default: groupbin.pid in the state directory)")
	stopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "kill immediately instead of draining")
}

func runStop(cmd *cobra.Command, args []string) error {
	pidPath := stopPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	pid, err := readPidFile(pidPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no PID file at %s, the server does not appear to be running", pidPath)
		}
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}

	if err := stopProcess(process, pid, stopForce); err != nil {
		if errors.Is(err, errProcessDone) {
			fmt.Println("Server was not running, removing stale PID file")
			_ = os.Remove(pidPath)
			return nil
		}
		return err
	}

	if stopForce {
		fmt.Println("Server killed")
		return nil
	}

	// Wait briefly so the common case reports a clean exit.
	for i := 0; i < 20; i++ {
		time.Sleep(100 * time.Millisecond)
		if _, running := isProcessRunning(pidPath); !running {
			fmt.Println("Server stopped")
			return nil
		}
	}
	fmt.Println("Shutdown signal sent, server is still draining")
	return nil
}
