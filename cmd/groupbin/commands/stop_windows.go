//go:build windows

package commands

import (
	"fmt"
	"os"
)

// stopProcess terminates the GroupBin server process. Windows has no
// SIGTERM, so graceful stops send os.Interrupt and --force kills outright.
func stopProcess(process *os.Process, pid int, force bool) error {
	var err error
	if force {
		fmt.Printf("Killing process %d...\n", pid)
		err = process.Kill()
	} else {
		fmt.Printf("Sending interrupt to process %d...\n", pid)
		err = process.Signal(os.Interrupt)
	}

	if err == os.ErrProcessDone {
		return errProcessDone
	}
	if err != nil {
		return fmt.Errorf("failed to stop process: %w", err)
	}

	return nil
}
