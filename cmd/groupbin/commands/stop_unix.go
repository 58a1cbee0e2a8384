//go:build !windows

package commands

import (
	"fmt"
	"os"
	"syscall"
)

// stopProcess sends the appropriate signal to stop the GroupBin server process.
func stopProcess(process *os.Process, pid int, force bool) error {
	sig, name := syscall.SIGTERM, "SIGTERM"
	if force {
		sig, name = syscall.SIGKILL, "SIGKILL"
	}

	fmt.Printf("Signaling %s to PID %d\n", name, pid)

	err := process.Signal(sig)
	if err == os.ErrProcessDone {
		return errProcessDone
	}
	if err != nil {
		return fmt.Errorf("signal %s: %w", name, err)
	}

	return nil
}
