//go:build windows

package commands

import (
	"fmt"
	"os"
)

// startDaemon has no Windows implementation; the server only runs in the
// foreground there.
func startDaemon() error {
	return fmt.Errorf("daemon mode is not supported on Windows, use --foreground")
}

// isProcessRunning reports whether the PID recorded at pidPath is still
// alive. Windows has no signal 0, but FindProcess already fails for dead
// PIDs there.
func isProcessRunning(pidPath string) (int, bool) {
	pid, err := readPidFile(pidPath)
	if err != nil {
		return 0, false
	}
	if _, err := os.FindProcess(pid); err != nil {
		return 0, false
	}
	return pid, true
}
