//go:build !windows

package commands

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// isProcessRunning reports whether the PID recorded at pidPath is still
// alive. Signal 0 probes existence without delivering anything.
func isProcessRunning(pidPath string) (int, bool) {
	pid, err := readPidFile(pidPath)
	if err != nil {
		return 0, false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}
	return pid, process.Signal(syscall.Signal(0)) == nil
}

// startDaemon re-executes the binary as a detached background process
// and points it at a PID file.
func startDaemon() error {
	if err := os.MkdirAll(GetDefaultStateDir(), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	pidPath := pidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}
	if pid, running := isProcessRunning(pidPath); running {
		return fmt.Errorf("GroupBin is already running (PID %d), stop it first with 'groupbin stop'", pid)
	}
	// A leftover file from a crashed run would trip the check above on
	// the next start.
	_ = os.Remove(pidPath)

	logPath := logFile
	if logPath == "" {
		logPath = GetDefaultLogFile()
	}
	sink, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open daemon log: %w", err)
	}
	defer func() { _ = sink.Close() }()

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	args := []string{"start", "--foreground", "--pid-file", pidPath}
	if GetConfigFile() != "" {
		args = append(args, "--config", GetConfigFile())
	}

	child := exec.Command(self, args...)
	child.Stdout = sink
	child.Stderr = sink
	// A new session detaches the child from our controlling terminal.
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := child.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	fmt.Printf("GroupBin running in the background (PID %d)\n", child.Process.Pid)
	fmt.Printf("  PID file: %s\n  Log file: %s\n", pidPath, logPath)
	fmt.Println("\n'groupbin status' reports health, 'groupbin stop' shuts it down")
	return nil
}
