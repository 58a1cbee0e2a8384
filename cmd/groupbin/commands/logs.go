package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/metorm/groupBin/pkg/config"
)

var (
	logsFollow bool
	logsLines  int
	logsSince  string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show server logs",
	Long: `Display and optionally follow the GroupBin server logs.

This command reads the log file specified in the configuration. When the
server logs to stdout/stderr, the daemon log file in the state directory
is used instead (daemon mode captures stdout/stderr there).

Examples:
  # Show last 100 lines (default)
  groupbin logs

  # Show last 50 lines
  groupbin logs -n 50

  # Follow logs in real-time
  groupbin logs -f

  # Show logs since a specific time
  groupbin logs --since "2024-01-15T10:00:00Z"

  # Combine options
  groupbin logs -f -n 20`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "Number of lines to show")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since timestamp (RFC3339 format)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logFile, err := resolveLogFile(cfg)
	if err != nil {
		return err
	}
	if _, err := os.Stat(logFile); err != nil {
		return fmt.Errorf("no log file at %s\nEither the server has not started yet or it logs somewhere else", logFile)
	}

	var since time.Time
	if logsSince != "" {
		since, err = time.Parse(time.RFC3339, logsSince)
		if err != nil {
			return fmt.Errorf("--since must be RFC3339, e.g. 2024-01-15T10:00:00Z: %w", err)
		}
	}

	if err := printTail(os.Stdout, logFile, logsLines, since); err != nil {
		return err
	}
	if !logsFollow {
		return nil
	}
	return followLog(logFile)
}

// resolveLogFile returns the file the server writes its logs to. A
// server logging to stdout/stderr has no log file of its own, but
// daemon mode captures that output in the state directory log.
func resolveLogFile(cfg *config.Config) (string, error) {
	out := cfg.Logging.Output
	if out != "stdout" && out != "stderr" {
		return out, nil
	}

	daemonLog := GetDefaultLogFile()
	if _, err := os.Stat(daemonLog); err != nil {
		return "", fmt.Errorf("server is configured to log to %s, not a file\nConfigure 'logging.output' in config to a file path, or start the server in daemon mode", out)
	}
	return daemonLog, nil
}

// printTail prints the last n lines that pass the since filter. Lines
// are kept in a fixed ring so large log files are never held whole.
func printTail(w io.Writer, logFile string, n int, since time.Time) error {
	if n <= 0 {
		return nil
	}

	file, err := os.Open(logFile)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	ring := make([]string, n)
	count := 0

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if skipLine(line, since) {
			continue
		}
		ring[count%n] = line
		count++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}

	first := 0
	if count > n {
		first = count - n
	}
	for i := first; i < count; i++ {
		fmt.Fprintln(w, ring[i%n])
	}
	return nil
}

// skipLine reports whether a line falls before the since cutoff. Lines
// without a recognizable timestamp are kept.
func skipLine(line string, since time.Time) bool {
	if since.IsZero() {
		return false
	}
	ts := lineTime(line)
	return !ts.IsZero() && ts.Before(since)
}

// followLog streams lines appended to the log file until interrupted.
// Rotation renames the file out from under the watch, so the loop
// reopens the recreated file and keeps going.
func followLog(logFile string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(logFile); err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}

	file, err := os.Open(logFile)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek log file: %w", err)
	}
	reader := bufio.NewReader(file)

	fmt.Fprintf(os.Stderr, "Following %s, interrupt to stop\n", logFile)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			switch {
			case event.Has(fsnotify.Write):
				printNewLines(reader)

			case event.Has(fsnotify.Rename), event.Has(fsnotify.Remove):
				// Rotation. Drain what the old handle still holds, then
				// switch to the recreated file.
				printNewLines(reader)

				reopened, err := reopenLog(logFile)
				if err != nil {
					return err
				}
				_ = file.Close()
				file = reopened
				reader = bufio.NewReader(file)

				if err := watcher.Add(logFile); err != nil {
					return fmt.Errorf("failed to rewatch log file: %w", err)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// printNewLines copies completed lines from the reader to stdout. A
// partial line without its newline yet stays buffered for the next
// write event.
func printNewLines(reader *bufio.Reader) {
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		fmt.Print(line)
	}
}

// reopenLog waits briefly for a rotated log file to be recreated.
func reopenLog(logFile string) (*os.File, error) {
	for i := 0; i < 20; i++ {
		file, err := os.Open(logFile)
		if err == nil {
			return file, nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil, fmt.Errorf("log file disappeared: %s", logFile)
}

// textTimeLayout matches the date-time inside the bracketed prefix of
// text format log lines.
const textTimeLayout = "2006-01-02 15:04:05"

// lineTime extracts a line's timestamp. Text lines open with the
// handler's "[date time]" prefix; JSON lines carry an RFC3339 "time"
// field. A zero time means nothing was recognized.
func lineTime(line string) time.Time {
	if strings.HasPrefix(line, "[") && len(line) > len(textTimeLayout) {
		if t, err := time.ParseInLocation(textTimeLayout, line[1:1+len(textTimeLayout)], time.Local); err == nil {
			return t
		}
	}

	const timeKey = `"time":"`
	start := strings.Index(line, timeKey)
	if start < 0 {
		return time.Time{}
	}
	start += len(timeKey)
	end := strings.IndexByte(line[start:], '"')
	if end < 0 {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, line[start:start+end]); err == nil {
		return t
	}
	return time.Time{}
}
