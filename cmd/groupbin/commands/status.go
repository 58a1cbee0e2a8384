package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/metorm/groupBin/internal/cli/health"
	"github.com/metorm/groupBin/internal/cli/output"
	"github.com/metorm/groupBin/internal/cli/timeutil"
)

var (
	statusOutput  string
	statusPidFile string
	statusAPIPort int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Display the current status of the GroupBin server.

The command probes the PID file, the liveness endpoint and the readiness
endpoint, and reports process state, uptime and database health.

Examples:
  # Check status (uses default settings)
  groupbin status

  # Check status with custom API port
  groupbin status --api-port 9080

  # Output as JSON
  groupbin status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/groupbin/groupbin.pid)")
	statusCmd.Flags().IntVar(&statusAPIPort, "api-port", 8080, "API server port")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// ServerStatus aggregates the three status probes for output.
type ServerStatus struct {
	Running   bool   `json:"running" yaml:"running"`
	Healthy   bool   `json:"healthy" yaml:"healthy"`
	Ready     bool   `json:"ready" yaml:"ready"`
	PID       int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	StartedAt string `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime    string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Database  string `json:"database,omitempty" yaml:"database,omitempty"`
	DBLatency string `json:"db_latency,omitempty" yaml:"db_latency,omitempty"`
	Message   string `json:"message" yaml:"message"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	status := collectStatus()

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	printStatusTable(status, !noColor)
	return nil
}

// collectStatus runs the PID, liveness and readiness probes in order.
// Each later probe refines the picture the earlier ones drew.
func collectStatus() ServerStatus {
	status := ServerStatus{Message: "Server is not running"}

	pidPath := statusPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}
	if pid, alive := isProcessRunning(pidPath); alive {
		status.Running = true
		status.PID = pid
		status.Message = "Server process exists but health check failed"
	}

	base := fmt.Sprintf("http://localhost:%d", statusAPIPort)
	client := &http.Client{Timeout: 2 * time.Second}

	var live health.Response
	if err := fetchJSON(client, base+"/health", &live); err != nil {
		return status
	}

	status.Running = true
	status.Healthy = live.Status == "healthy"
	status.StartedAt = live.Data.StartedAt
	status.Uptime = live.Data.Uptime
	if status.Healthy {
		status.Message = "Server is running and healthy"
	} else {
		status.Message = fmt.Sprintf("Server is running but unhealthy: %s", live.Error)
	}

	var ready health.ReadyResponse
	if err := fetchJSON(client, base+"/health/ready", &ready); err != nil {
		return status
	}
	status.Ready = ready.Status == "healthy"
	if status.Ready {
		status.Database = ready.Data.Database
		status.DBLatency = ready.Data.Latency
	} else {
		status.Database = ready.Error
	}
	return status
}

// fetchJSON decodes the response body into dst regardless of HTTP
// status, since unhealthy probes still answer with the same envelope.
func fetchJSON(client *http.Client, url string, dst any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return json.NewDecoder(resp.Body).Decode(dst)
}

func printStatusTable(status ServerStatus, colored bool) {
	paint := func(s, color string) string {
		if !colored {
			return s
		}
		return color + s + "\033[0m"
	}

	fmt.Println()
	fmt.Println("GroupBin Server Status")
	fmt.Println("======================")
	fmt.Println()

	switch {
	case status.Running && status.Healthy:
		fmt.Printf("  Status:     %s\n", paint("● Running", "\033[32m"))
	case status.Running:
		fmt.Printf("  Status:     %s\n", paint("● Running (unhealthy)", "\033[33m"))
	default:
		fmt.Printf("  Status:     %s\n", paint("○ Stopped", "\033[31m"))
	}

	if status.Running {
		if status.PID != 0 {
			fmt.Printf("  PID:        %d\n", status.PID)
		}
		if status.StartedAt != "" {
			fmt.Printf("  Started:    %s\n", timeutil.FormatTime(status.StartedAt))
		}
		if status.Uptime != "" {
			fmt.Printf("  Uptime:     %s\n", timeutil.FormatUptime(status.Uptime))
		}
		switch {
		case status.Ready:
			db := status.Database
			if status.DBLatency != "" {
				db = fmt.Sprintf("%s (%s)", db, status.DBLatency)
			}
			fmt.Printf("  Database:   %s\n", db)
		case status.Database != "":
			fmt.Printf("  Database:   %s\n", paint(status.Database, "\033[31m"))
		}
	}

	fmt.Println()
	fmt.Printf("  %s\n", status.Message)
	fmt.Println()
}
