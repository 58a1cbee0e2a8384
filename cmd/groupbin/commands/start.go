package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/metorm/groupBin/internal/logger"
	"github.com/metorm/groupBin/internal/telemetry"
	"github.com/metorm/groupBin/pkg/api"
	"github.com/metorm/groupBin/pkg/api/handlers"
	"github.com/metorm/groupBin/pkg/blob"
	"github.com/metorm/groupBin/pkg/config"
	"github.com/metorm/groupBin/pkg/reclaim"
	"github.com/metorm/groupBin/pkg/service"
	"github.com/metorm/groupBin/pkg/session"
	"github.com/metorm/groupBin/pkg/store"
	"github.com/metorm/groupBin/pkg/upload"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the GroupBin server",
	Long: `Start the GroupBin server.

Without flags the server detaches and runs in the background. Use
--foreground when debugging or under a process supervisor.

Configuration comes from --config, or from the default location at
$XDG_CONFIG_HOME/groupbin/config.yaml when the flag is omitted.

Examples:
  # Start in background (default)
  groupbin start

  # Start in foreground
  groupbin start --foreground

  # Start with custom config file
  groupbin start --config /etc/groupbin/config.yaml

  # Start with environment variable overrides
  GROUPBIN_LOGGING_LEVEL=DEBUG groupbin start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/groupbin/groupbin.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/groupbin/groupbin.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// One signal context drives everything: on SIGINT or SIGTERM the API
	// server drains, the reclaim worker finishes its pass, and the
	// deferred cleanups run in reverse construction order.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownObservability, err := initObservability(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownObservability()

	fmt.Println("GroupBin - Ephemeral group file sharing")
	logger.Info("Configuration loaded",
		"source", getConfigSource(GetConfigFile()),
		"log_level", cfg.Logging.Level,
		"log_format", cfg.Logging.Format)

	var registry *prometheus.Registry
	if cfg.Metrics.IsEnabled() {
		registry = prometheus.NewRegistry()
		logger.Info("Metrics enabled", "path", "/metrics")
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Metadata store, runs migrations on open.
	db, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize metadata store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("store close error", "error", err)
		}
	}()
	logger.Info("Metadata store ready", "type", cfg.Database.Type)

	// Blob store: upload root with per-group directories.
	blobCfg := blob.DefaultConfig(cfg.Upload.Root)
	blobCfg.MoveMaxWait = cfg.Upload.MoveMaxWait
	blobs, err := blob.New(blobCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize blob store: %w", err)
	}
	logger.Info("Blob store ready", "root", blobs.Root())

	// Chunk upload assembler
	uploadCfg := upload.Config{MaxSize: int64(cfg.Upload.MaxSize)}
	if registry != nil {
		uploadCfg.Metrics = upload.NewMetrics(registry)
	}
	assembler := upload.New(blobs, db, uploadCfg)

	// Session storage and token signing
	sessionStore, err := session.NewStore(cfg.Session.Dir)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}
	tokens, err := session.NewTokenService(session.TokenConfig{
		Secret:   cfg.Auth.SecretKey,
		Lifetime: cfg.Auth.SessionLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize session tokens: %w", err)
	}
	sessions := session.NewManager(sessionStore, tokens, session.ManagerConfig{
		MaxRecentGroups: cfg.Auth.MaxRecentGroups,
	})

	// Group and file operations
	svc := service.New(db, blobs, service.Config{
		DefaultDuration: cfg.Groups.DefaultDuration,
		MaxDuration:     cfg.Groups.MaxDuration,
		MaxSize:         int64(cfg.Upload.MaxSize),
	})

	// Background reclamation worker
	reclaimCfg := reclaim.Config{
		Interval:     cfg.Reclaim.Interval,
		DataAfter:    cfg.Reclaim.DataAfter,
		DBAfter:      cfg.Reclaim.DBAfter,
		ChunkTTL:     cfg.Reclaim.ChunkTTL,
		SessionAfter: cfg.Reclaim.SessionAfter,
		SessionDir:   cfg.Session.Dir,
	}
	if registry != nil {
		reclaimCfg.Metrics = reclaim.NewMetrics(registry)
	}
	worker := reclaim.New(db, blobs, reclaimCfg)
	if worker.Enabled() {
		worker.Start(ctx)
		defer worker.Stop(30 * time.Second)
		logger.Info("Reclamation worker started", "interval", worker.Interval())
	} else {
		logger.Info("Reclamation worker disabled")
	}

	// HTTP API server
	server := api.NewServer(cfg.Server, api.Deps{
		Service:   svc,
		Assembler: assembler,
		Sessions:  sessions,
		DB:        db,
		Auth: handlers.AuthOptions{
			UnifiedPassword: cfg.Auth.UnifiedPassword,
			CreatePassword:  cfg.Auth.CreatePassword,
			AuthDelay:       cfg.Auth.AuthDelay,
		},
		Registry: registry,
	})

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	// Start blocks until the signal context cancels; graceful drain
	// happens inside before it returns.
	logger.Info("Server is running, interrupt to stop", "port", cfg.Server.Port)
	if err := server.Start(ctx); err != nil {
		logger.Error("Server error", "error", err)
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// initObservability starts tracing and profiling per the configuration
// and returns a cleanup that flushes both. The flush context survives
// cancellation of the signal context, otherwise the final batch of
// spans would be dropped on shutdown.
func initObservability(ctx context.Context, cfg *config.Config) (func(), error) {
	flushCtx := context.WithoutCancel(ctx)

	traceShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "groupbin",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "groupbin",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		if terr := traceShutdown(flushCtx); terr != nil {
			logger.Error("telemetry shutdown error", "error", terr)
		}
		return nil, fmt.Errorf("failed to initialize profiling: %w", err)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("Profiling disabled")
	}

	return func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
		if err := traceShutdown(flushCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}, nil
}
