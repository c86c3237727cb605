package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/umsd/internal/logger"
	"github.com/marmos91/umsd/internal/telemetry"
	"github.com/marmos91/umsd/pkg/config"
	"github.com/marmos91/umsd/pkg/metrics"
	"github.com/marmos91/umsd/pkg/server"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/umsd/pkg/metrics/prometheus"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the umsd service",
	Long: `Start the umsd service in the foreground.

The service bootstraps its heap, timer, queue and device registration,
opens the configured storage units and serves clients until interrupted.
A failed bootstrap exits with the magnitude of its negative status.

Examples:
  # Start with the default config (or built-in defaults)
  umsd start

  # Start with a custom config file
  umsd start --config /etc/umsd/config.yaml

  # Start with environment variable overrides
  UMSD_LOGGING_LEVEL=DEBUG umsd start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		// ctx is cancelled by then; the exporter flush needs a live context.
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(profilingConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	logger.Info("Telemetry", "tracing", telemetry.IsEnabled(), "profiling", telemetry.IsProfilingEnabled(), "metrics", metrics.IsEnabled())

	opts := server.Options{Version: Version, BuildDate: Date}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), opts.Banner())

	srv, err := server.New(ctx, cfg, opts)
	if err != nil {
		return err
	}

	if pidFile != "" {
		if err := os.WriteFile(pidFile, fmt.Appendf(nil, "%d", os.Getpid()), 0644); err != nil {
			srv.Close()
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	logger.Info("Server is running. Press Ctrl+C to stop.",
		"socket", cfg.Service.SocketPath,
		logger.KeyPath, cfg.Service.DeviceName)

	return srv.Run(ctx)
}
