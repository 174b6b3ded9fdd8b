package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/deusflow/newsbrief/internal/app"
	"github.com/deusflow/newsbrief/internal/config"
	"github.com/deusflow/newsbrief/internal/logger"
	"github.com/deusflow/newsbrief/internal/metrics"
	"github.com/deusflow/newsbrief/internal/trends"
)

var rootCmd = &cobra.Command{
	Use:           "newsbrief",
	Short:         "Select fresh, diverse, non-repeating stories per category",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		logger.Init()
		return nil
	},
}

var (
	categoriesPath string
	serveAfterRun  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the selection pipeline once and print the briefs",
	RunE:  runSelection,
}

var (
	trendsMetricsDir string
	trendsOutDir     string
)

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Score daily metrics snapshots and write trend reports",
	RunE:  runTrends,
}

func init() {
	runCmd.Flags().StringVar(&categoriesPath, "config", "", "categories YAML (overrides CATEGORIES_CONFIG_PATH)")
	runCmd.Flags().BoolVar(&serveAfterRun, "serve", false, "keep the monitoring server up after the run")

	trendsCmd.Flags().StringVar(&trendsMetricsDir, "metrics-dir", "", "directory with metrics-YYYY-MM-DD.json (default METRICS_DIR)")
	trendsCmd.Flags().StringVar(&trendsOutDir, "out", "", "report directory (default: parent of the metrics dir)")

	rootCmd.AddCommand(runCmd, trendsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("newsbrief failed", "error", err)
		os.Exit(1)
	}
}

func runSelection(cmd *cobra.Command, args []string) error {
	if categoriesPath != "" {
		os.Setenv("CATEGORIES_CONFIG_PATH", categoriesPath)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var monitor *metrics.Monitor
	var srv *http.Server
	if cfg.EnableHTTPMonitoring {
		monitor = metrics.NewMonitor()
		srv = startMonitoringServer(cfg.MonitoringPort, monitor)
	}

	runErr := app.Run(ctx, cfg, monitor, cmd.OutOrStdout())

	if srv != nil {
		if serveAfterRun {
			logger.Info("run complete, serving monitoring endpoints until interrupted")
			<-ctx.Done()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	return runErr
}

func startMonitoringServer(port string, monitor *metrics.Monitor) *http.Server {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           monitor.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting monitoring server", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("monitoring server error", "error", err)
		}
	}()
	return srv
}

func runTrends(cmd *cobra.Command, args []string) error {
	dir := trendsMetricsDir
	if dir == "" {
		dir = os.Getenv("METRICS_DIR")
	}
	if dir == "" {
		dir = filepath.Join("state", "metrics")
	}
	out := trendsOutDir
	if out == "" {
		out = filepath.Dir(dir)
	}
	return trends.Run(dir, out, cmd.OutOrStdout())
}
