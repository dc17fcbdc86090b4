// Package main is the CLI entry point for entryd.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/entry_daemon/internal/config"
	"github.com/eliteGoblin/focusd/entry_daemon/internal/daemon"
	"github.com/eliteGoblin/focusd/entry_daemon/internal/domain"
	"github.com/eliteGoblin/focusd/entry_daemon/internal/infra"
	"github.com/eliteGoblin/focusd/entry_daemon/internal/metrics"
	"github.com/eliteGoblin/focusd/entry_daemon/internal/placement"
	"github.com/eliteGoblin/focusd/entry_daemon/internal/usecase"
	"github.com/eliteGoblin/focusd/entry_daemon/internal/validate"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "entryd",
	Short: "Desktop entry and icon lifetime manager",
	Long: `entryd lets sandboxed or transient applications register desktop entries
and icons over D-Bus. Each registration is tied to a lifetime: the calling
process, the current session, or a persistent owner. Resources are removed
when their lifetime ends.`,
	Version:      Version,
	SilenceUsage: true,
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the service on the session bus",
	RunE:  runDaemon,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show directories and a per-lifetime summary",
	RunE:  runStatus,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered entry and icon",
	RunE:  runList,
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove all process and session resources",
	Long: `Removes every process- and session-scoped entry and icon recorded in the
snapshot, together with their files. Persistent resources are kept.
Do not run this while the daemon is running.`,
	RunE: runClean,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath string
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default "+config.DefaultFilePath()+")")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(versionCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := createLogger(cfg)
	defer func() { _ = logger.Sync() }()

	dirs := cfg.Dirs()
	if err := infra.PrepareDirs(dirs); err != nil {
		logger.Error("storage directories unavailable", zap.Error(err))
		return err
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		logger.Error("failed to connect to session bus", zap.Error(err))
		return err
	}
	defer conn.Close()

	mt := metrics.NewMetrics()

	var index *infra.DesktopIndex
	if cfg.DuplicateScan.External() {
		index = infra.NewDesktopIndex(
			infra.DataDirs(),
			[]string{dirs.TransientRoot, dirs.PersistentRoot},
			infra.DefaultIndexTTL,
			logger,
		)
	}

	opts := []usecase.Option{
		usecase.WithNotifier(daemon.NewSignalEmitter(conn, logger)),
		usecase.WithMetrics(mt),
		usecase.WithCatalogDuplicateCheck(cfg.DuplicateScan.Catalog()),
	}
	if cfg.Refresh {
		opts = append(opts, usecase.WithRefresher(infra.NewRefreshManager(logger)))
	}

	manager, err := newManager(cfg, index, logger, opts...)
	if err != nil {
		logger.Error("failed to start lifetime manager", zap.Error(err))
		return err
	}

	svc := daemon.NewService(manager, daemon.NewBusCallers(conn), logger)
	if err := daemon.Serve(conn, svc); err != nil {
		logger.Error("failed to export service", zap.Error(err))
		return err
	}

	logger.Info("entryd started",
		zap.String("bus_name", daemon.BusName),
		zap.String("transient_root", dirs.TransientRoot),
		zap.String("persistent_root", dirs.PersistentRoot),
		zap.String("snapshot", dirs.SnapshotPath),
		zap.String("duplicate_scan", string(cfg.DuplicateScan)))

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	if index != nil {
		go func() {
			if err := index.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("desktop entry watch stopped, relying on cache expiry", zap.Error(err))
			}
		}()
	}

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, mt, logger)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	reconciler := daemon.NewReconciler(
		daemon.ReconcilerConfig{Interval: cfg.ReconcileInterval},
		manager,
		infra.NewProcessManager(),
		mt,
		logger,
	)
	if err := reconciler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newManager(cfg *config.Config, index *infra.DesktopIndex, logger *zap.Logger, opts ...usecase.Option) (*usecase.Manager, error) {
	dirs := cfg.Dirs()
	fs := infra.NewFileSystemManager()

	var installed domain.AppIndex
	if index != nil {
		installed = index
	}

	return usecase.NewManager(
		placement.NewLayout(dirs.TransientRoot, dirs.PersistentRoot, fs),
		fs,
		infra.NewYAMLCatalogStore(dirs.SnapshotPath),
		validate.NewEntryValidator(installed, logger),
		validate.NewIconDecoder(logger),
		logger,
		opts...,
	)
}

func serveMetrics(addr string, mt *metrics.Metrics, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", mt.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	dirs := cfg.Dirs()

	fmt.Println("\n=== entryd Status ===")
	fmt.Printf("Service: %s\n", busStatus())
	fmt.Printf("Transient root:  %s\n", dirs.TransientRoot)
	fmt.Printf("Persistent root: %s\n", dirs.PersistentRoot)
	fmt.Printf("Snapshot:        %s\n", dirs.SnapshotPath)
	fmt.Printf("Duplicate scan:  %s\n", cfg.DuplicateScan)

	catalog, err := infra.NewYAMLCatalogStore(dirs.SnapshotPath).Load()
	if err != nil {
		fmt.Printf("\nSnapshot unreadable: %v\n", err)
		return nil
	}

	entries, icons := catalog.Counts()
	fmt.Printf("\nRegistered: %d entries, %d icons\n", entries, icons)
	for _, lt := range catalog.Lifetimes(0) {
		fmt.Printf("  %-32s entries=%d icons=%d\n", lt, len(catalog.Entries[lt]), len(catalog.Icons[lt]))
	}

	fmt.Println("=====================")
	return nil
}

// busStatus reports whether the service name currently has an owner.
func busStatus() string {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return "unknown (no session bus)"
	}
	defer conn.Close()

	var running bool
	if err := conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, daemon.BusName).Store(&running); err != nil {
		return "unknown"
	}
	if running {
		return "RUNNING"
	}
	return "NOT RUNNING"
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	catalog, err := infra.NewYAMLCatalogStore(cfg.SnapshotPath).Load()
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	fmt.Println("\n=== Registered Resources ===")

	lifetimes := catalog.Lifetimes(0)
	if len(lifetimes) == 0 {
		fmt.Println("\nNothing registered.")
	}
	for _, lt := range lifetimes {
		fmt.Printf("\n[%s]\n", lt)
		if handles := catalog.Entries[lt]; len(handles) > 0 {
			fmt.Println("  Entries:")
			for _, h := range handles {
				fmt.Printf("    - %s  %s\n", h.AppID, h.Path)
			}
		}
		if handles := catalog.Icons[lt]; len(handles) > 0 {
			fmt.Println("  Icons:")
			for _, h := range handles {
				fmt.Printf("    - %s  %s\n", h.IconName, h.Path)
			}
		}
	}

	fmt.Println("\n============================")
	return nil
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := createLogger(cfg)
	defer func() { _ = logger.Sync() }()

	if busStatus() == "RUNNING" {
		return fmt.Errorf("%s is running; stop it before cleaning", daemon.BusName)
	}

	// Constructing the manager already drops session lifetimes.
	manager, err := newManager(cfg, nil, logger)
	if err != nil {
		return err
	}
	if err := manager.Clean(); err != nil {
		return fmt.Errorf("clean failed: %w", err)
	}

	entries, icons := manager.Catalog().Counts()
	fmt.Printf("Cleaned. Remaining persistent resources: %d entries, %d icons\n", entries, icons)
	return nil
}

func createLogger(cfg *config.Config) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if level, err := zapcore.ParseLevel(cfg.Log.Level); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	if cfg.Log.File != "" {
		zcfg.OutputPaths = []string{cfg.Log.File}
		zcfg.ErrorOutputPaths = []string{cfg.Log.File}
	}

	logger, err := zcfg.Build()
	if err == nil {
		return logger
	}
	// Fallback to stderr if file logging fails
	if logger, err = zap.NewProduction(); err == nil {
		return logger
	}
	return zap.NewNop()
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("entryd %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
