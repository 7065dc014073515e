package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coder/quartz"
	"github.com/gofrs/flock"
	"github.com/goodtune/onlinelimiter/internal/activity"
	"github.com/goodtune/onlinelimiter/internal/activity/firefox"
	"github.com/goodtune/onlinelimiter/internal/activity/steam"
	"github.com/goodtune/onlinelimiter/internal/config"
	"github.com/goodtune/onlinelimiter/internal/enforce"
	"github.com/goodtune/onlinelimiter/internal/logfile"
	"github.com/goodtune/onlinelimiter/internal/notify"
	"github.com/goodtune/onlinelimiter/internal/storage"
	"github.com/goodtune/onlinelimiter/internal/storage/bolt"
	"github.com/goodtune/onlinelimiter/internal/storage/file"
	"github.com/goodtune/onlinelimiter/internal/storage/redis"
	"github.com/goodtune/onlinelimiter/internal/systemd"
	"github.com/goodtune/onlinelimiter/internal/usage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the budget daemon",
	Long:  `Start the daemon that counts down the daily budget and enforces it.`,
	RunE:  runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logFile, err := logfile.Open(cfg.Logging.File, cfg.Logging.HistorySlots)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() {
		_ = logFile.Close()
	}()

	logger := logfile.NewLogger(logFile, logfile.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Stdout: cfg.Logging.Stdout,
	})
	log.Logger = logger

	// Nothing can be observed without credentials, so there is nothing to do
	if err := cfg.RequireSources(); err != nil {
		logger.Error().Err(err).Msg("Activity sources are not configured, exiting")
		return nil
	}

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting Online-Limiter")

	lock := flock.New(lockPath(cfg))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("another instance holds %s", lock.Path())
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Error().Err(err).Msg("Failed to release lock")
		}
	}()

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().Str("type", cfg.Storage.Type).Msg("Storage initialized")

	clock := quartz.NewReal()
	controller, err := usage.NewController(usage.Config{
		Budget:        usage.NewBudget(store.Budget(), cfg.Budget.Allowance(), clock, logger),
		Usage:         store.Usage(),
		Sampler:       newAggregator(cfg, logger),
		Enforcer:      enforce.New(cfg.Enforcement.Targets, logger),
		Notifier:      notify.NewDesktop(cfg.Notifications.Title, cfg.Notifications.Enabled),
		Rotator:       logFile,
		Interval:      cfg.Budget.Interval(),
		WarnTicks:     cfg.Budget.WarnTicks,
		RetentionDays: usage.DefaultRetentionDays,
		TextfilePath:  cfg.Metrics.TextfilePath,
		Watchdog:      systemd.NotifyWatchdog,
		Clock:         clock,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize controller: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if systemd.IsSystemdService() {
		logger.Info().Dur("watchdog", systemd.WatchdogInterval()).Msg("Running under systemd")
	}
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to notify systemd")
	}

	runErr := controller.Run(ctx)

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to notify systemd")
	}
	if runErr != nil {
		return fmt.Errorf("budget loop failed: %w", runErr)
	}

	logger.Info().Msg("Online-Limiter stopped")
	return nil
}

// newAggregator builds the activity sampler from the configured sources.
func newAggregator(cfg *config.Config, logger zerolog.Logger) *activity.Aggregator {
	return activity.NewAggregator(
		steam.New(cfg.Sources.Steam),
		firefox.New(cfg.Sources.Firefox.RecoveryPath),
		cfg.Sources.Watchlist,
		logger,
	)
}

// openStorage opens the configured storage backend
func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "file":
		return file.Open(cfg.Path)
	case "bolt":
		return bolt.Open(cfg.BoltPath)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (must be file, bolt or redis)", cfg.Type)
	}
}

// lockPath returns the advisory lock guarding the budget slot. The redis
// slot lives elsewhere, so its lock sits beside the log instead.
func lockPath(cfg *config.Config) string {
	switch cfg.Storage.Type {
	case "bolt":
		return cfg.Storage.BoltPath + ".lock"
	case "redis":
		return cfg.Logging.File + ".lock"
	default:
		return cfg.Storage.Path + ".lock"
	}
}
