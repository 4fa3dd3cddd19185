// Package daemonrun assembles and runs the kahvi daemon process.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/google/uuid"

	"kahvi/internal/config"
	"kahvi/internal/daemon"
	"kahvi/internal/logging"
	"kahvi/internal/notifications"
	"kahvi/internal/publish"
	"kahvi/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// ConfigPath is re-read on SIGHUP. Empty disables reloads.
	ConfigPath  string
	LogLevel    string
	Development bool
}

// openDriver is replaced in tests.
var openDriver = daemon.OpenDriver

// Run starts the daemon and blocks until SIGINT or SIGTERM. SIGHUP reloads the
// configuration file and reconciles its calibration.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.NewFromConfig(cfg, logging.Overrides{
		Level:       opts.LogLevel,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	runID := uuid.NewString()
	logger = logger.With(logging.String(logging.FieldRunID, runID))
	logConfigSnapshot(logger, cfg)

	// The lock comes first: a second instance must not touch the pid file or
	// the sensor pins of the one that owns them.
	lock, err := daemon.AcquireLock(cfg)
	if err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			logging.ErrorWithContext(logger, "daemon already running", "daemon_locked",
				logging.String(logging.FieldErrorHint, "stop the running daemon or remove "+cfg.LockPath()+" if none is running"),
				logging.Error(err),
			)
		}
		return err
	}
	defer func() { _ = lock.Unlock() }()

	pidPath := filepath.Join(cfg.Paths.StateDir, "kahvid.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "open store", "store_open_failed",
			logging.String(logging.FieldErrorHint, "check database.path"),
			logging.Error(err),
		)
		return err
	}

	driver, driverName, err := openDriver(cfg, logger)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("open sensor driver: %w", err)
	}
	logger.Info("sensor driver ready",
		logging.String(logging.FieldEventType, "driver_ready"),
		logging.String("driver", driverName),
		logging.Bool("simulated", driverName == daemon.DriverDummy),
	)

	daemonOpts := []daemon.Option{daemon.WithLock(lock), daemon.WithDriverName(driverName)}
	if cfg.MQTT.Enabled {
		pub, err := publish.Dial(signalCtx, cfg.MQTT, cfg.MQTTConnectTimeout(), logger)
		if err != nil {
			logging.WarnWithContext(logger, "mqtt unavailable", "mqtt_unavailable",
				logging.String(logging.FieldErrorHint, "check mqtt.broker"),
				logging.String(logging.FieldImpact, "readings are stored but not published"),
				logging.Error(err),
			)
		} else {
			defer pub.Close()
			daemonOpts = append(daemonOpts, daemon.WithSink(pub))
		}
	}

	if cfg.Notifications.NtfyTopic != "" {
		watcher := notifications.NewWatcher(notifications.NewNotifier(cfg), logger)
		daemonOpts = append(daemonOpts, daemon.WithSink(watcher))
	}

	d, err := daemon.New(cfg, st, driver, logger, daemonOpts...)
	if err != nil {
		driver.Cleanup()
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.String(logging.FieldErrorHint, "check calibration and database access"),
			logging.Error(err),
		)
		return err
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-signalCtx.Done():
			logger.Info("kahvi daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
			return nil
		case <-hup:
			reload(signalCtx, d, opts.ConfigPath, logger)
		}
	}
}

func reload(ctx context.Context, d *daemon.Daemon, path string, logger *slog.Logger) {
	if path == "" {
		logger.Info("no config file to reload", logging.String(logging.FieldEventType, "reload_skipped"))
		return
	}
	next, _, _, err := config.Load(path)
	if err != nil {
		logging.WarnWithContext(logger, "config reload failed", "reload_failed",
			logging.String(logging.FieldErrorHint, "fix "+path+" and send SIGHUP again"),
			logging.String(logging.FieldImpact, "previous calibration stays in effect"),
			logging.Error(err),
		)
		return
	}
	changed, err := d.ReloadCalibration(ctx, next.CalibrationCopy())
	if err != nil {
		logging.WarnWithContext(logger, "calibration reload failed", "reload_failed",
			logging.String(logging.FieldErrorHint, "check the calibration section"),
			logging.String(logging.FieldImpact, "previous calibration stays in effect"),
			logging.Error(err),
		)
		return
	}
	logger.Info("config reloaded",
		logging.String(logging.FieldEventType, "config_reloaded"),
		logging.Bool("calibration_changed", changed),
	)
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("driver", cfg.General.Driver),
		logging.Float64("averaging_time", cfg.General.AveragingTime),
		logging.Float64("poll_interval", cfg.General.PollInterval),
		logging.Float64("coffee_coming_ratio", cfg.Classifier.CoffeeComingRatio),
		logging.Float64("anomaly_ratio", cfg.Classifier.AnomalyRatio),
		logging.String("database", cfg.Database.Path),
		logging.Int("range_query_max_items", cfg.Database.RangeQueryMaxItems),
		logging.String("api_bind", cfg.API.Bind),
		logging.Bool("mqtt_enabled", cfg.MQTT.Enabled),
		logging.Bool("notifications_enabled", cfg.Notifications.NtfyTopic != ""),
	)
}
