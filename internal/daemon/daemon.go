package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"kahvi/internal/calibration"
	"kahvi/internal/config"
	"kahvi/internal/logging"
	"kahvi/internal/metrics"
	"kahvi/internal/monitor"
	"kahvi/internal/reading"
	"kahvi/internal/sensor"
	"kahvi/internal/store"
)

// Daemon owns the sensor, the sampling loop, and the HTTP API.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	driver  sensor.Driver
	manager *calibration.Manager
	monitor *monitor.Monitor
	metrics *metrics.Metrics
	api     *apiServer

	driverName string
	lockPath   string
	lock       *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Driver       string
	Calibration  string
	DatabasePath string
	LockFilePath string
}

// Option customises the daemon.
type Option func(*options)

type options struct {
	sinks      []monitor.Sink
	lock       *flock.Flock
	driverName string
}

// ErrAlreadyRunning reports that another process holds the daemon lock.
var ErrAlreadyRunning = errors.New("another kahvi daemon instance is already running")

// AcquireLock takes the single-instance lock for cfg. Callers hold it before
// touching the sensor or the pid file and hand it to New with WithLock.
func AcquireLock(cfg *config.Config) (*flock.Flock, error) {
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return lock, nil
}

// WithLock makes the daemon use an already acquired lock. The daemon releases
// it on Stop.
func WithLock(lock *flock.Flock) Option {
	return func(o *options) {
		o.lock = lock
	}
}

// WithDriverName names the driver in logs, metrics, and status. Readings from
// the dummy driver are stored as simulated.
func WithDriverName(name string) Option {
	return func(o *options) {
		o.driverName = name
	}
}

// simulatedStore tags every reading from the dummy driver.
type simulatedStore struct {
	*store.Store
}

func (s simulatedStore) Insert(ctx context.Context, r reading.Reading) error {
	return s.InsertSimulated(ctx, r)
}

// WithSink publishes every stored reading to sink.
func WithSink(sink monitor.Sink) Option {
	return func(o *options) {
		if sink != nil {
			o.sinks = append(o.sinks, sink)
		}
	}
}

// New constructs a daemon around an opened store and driver. The daemon takes
// ownership of both and releases them in Close.
func New(cfg *config.Config, st *store.Store, driver sensor.Driver, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || st == nil || driver == nil {
		return nil, errors.New("daemon requires config, store, and driver")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	mx := metrics.New()
	if o.driverName != "" {
		mx.SetDriver(o.driverName)
	}
	var writer monitor.Store = st
	if o.driverName == DriverDummy {
		writer = simulatedStore{st}
	}
	manager := calibration.NewManager(st, logger)
	monOpts := []monitor.Option{monitor.WithMetrics(mx)}
	for _, sink := range o.sinks {
		monOpts = append(monOpts, monitor.WithSink(sink))
	}
	mon := monitor.New(
		sensor.NewSampler(driver, logger),
		manager,
		writer,
		monitor.Settings{
			Window:            cfg.AveragingWindow(),
			Poll:              cfg.PollEvery(),
			Pause:             cfg.CyclePause(),
			CoffeeComingRatio: cfg.Classifier.CoffeeComingRatio,
			AnomalyRatio:      cfg.Classifier.AnomalyRatio,
		},
		logger,
		monOpts...,
	)

	lockPath := cfg.LockPath()
	lock := o.lock
	if lock == nil {
		lock = flock.New(lockPath)
	}
	d := &Daemon{
		cfg:        cfg,
		logger:     logger,
		store:      st,
		driver:     driver,
		manager:    manager,
		monitor:    mon,
		metrics:    mx,
		driverName: o.driverName,
		lockPath:   lockPath,
		lock:       lock,
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, reconciles calibration, and launches the
// sampling loop and API server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	// TryLock succeeds at once on a lock handed in through WithLock.
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	if _, err := d.reconcile(ctx, d.cfg.CalibrationCopy()); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := d.monitor.Run(runCtx); err != nil {
			logging.ErrorWithContext(d.logger, "monitor stopped", "monitor_stopped",
				logging.String(logging.FieldErrorHint, "check calibration and sensor configuration"),
				logging.Error(err),
			)
		}
	}()

	d.cancel = cancel
	d.done = done
	d.running.Store(true)
	d.logger.Info("kahvi daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("database", d.store.Path()),
		logging.String("driver", d.driverName),
		logging.Bool("simulated", d.driverName == DriverDummy),
	)
	return nil
}

// Stop stops sampling and the API and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.done != nil {
		<-d.done
		d.done = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
			logging.Error(err),
		)
	}
	d.running.Store(false)
	d.logger.Info("kahvi daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases the driver and store.
func (d *Daemon) Close() error {
	d.Stop()
	d.driver.Cleanup()
	return d.store.Close()
}

// ReloadCalibration reconciles a freshly loaded calibration mapping. The new
// parameters apply from the next sampling window.
func (d *Daemon) ReloadCalibration(ctx context.Context, params map[string]any) (bool, error) {
	return d.reconcile(ctx, params)
}

func (d *Daemon) reconcile(ctx context.Context, params map[string]any) (bool, error) {
	changed, err := d.manager.Reconcile(ctx, params)
	if err != nil {
		return false, fmt.Errorf("reconcile calibration: %w", err)
	}
	if changed {
		d.metrics.CalibrationChanged()
	}
	return changed, nil
}

// Status returns runtime information.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Driver:       d.driverName,
		Calibration:  d.manager.State().String(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
}

// APIAddress returns the address the API listens on, or "" when disabled or
// not started.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}
