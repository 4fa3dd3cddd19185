// Package monitor runs the sampling pipeline: acquire a window, filter it,
// apply the current calibration, classify, and hand the reading to storage and
// sinks.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kahvi/internal/calibration"
	"kahvi/internal/logging"
	"kahvi/internal/metrics"
	"kahvi/internal/reading"
	"kahvi/internal/sensor"
)

// Store receives every reading the monitor produces.
type Store interface {
	Insert(ctx context.Context, r reading.Reading) error
}

// Sink is an optional best-effort consumer of readings.
type Sink interface {
	Publish(ctx context.Context, r reading.Reading) error
}

// CalibrationSource provides the reconciled calibration.
type CalibrationSource interface {
	Current() (*calibration.Snapshot, bool)
}

// Settings are the cycle parameters.
type Settings struct {
	Window            time.Duration
	Poll              time.Duration
	Pause             time.Duration
	CoffeeComingRatio float64
	AnomalyRatio      float64
}

// Monitor owns the sampler and produces one reading per cycle.
type Monitor struct {
	sampler     *sensor.Sampler
	calibration CalibrationSource
	store       Store
	sinks       []Sink
	metrics     *metrics.Metrics
	settings    Settings
	logger      *slog.Logger
	now         func() time.Time
}

// Option customises a Monitor.
type Option func(*Monitor)

// WithSink adds a best-effort sink.
func WithSink(sink Sink) Option {
	return func(m *Monitor) {
		if sink != nil {
			m.sinks = append(m.sinks, sink)
		}
	}
}

// WithMetrics records pipeline metrics.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Monitor) { m.metrics = mx }
}

// WithClock replaces the clock used to stamp readings.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// New builds a monitor. store may be nil for one-off cycles that are not
// persisted.
func New(sampler *sensor.Sampler, cal CalibrationSource, store Store, settings Settings, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		sampler:     sampler,
		calibration: cal,
		store:       store,
		settings:    settings,
		logger:      logging.NewComponentLogger(logger, "monitor"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ErrNoCalibration is returned when a cycle runs before calibration has been
// reconciled.
var ErrNoCalibration = errors.New("calibration not reconciled")

// Cycle acquires one window and returns the classified reading. It does not
// store or publish it. Zero-sample windows fail with a sensor.DriverError.
func (m *Monitor) Cycle(ctx context.Context) (reading.Reading, error) {
	snap, ok := m.calibration.Current()
	if !ok {
		return reading.Reading{}, ErrNoCalibration
	}

	samples, err := m.sampler.Sample(ctx, m.settings.Window, m.settings.Poll)
	if err != nil {
		return reading.Reading{}, err
	}
	return Build(sensor.Values(samples), snap.Model, m.settings, m.now()), nil
}

// Build reduces raw values to a reading. It is the pure part of a cycle.
func Build(raw []float64, model calibration.Model, settings Settings, at time.Time) reading.Reading {
	summary := sensor.Summarize(raw, settings.AnomalyRatio)
	state := model.Classify(summary.Mean, settings.CoffeeComingRatio)

	r := reading.Reading{
		Timestamp:     float64(at.UnixNano()) / 1e9,
		RawValue:      summary.Mean,
		NMeasurements: summary.N,
		Std:           summary.Std,
		NCups:         state.NCups,
		IsCoffee:      state.IsCoffee,
		CoffeeComing:  state.CoffeeComing,
		TrayEmpty:     state.TrayEmpty,
	}
	if summary.Anomalous {
		r.Datapoints = reading.Datapoints(summary.Filtered)
	}
	return r
}

// Run samples on a dedicated goroutine and persists readings on the calling
// goroutine until ctx is cancelled. Driver failures skip the cycle. Store
// failures are logged and the loop continues.
func (m *Monitor) Run(ctx context.Context) error {
	if m.store == nil {
		return errors.New("monitor: store required for Run")
	}
	readings := make(chan reading.Reading)
	errs := make(chan error, 1)

	go func() {
		defer close(readings)
		for {
			r, err := m.Cycle(ctx)
			switch {
			case err == nil:
				select {
				case readings <- r:
				case <-ctx.Done():
					return
				}
			case ctx.Err() != nil:
				return
			case errors.Is(err, sensor.ErrDriver):
				m.metrics.CycleDone(metrics.ResultSkipped)
				logging.WarnWithContext(m.logger, "sampling window produced no samples",
					"cycle_skipped",
					logging.String(logging.FieldErrorHint, "check load cell wiring and the configured driver"),
					logging.String(logging.FieldImpact, "no reading stored for this window"),
					logging.Error(err),
				)
			case errors.Is(err, ErrNoCalibration):
				errs <- err
				return
			default:
				m.metrics.CycleDone(metrics.ResultFailed)
				logging.ErrorWithContext(m.logger, "sampling cycle failed",
					"cycle_failed",
					logging.String(logging.FieldErrorHint, "inspect the sensor driver error"),
					logging.Error(err),
				)
			}
			if !pause(ctx, m.settings.Pause) {
				return
			}
		}
	}()

	for r := range readings {
		m.handle(ctx, r)
	}
	select {
	case err := <-errs:
		return err
	default:
	}
	return nil
}

// storeTimeout bounds the insert of a finished window, which outlives
// cancellation of the run context.
const storeTimeout = 5 * time.Second

func (m *Monitor) handle(ctx context.Context, r reading.Reading) {
	insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	err := m.store.Insert(insertCtx, r)
	cancel()
	if err != nil {
		m.metrics.CycleDone(metrics.ResultFailed)
		logging.ErrorWithContext(m.logger, "store reading failed",
			"store_failed",
			logging.String(logging.FieldErrorHint, "check database path permissions and free space"),
			logging.Error(err),
		)
		return
	}
	m.metrics.CycleDone(metrics.ResultStored)
	m.metrics.ObserveReading(r)

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "reading_stored"),
		logging.Float64("n_cups", r.NCups),
		logging.Float64("raw_value", r.RawValue),
		logging.Int("n_measurements", r.NMeasurements),
	}
	if r.Datapoints != nil {
		m.logger.Info("anomalous variance in window",
			logging.String(logging.FieldEventType, "anomalous_variance"),
			logging.Float64("std", r.Std),
			logging.Float64("raw_value", r.RawValue),
		)
	}
	m.logger.Debug("reading stored", logging.Args(attrs...)...)

	for _, sink := range m.sinks {
		if err := sink.Publish(ctx, r); err != nil {
			m.metrics.PublishFailed()
			logging.WarnWithContext(m.logger, "publish reading failed",
				"publish_failed",
				logging.String(logging.FieldErrorHint, "check the mqtt broker or ntfy topic"),
				logging.String(logging.FieldImpact, "this sink misses the reading"),
				logging.Error(fmt.Errorf("%T: %w", sink, err)),
			)
		}
	}
}

func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
