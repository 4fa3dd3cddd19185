// Package metrics exposes pipeline state as Prometheus collectors.
package metrics

import (
	"net/http"
	"os"

	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kahvi/internal/reading"
)

const (
	MetricNamespace = "kahvi"
	MetricComponent = "monitor"
)

// Cycle outcomes recorded by CycleDone.
const (
	ResultStored  = "stored"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

// Metrics owns a private registry so tests and multiple daemons in one
// process do not collide on the global one.
type Metrics struct {
	registry *stdprometheus.Registry

	nCups        stdprometheus.Gauge
	rawValue     stdprometheus.Gauge
	std          stdprometheus.Gauge
	isCoffee     stdprometheus.Gauge
	coffeeComing stdprometheus.Gauge
	trayEmpty    stdprometheus.Gauge
	lastReading  stdprometheus.Gauge
	samples      stdprometheus.Histogram
	cycles       *stdprometheus.CounterVec
	anomalies    stdprometheus.Counter
	publishFails stdprometheus.Counter
	calibrations stdprometheus.Counter
	driver       *stdprometheus.GaugeVec
}

// Labels returns the constant labels attached to every collector.
func Labels() stdprometheus.Labels {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "undefined"
	}
	return stdprometheus.Labels{"component": MetricComponent, "hostname": hostname}
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	labels := Labels()
	gauge := func(name, help string) stdprometheus.Gauge {
		return stdprometheus.NewGauge(stdprometheus.GaugeOpts{
			Namespace:   MetricNamespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}
	counter := func(name, help string) stdprometheus.Counter {
		return stdprometheus.NewCounter(stdprometheus.CounterOpts{
			Namespace:   MetricNamespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	m := &Metrics{
		registry:     stdprometheus.NewRegistry(),
		nCups:        gauge("n_cups", "Cups of coffee in the decanter, clamped to capacity."),
		rawValue:     gauge("raw_value", "Filtered mean raw sensor value of the last window."),
		std:          gauge("raw_std", "Standard deviation of the filtered window."),
		isCoffee:     gauge("is_coffee", "1 when there is coffee in the decanter."),
		coffeeComing: gauge("coffee_coming", "1 while coffee is being brewed."),
		trayEmpty:    gauge("tray_empty", "1 when the decanter is missing."),
		lastReading:  gauge("last_reading_timestamp_seconds", "Unix time of the last stored reading."),
		samples: stdprometheus.NewHistogram(stdprometheus.HistogramOpts{
			Namespace:   MetricNamespace,
			Name:        "window_samples",
			Help:        "Number of raw samples collected per window.",
			ConstLabels: labels,
			Buckets:     stdprometheus.ExponentialBuckets(1, 2, 12),
		}),
		cycles: stdprometheus.NewCounterVec(stdprometheus.CounterOpts{
			Namespace:   MetricNamespace,
			Name:        "cycles_total",
			Help:        "Sampling cycles by outcome.",
			ConstLabels: labels,
		}, []string{"result"}),
		anomalies:    counter("anomalous_readings_total", "Readings stored with datapoints attached."),
		publishFails: counter("publish_failures_total", "Readings that could not be published."),
		calibrations: counter("calibration_changes_total", "Calibration versions written by this process."),
		driver: stdprometheus.NewGaugeVec(stdprometheus.GaugeOpts{
			Namespace:   MetricNamespace,
			Name:        "sensor_driver_info",
			Help:        "1 for the sensor driver in use; readings from the dummy driver are simulated.",
			ConstLabels: labels,
		}, []string{"driver"}),
	}
	m.registry.MustRegister(
		m.nCups, m.rawValue, m.std, m.isCoffee, m.coffeeComing, m.trayEmpty,
		m.lastReading, m.samples, m.cycles, m.anomalies, m.publishFails, m.calibrations,
		m.driver,
	)
	for _, result := range []string{ResultStored, ResultSkipped, ResultFailed} {
		m.cycles.WithLabelValues(result)
	}
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *stdprometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveReading records a stored reading.
func (m *Metrics) ObserveReading(r reading.Reading) {
	if m == nil {
		return
	}
	m.nCups.Set(r.NCups)
	m.rawValue.Set(r.RawValue)
	m.std.Set(r.Std)
	m.isCoffee.Set(boolValue(r.IsCoffee))
	m.coffeeComing.Set(boolValue(r.CoffeeComing))
	m.trayEmpty.Set(boolValue(r.TrayEmpty))
	m.lastReading.Set(r.Timestamp)
	m.samples.Observe(float64(r.NMeasurements))
	if r.Datapoints != nil {
		m.anomalies.Inc()
	}
}

// CycleDone counts a finished cycle.
func (m *Metrics) CycleDone(result string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
}

// PublishFailed counts a failed publish.
func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishFails.Inc()
}

// CalibrationChanged counts a new calibration version.
func (m *Metrics) CalibrationChanged() {
	if m == nil {
		return
	}
	m.calibrations.Inc()
}

// SetDriver records the sensor driver in use.
func (m *Metrics) SetDriver(name string) {
	if m == nil {
		return
	}
	m.driver.Reset()
	m.driver.WithLabelValues(name).Set(1)
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
