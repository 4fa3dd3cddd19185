package testsupport

import (
	"path/filepath"
	"testing"

	"kahvi/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test,
// the dummy driver, and a 400/900/10 calibration.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.General.Driver = "dummy"
	cfgVal.General.AveragingTime = 0.05
	cfgVal.General.PollInterval = 0.005
	cfgVal.Calibration = map[string]any{
		config.KeyEmptyDecanterValue: 400.0,
		config.KeyFullValue:          900.0,
		config.KeyMaxNCups:           10.0,
	}
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Database.Path = filepath.Join(base, "state", "kahvi.db")
	cfgVal.API.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCalibration replaces the calibration mapping.
func WithCalibration(params map[string]any) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Calibration = params
	}
}

// WithRangeLimit sets the range query cap.
func WithRangeLimit(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Database.RangeQueryMaxItems = n
	}
}

// WithMQTTBroker enables MQTT publishing against broker.
func WithMQTTBroker(broker string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.MQTT.Enabled = true
		b.cfg.MQTT.Broker = broker
		b.cfg.MQTT.ConnectTimeout = 5
	}
}

// BaseDir returns the temp directory backing cfg.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
