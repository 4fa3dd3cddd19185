package config_test

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kahvi/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kahvi.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadCustomPathNormalizesCalibration(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("KAHVI_DRIVER", "")

	path := writeConfig(t, `
[general]
averaging_time = 2
driver = "Dummy"

[calibration]
coffee_empty_decanter_value = 400
coffee_full_value = "900.5"
max_ncups = 10
sensor_model = " fsr-402 "
`)

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected existing config at %q, got %q (exists=%v)", path, resolved, exists)
	}
	if cfg.General.Driver != "dummy" {
		t.Fatalf("driver = %q, want dummy", cfg.General.Driver)
	}
	if got := cfg.AveragingWindow(); got != 2*time.Second {
		t.Fatalf("averaging window = %v", got)
	}
	if got := cfg.PollEvery(); got != 10*time.Millisecond {
		t.Fatalf("poll interval = %v", got)
	}

	want := map[string]any{
		"coffee_empty_decanter_value": 400.0,
		"coffee_full_value":           900.5,
		"max_ncups":                   10.0,
		"sensor_model":                "fsr-402",
	}
	if len(cfg.Calibration) != len(want) {
		t.Fatalf("calibration = %v", cfg.Calibration)
	}
	for key, value := range want {
		if cfg.Calibration[key] != value {
			t.Fatalf("calibration[%s] = %#v, want %#v", key, cfg.Calibration[key], value)
		}
	}

	wantState := filepath.Join(tempHome, ".local", "share", "kahvi")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("state dir = %q, want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Database.Path != filepath.Join(wantState, "kahvi.db") {
		t.Fatalf("database path = %q", cfg.Database.Path)
	}
	if cfg.Database.RangeQueryMaxItems != config.Default().Database.RangeQueryMaxItems {
		t.Fatalf("range cap = %d", cfg.Database.RangeQueryMaxItems)
	}
	if cfg.Classifier.CoffeeComingRatio != 1.2 || cfg.Classifier.AnomalyRatio != 0.5 {
		t.Fatalf("unexpected classifier defaults: %+v", cfg.Classifier)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}

func TestLoadFailsOnMissingCalibrationKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, `
[calibration]
coffee_empty_decanter_value = 400
max_ncups = 10
`)
	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for missing coffee_full_value")
	}
	if !strings.Contains(err.Error(), "coffee_full_value") {
		t.Fatalf("error should name the missing key, got %v", err)
	}
}

func TestLoadWithoutFileRequiresCalibration(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, _, exists, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil {
		t.Fatal("expected error when calibration is absent")
	}
	if exists {
		t.Fatal("absent file should not be reported as existing")
	}
}

func TestLoadRejectsNonNumericRequiredKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, `
[calibration]
coffee_empty_decanter_value = "empty"
coffee_full_value = 900
max_ncups = 10
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected parse error for non-numeric calibration value")
	}
}

func TestLoadRejectsNaNInOptionalCalibrationKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, `
[calibration]
coffee_empty_decanter_value = 400
coffee_full_value = 900
max_ncups = 10
note = nan
`)
	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for a non-finite calibration value")
	}
	if !strings.Contains(err.Error(), "calibration.note") {
		t.Fatalf("error should name the key, got %v", err)
	}
}

func TestDriverEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KAHVI_DRIVER", "hx711")
	path := writeConfig(t, `
[general]
driver = "dummy"

[calibration]
coffee_empty_decanter_value = 400
coffee_full_value = 900
max_ncups = 10
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.General.Driver != "hx711" {
		t.Fatalf("driver = %q, want hx711", cfg.General.Driver)
	}
}

func TestSampleConfigLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KAHVI_DRIVER", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Calibration[config.KeyMaxNCups] != 10.0 {
		t.Fatalf("max_ncups = %#v", cfg.Calibration[config.KeyMaxNCups])
	}
	if cfg.MQTT.Enabled {
		t.Fatal("sample should leave MQTT disabled")
	}
}

func TestValidateRejectsInvalidSettings(t *testing.T) {
	base := func() config.Config {
		cfg := config.Default()
		cfg.Database.Path = "/tmp/kahvi.db"
		cfg.Calibration = map[string]any{
			config.KeyEmptyDecanterValue: 400.0,
			config.KeyFullValue:          900.0,
			config.KeyMaxNCups:           10.0,
		}
		return cfg
	}

	if cfg := base(); cfg.Validate() != nil {
		t.Fatalf("base config should validate: %v", cfg.Validate())
	}

	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero averaging time", func(c *config.Config) { c.General.AveragingTime = 0 }},
		{"zero poll interval", func(c *config.Config) { c.General.PollInterval = 0 }},
		{"unknown driver", func(c *config.Config) { c.General.Driver = "spi" }},
		{"bad gain", func(c *config.Config) { c.Hardware.Gain = 100 }},
		{"same pins", func(c *config.Config) { c.Hardware.ClockPin = c.Hardware.DataPin }},
		{"zero range cap", func(c *config.Config) { c.Database.RangeQueryMaxItems = 0 }},
		{"nested calibration", func(c *config.Config) { c.Calibration["extra"] = map[string]any{"a": 1} }},
		{"infinite optional calibration key", func(c *config.Config) { c.Calibration["tare"] = math.Inf(1) }},
		{"mqtt without port", func(c *config.Config) {
			c.MQTT.Enabled = true
			c.MQTT.Broker = "tcp://broker"
		}},
		{"mqtt bad scheme", func(c *config.Config) {
			c.MQTT.Enabled = true
			c.MQTT.Broker = "ws://broker:80"
		}},
		{"ntfy topic not a url", func(c *config.Config) { c.Notifications.NtfyTopic = "office-coffee" }},
		{"ntfy zero timeout", func(c *config.Config) {
			c.Notifications.NtfyTopic = "https://ntfy.sh/office-coffee"
			c.Notifications.RequestTimeout = 0
		}},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"negative ratio", func(c *config.Config) { c.Classifier.CoffeeComingRatio = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
