package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Calibration keys the cup estimate depends on.
const (
	KeyEmptyDecanterValue = "coffee_empty_decanter_value"
	KeyFullValue          = "coffee_full_value"
	KeyMaxNCups           = "max_ncups"
)

// RequiredCalibrationKeys lists the calibration entries that must be present.
var RequiredCalibrationKeys = []string{KeyEmptyDecanterValue, KeyFullValue, KeyMaxNCups}

// General contains sampling cadence and driver selection.
type General struct {
	// AveragingTime is the length of one acquisition window in seconds.
	AveragingTime float64 `toml:"averaging_time"`
	// PollInterval is the spacing between driver reads in seconds.
	PollInterval float64 `toml:"poll_interval"`
	// CycleInterval is an optional pause between windows in seconds.
	CycleInterval float64 `toml:"cycle_interval"`
	// Driver selects the ADC implementation: "hx711", "dummy", or "auto".
	Driver string `toml:"driver"`
}

// Classifier contains the thresholds used when classifying machine state.
type Classifier struct {
	CoffeeComingRatio float64 `toml:"coffee_coming_ratio"`
	AnomalyRatio      float64 `toml:"anomaly_ratio"`
}

// Hardware describes how the HX711 load cell amplifier is wired.
type Hardware struct {
	DataPin      int     `toml:"data_pin"`
	ClockPin     int     `toml:"clock_pin"`
	Gain         int     `toml:"gain"`
	ReadyTimeout float64 `toml:"ready_timeout"`
	GPIODevice   string  `toml:"gpio_device"`
}

// Database contains time-series store settings.
type Database struct {
	Path               string `toml:"path"`
	RangeQueryMaxItems int    `toml:"range_query_max_items"`
}

// API contains the HTTP query API settings. An empty bind disables it.
type API struct {
	Bind string `toml:"bind"`
	// Token, when set, is required as a bearer token on every request.
	Token string `toml:"token"`
}

// MQTT contains settings for publishing live readings.
type MQTT struct {
	Enabled        bool    `toml:"enabled"`
	Broker         string  `toml:"broker"`
	Topic          string  `toml:"topic"`
	ClientID       string  `toml:"client_id"`
	Username       string  `toml:"username"`
	Password       string  `toml:"password"`
	QoS            int     `toml:"qos"`
	Retain         bool    `toml:"retain"`
	ConnectTimeout float64 `toml:"connect_timeout"`
}

// Notifications configures ntfy push messages for brew events. An empty
// topic disables them.
type Notifications struct {
	NtfyTopic      string  `toml:"ntfy_topic"`
	RequestTimeout float64 `toml:"request_timeout"`
}

// Paths contains directories used by the daemon.
type Paths struct {
	LogDir   string `toml:"log_dir"`
	StateDir string `toml:"state_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for kahvi.
//
// Configuration sections by subsystem:
//   - General: acquisition window, poll cadence, driver selection
//   - Calibration: raw value to cup count mapping (free-form, versioned)
//   - Classifier: brewing and anomaly thresholds
//   - Hardware: HX711 pin assignment and gain
//   - Database: SQLite location and range query cap
//   - API: HTTP query API bind address
//   - MQTT: live reading publication
//   - Notifications: ntfy pushes on brew events
//   - Paths: log and state directories
//   - Logging: log format and level
type Config struct {
	General       General        `toml:"general"`
	Calibration   map[string]any `toml:"calibration"`
	Classifier    Classifier     `toml:"classifier"`
	Hardware      Hardware       `toml:"hardware"`
	Database      Database       `toml:"database"`
	API           API            `toml:"api"`
	MQTT          MQTT           `toml:"mqtt"`
	Notifications Notifications  `toml:"notifications"`
	Paths         Paths          `toml:"paths"`
	Logging       Logging        `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. It returns the
// config, the resolved path, and whether that file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		data, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("kahvi.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir, c.Paths.StateDir}
	if c.Database.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Database.Path))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// AveragingWindow returns the acquisition window as a duration.
func (c *Config) AveragingWindow() time.Duration {
	return secondsToDuration(c.General.AveragingTime)
}

// PollEvery returns the spacing between driver reads.
func (c *Config) PollEvery() time.Duration {
	return secondsToDuration(c.General.PollInterval)
}

// CyclePause returns the pause inserted between acquisition windows.
func (c *Config) CyclePause() time.Duration {
	return secondsToDuration(c.General.CycleInterval)
}

// HardwareReadyTimeout bounds how long the HX711 driver waits for data.
func (c *Config) HardwareReadyTimeout() time.Duration {
	return secondsToDuration(c.Hardware.ReadyTimeout)
}

// MQTTConnectTimeout bounds the initial broker connection.
func (c *Config) MQTTConnectTimeout() time.Duration {
	return secondsToDuration(c.MQTT.ConnectTimeout)
}

// NotifyTimeout bounds a single ntfy request.
func (c *Config) NotifyTimeout() time.Duration {
	return secondsToDuration(c.Notifications.RequestTimeout)
}

// LockPath returns the path of the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "kahvid.lock")
}

// CalibrationCopy returns a shallow copy of the calibration mapping.
func (c *Config) CalibrationCopy() map[string]any {
	out := make(map[string]any, len(c.Calibration))
	for k, v := range c.Calibration {
		out[k] = v
	}
	return out
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
