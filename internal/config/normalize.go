package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	dbPath := strings.TrimSpace(c.Database.Path)
	if dbPath == "" && c.Paths.StateDir != "" {
		dbPath = filepath.Join(c.Paths.StateDir, "kahvi.db")
	}
	if c.Database.Path, err = expandPath(dbPath); err != nil {
		return fmt.Errorf("database.path: %w", err)
	}

	if value, ok := os.LookupEnv("KAHVI_DRIVER"); ok && strings.TrimSpace(value) != "" {
		c.General.Driver = value
	}
	c.General.Driver = strings.ToLower(strings.TrimSpace(c.General.Driver))
	if c.General.Driver == "" {
		c.General.Driver = defaultDriver
	}

	c.Hardware.GPIODevice = strings.TrimSpace(c.Hardware.GPIODevice)
	if c.Hardware.GPIODevice == "" {
		c.Hardware.GPIODevice = defaultGPIODevice
	}

	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	c.MQTT.Broker = strings.TrimSpace(c.MQTT.Broker)
	c.MQTT.Topic = strings.TrimSpace(c.MQTT.Topic)
	c.MQTT.ClientID = strings.TrimSpace(c.MQTT.ClientID)
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	return c.normalizeCalibration()
}

// normalizeCalibration converts every numeric calibration value to float64 so
// structural comparison does not depend on how a number was written. The
// required keys are also accepted as numeric strings.
func (c *Config) normalizeCalibration() error {
	if c.Calibration == nil {
		return nil
	}
	normalized := make(map[string]any, len(c.Calibration))
	for key, value := range c.Calibration {
		key = strings.TrimSpace(key)
		switch v := value.(type) {
		case int64:
			normalized[key] = float64(v)
		case int:
			normalized[key] = float64(v)
		case float64:
			normalized[key] = v
		case string:
			trimmed := strings.TrimSpace(v)
			if isRequiredCalibrationKey(key) {
				parsed, err := strconv.ParseFloat(trimmed, 64)
				if err != nil {
					return fmt.Errorf("calibration.%s: %q is not a number", key, v)
				}
				normalized[key] = parsed
				continue
			}
			normalized[key] = trimmed
		default:
			normalized[key] = value
		}
	}
	c.Calibration = normalized
	return nil
}

func isRequiredCalibrationKey(key string) bool {
	for _, required := range RequiredCalibrationKeys {
		if key == required {
			return true
		}
	}
	return false
}
