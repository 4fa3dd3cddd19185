package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateGeneral(); err != nil {
		return err
	}
	if err := c.validateCalibration(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if err := c.validateHardware(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateMQTT(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateGeneral() error {
	if c.General.AveragingTime <= 0 {
		return errors.New("general.averaging_time must be positive")
	}
	if c.General.PollInterval <= 0 {
		return errors.New("general.poll_interval must be positive")
	}
	if c.General.CycleInterval < 0 {
		return errors.New("general.cycle_interval must not be negative")
	}
	switch c.General.Driver {
	case "hx711", "dummy", "auto":
	default:
		return fmt.Errorf("general.driver: unsupported value %q (expected hx711, dummy, or auto)", c.General.Driver)
	}
	return nil
}

func (c *Config) validateCalibration() error {
	if len(c.Calibration) == 0 {
		path, err := DefaultConfigPath()
		if err != nil {
			path = defaultConfigPath
		}
		return fmt.Errorf("calibration section is required; edit %s (create with 'kahvi config init')", path)
	}
	var missing []string
	for _, key := range RequiredCalibrationKeys {
		value, ok := c.Calibration[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		f, ok := value.(float64)
		if !ok {
			return fmt.Errorf("calibration.%s must be a number", key)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("calibration.%s must be finite", key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("calibration is missing required keys: %s", strings.Join(missing, ", "))
	}
	for key, value := range c.Calibration {
		switch v := value.(type) {
		case float64:
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("calibration.%s must be finite", key)
			}
		case string, bool:
		default:
			return fmt.Errorf("calibration.%s must be a number, string, or boolean", key)
		}
	}
	return nil
}

func (c *Config) validateClassifier() error {
	if c.Classifier.CoffeeComingRatio <= 0 {
		return errors.New("classifier.coffee_coming_ratio must be positive")
	}
	if c.Classifier.AnomalyRatio <= 0 {
		return errors.New("classifier.anomaly_ratio must be positive")
	}
	return nil
}

func (c *Config) validateHardware() error {
	switch c.Hardware.Gain {
	case 128, 64, 32:
	default:
		return fmt.Errorf("hardware.gain must be 128, 64, or 32 (got %d)", c.Hardware.Gain)
	}
	for name, pin := range map[string]int{"data_pin": c.Hardware.DataPin, "clock_pin": c.Hardware.ClockPin} {
		if pin < 0 || pin > 53 {
			return fmt.Errorf("hardware.%s must be a BCM pin number between 0 and 53", name)
		}
	}
	if c.Hardware.DataPin == c.Hardware.ClockPin {
		return errors.New("hardware.data_pin and hardware.clock_pin must differ")
	}
	if c.Hardware.ReadyTimeout <= 0 {
		return errors.New("hardware.ready_timeout must be positive")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path must be set")
	}
	if c.Database.RangeQueryMaxItems <= 0 {
		return errors.New("database.range_query_max_items must be positive")
	}
	return nil
}

func (c *Config) validateMQTT() error {
	if !c.MQTT.Enabled {
		return nil
	}
	if c.MQTT.Broker == "" {
		return errors.New("mqtt.broker must be set when mqtt.enabled is true")
	}
	u, err := url.Parse(c.MQTT.Broker)
	if err != nil {
		return fmt.Errorf("mqtt.broker: %w", err)
	}
	switch u.Scheme {
	case "tcp", "mqtt":
	default:
		return fmt.Errorf("mqtt.broker: unsupported scheme %q (expected tcp or mqtt)", u.Scheme)
	}
	if u.Port() == "" {
		return errors.New("mqtt.broker must include a port")
	}
	if c.MQTT.Topic == "" {
		return errors.New("mqtt.topic must be set when mqtt.enabled is true")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return errors.New("mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.ConnectTimeout <= 0 {
		return errors.New("mqtt.connect_timeout must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	u, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL (got %q)", c.Notifications.NtfyTopic)
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
