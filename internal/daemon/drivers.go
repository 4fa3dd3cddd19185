package daemon

import (
	"fmt"
	"log/slog"

	"kahvi/internal/config"
	"kahvi/internal/gpio"
	"kahvi/internal/logging"
	"kahvi/internal/sensor"
)

// Driver names accepted in general.driver.
const (
	DriverHX711 = "hx711"
	DriverDummy = "dummy"
	DriverAuto  = "auto"
)

// OpenDriver selects and initialises the sensor driver named by the config.
// "auto" tries the HX711 and falls back to the dummy driver when GPIO is not
// available. It returns the name of the driver actually in use.
func OpenDriver(cfg *config.Config, logger *slog.Logger) (sensor.Driver, string, error) {
	switch cfg.General.Driver {
	case DriverDummy:
		return sensor.NewDummy(), DriverDummy, nil
	case DriverHX711:
		d, err := openHX711(cfg)
		if err != nil {
			return nil, "", err
		}
		return d, DriverHX711, nil
	case DriverAuto, "":
		d, err := openHX711(cfg)
		if err == nil {
			return d, DriverHX711, nil
		}
		logging.WarnWithContext(logger, "hx711 unavailable, using dummy driver",
			"driver_fallback",
			logging.String(logging.FieldErrorHint, "check gpio device permissions or set general.driver"),
			logging.String(logging.FieldImpact, "readings are simulated"),
			logging.Error(err),
		)
		return sensor.NewDummy(), DriverDummy, nil
	default:
		return nil, "", fmt.Errorf("unknown driver %q", cfg.General.Driver)
	}
}

func openHX711(cfg *config.Config) (*sensor.HX711, error) {
	bank, err := gpio.Open(cfg.Hardware.GPIODevice)
	if err != nil {
		return nil, err
	}
	d, err := sensor.NewHX711(bank, sensor.HX711Config{
		DataPin:      cfg.Hardware.DataPin,
		ClockPin:     cfg.Hardware.ClockPin,
		Gain:         cfg.Hardware.Gain,
		ReadyTimeout: cfg.HardwareReadyTimeout(),
	})
	if err != nil {
		_ = bank.Close()
		return nil, err
	}
	return d, nil
}
