package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kahvi/internal/calibration"
	"kahvi/internal/daemon"
	"kahvi/internal/monitor"
	"kahvi/internal/sensor"
)

func newSampleCommand(ctx *commandContext) *cobra.Command {
	var window float64

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Take one reading without storing it",
		Long: "Acquire a single window from the configured driver and print the\n" +
			"resulting reading. Refuses to run while the daemon holds the sensor.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			lock, err := daemon.AcquireLock(cfg)
			if errors.Is(err, daemon.ErrAlreadyRunning) {
				return errors.New("kahvi daemon is running; use `kahvi latest` instead")
			}
			if err != nil {
				return fmt.Errorf("acquire sensor lock: %w", err)
			}
			defer func() { _ = lock.Unlock() }()

			model, err := calibration.ModelFrom(calibration.Normalize(cfg.CalibrationCopy()))
			if err != nil {
				return err
			}

			logger := ctx.cliLogger()
			driver, driverName, err := daemon.OpenDriver(cfg, logger)
			if err != nil {
				return fmt.Errorf("open sensor driver: %w", err)
			}
			defer driver.Cleanup()

			settings := monitor.Settings{
				Window:            cfg.AveragingWindow(),
				Poll:              cfg.PollEvery(),
				CoffeeComingRatio: cfg.Classifier.CoffeeComingRatio,
				AnomalyRatio:      cfg.Classifier.AnomalyRatio,
			}
			if window > 0 {
				settings.Window = time.Duration(window * float64(time.Second))
			}

			samples, err := sensor.NewSampler(driver, logger).Sample(cmd.Context(), settings.Window, settings.Poll)
			if err != nil {
				return err
			}
			r := monitor.Build(sensor.Values(samples), model, settings, time.Now())

			return ctx.emit(cmd, r, func() string {
				return fmt.Sprintf("Driver: %s\n%s", driverName, renderReadings([]map[string]any{r.Project(nil)}, nil))
			})
		},
	}

	cmd.Flags().Float64Var(&window, "window", 0, "Acquisition window in seconds (default general.averaging_time)")
	return cmd
}
