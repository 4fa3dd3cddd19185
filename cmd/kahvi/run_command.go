package main

import (
	"github.com/spf13/cobra"

	"kahvi/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the monitor daemon in the foreground",
		Long: "Run the sampling loop, the query API, and the optional MQTT publisher.\n" +
			"SIGHUP re-reads the configuration file and reconciles its calibration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				ConfigPath:  ctx.configPath,
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "dev", false, "Development logging with source locations")
	return cmd
}
