package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var outputFlag string

	ctx := newCommandContext(&configFlag, &outputFlag)

	rootCmd := &cobra.Command{
		Use:           "kahvi",
		Short:         "Coffee machine load cell monitor",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(outputFlag); err != nil {
				return err
			}
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", outputAuto, "Output format: auto, table, or json")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newSampleCommand(ctx))
	rootCmd.AddCommand(newLatestCommand(ctx))
	rootCmd.AddCommand(newRangeCommand(ctx))
	rootCmd.AddCommand(newCalibrationCommand(ctx))
	rootCmd.AddCommand(newCleanCommand(ctx))
	rootCmd.AddCommand(newNotifyCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
