package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"kahvi/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand(ctx))

	return configCmd
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Long:        "Write the sample configuration to --path, the global --config path, or the default location.",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(targetPath, *ctx.configFlag)
			if err != nil {
				return err
			}

			if !overwrite {
				_, err := os.Stat(target)
				switch {
				case err == nil:
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				case !errors.Is(err, fs.ErrNotExist):
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Measure the empty and full decanter values and set [calibration] before running kahvi.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func initTarget(flagPath, globalPath string) (string, error) {
	for _, candidate := range []string{flagPath, globalPath} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			expanded, err := config.ExpandPath(candidate)
			if err != nil {
				return "", fmt.Errorf("resolve config path: %w", err)
			}
			return expanded, nil
		}
	}
	path, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("determine default config path: %w", err)
	}
	return path, nil
}

type configSummary struct {
	Path          string  `json:"path"`
	Driver        string  `json:"driver"`
	AveragingTime float64 `json:"averagingTime"`
	PollInterval  float64 `json:"pollInterval"`
	Database      string  `json:"database"`
	RangeCap      int     `json:"rangeQueryMaxItems"`
	API           string  `json:"api"`
	MQTT          string  `json:"mqtt"`
	Notifications string  `json:"notifications"`
}

func summarizeConfig(cfg *config.Config, path string) configSummary {
	s := configSummary{
		Path:          path,
		Driver:        cfg.General.Driver,
		AveragingTime: cfg.General.AveragingTime,
		PollInterval:  cfg.General.PollInterval,
		Database:      cfg.Database.Path,
		RangeCap:      cfg.Database.RangeQueryMaxItems,
		API:           "disabled",
		MQTT:          "disabled",
		Notifications: "disabled",
	}
	if cfg.API.Bind != "" {
		s.API = cfg.API.Bind
		if cfg.API.Token != "" {
			s.API += " (token)"
		}
	}
	if cfg.MQTT.Enabled {
		s.MQTT = cfg.MQTT.Broker + " " + cfg.MQTT.Topic
	}
	if cfg.Notifications.NtfyTopic != "" {
		s.Notifications = cfg.Notifications.NtfyTopic
	}
	return s
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			summary := summarizeConfig(cfg, ctx.configPath)
			return ctx.emit(cmd, summary, func() string {
				rows := [][]string{
					{"Config", summary.Path},
					{"Driver", summary.Driver},
					{"Window", formatFloat(summary.AveragingTime, 2) + "s every " + formatFloat(summary.PollInterval, 3) + "s"},
					{"Database", summary.Database},
					{"Range Cap", formatCount(summary.RangeCap)},
					{"API", summary.API},
					{"MQTT", summary.MQTT},
					{"Notifications", summary.Notifications},
				}
				return renderTable([]column{{header: "Setting"}, {header: "Value"}}, rows) + "\nConfiguration valid"
			})
		},
	}
}
