package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"kahvi/internal/calibration"
	"kahvi/internal/store"
)

func newCalibrationCommand(ctx *commandContext) *cobra.Command {
	calCmd := &cobra.Command{
		Use:   "calibration",
		Short: "Inspect and synchronise calibration",
	}
	calCmd.AddCommand(newCalibrationShowCommand(ctx))
	calCmd.AddCommand(newCalibrationHistoryCommand(ctx))
	calCmd.AddCommand(newCalibrationSyncCommand(ctx))
	return calCmd
}

type calibrationView struct {
	Stored     *store.CalibrationRecord `json:"stored,omitempty"`
	Configured map[string]any           `json:"configured"`
	InSync     bool                     `json:"inSync"`
}

func newCalibrationShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Compare configured and stored calibration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			record, ok, err := st.LatestCalibrationRecord(cmd.Context())
			if err != nil {
				return fmt.Errorf("load calibration: %w", err)
			}
			configured := calibration.Normalize(cfg.CalibrationCopy())
			view := calibrationView{Configured: configured}
			if ok {
				view.Stored = &record
				view.InSync = configured.Equal(calibration.Normalize(record.Parameters))
			}

			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, view)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderParameters(configured, stored(view.Stored)))
			switch {
			case !ok:
				fmt.Fprintln(out, "No calibration stored yet; run `kahvi calibration sync` or start the daemon")
			case view.InSync:
				fmt.Fprintf(out, "In sync since %s\n", formatTimestamp(record.Timestamp))
			default:
				fmt.Fprintln(out, "Configuration differs from the stored calibration")
			}
			return nil
		},
	}
}

func newCalibrationHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List every stored calibration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			history, err := st.CalibrationHistory(cmd.Context())
			if err != nil {
				return fmt.Errorf("load calibration history: %w", err)
			}
			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, history)
			}
			out := cmd.OutOrStdout()
			if len(history) == 0 {
				fmt.Fprintln(out, "No calibration history")
				return nil
			}
			rows := make([][]string, 0, len(history))
			for i, rec := range history {
				params := calibration.Normalize(rec.Parameters)
				rows = append(rows, []string{
					formatCount(i + 1),
					formatTimestamp(rec.Timestamp),
					paramCell(params, calibration.KeyEmptyDecanterValue),
					paramCell(params, calibration.KeyFullValue),
					paramCell(params, calibration.KeyMaxNCups),
				})
			}
			fmt.Fprintln(out, renderTable([]column{
				{header: "#", numeric: true},
				{header: "Recorded"},
				{header: "Empty", numeric: true},
				{header: "Full", numeric: true},
				{header: "Max Cups", numeric: true},
			}, rows))
			return nil
		},
	}
}

func newCalibrationSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Record the configured calibration if it changed",
		Long: "Reconcile the configured calibration with the store. A new version is\n" +
			"written only when the parameters differ. A running daemon picks up the\n" +
			"change on SIGHUP.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			mgr := calibration.NewManager(st, ctx.cliLogger())
			changed, err := mgr.Reconcile(cmd.Context(), cfg.CalibrationCopy())
			if err != nil {
				return err
			}
			return ctx.emit(cmd, map[string]bool{"changed": changed}, func() string {
				if changed {
					return "Calibration recorded"
				}
				return "Calibration unchanged"
			})
		},
	}
}

func stored(rec *store.CalibrationRecord) calibration.Parameters {
	if rec == nil {
		return nil
	}
	return calibration.Normalize(rec.Parameters)
}

func renderParameters(configured, stored calibration.Parameters) string {
	keys := map[string]struct{}{}
	for k := range configured {
		keys[k] = struct{}{}
	}
	for k := range stored {
		keys[k] = struct{}{}
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, k := range names {
		rows = append(rows, []string{k, paramCell(configured, k), paramCell(stored, k)})
	}
	return renderTable([]column{
		{header: "Parameter"},
		{header: "Configured", numeric: true},
		{header: "Stored", numeric: true},
	}, rows)
}

func paramCell(params calibration.Parameters, key string) string {
	v, ok := params[key]
	if !ok {
		return "-"
	}
	if f, ok := v.(float64); ok {
		return formatFloat(f, 0)
	}
	return fmt.Sprint(v)
}
