package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kahvi/internal/api"
	"kahvi/internal/store"
)

func newRangeCommand(ctx *commandContext) *cobra.Command {
	var startFlag string
	var endFlag string
	var fieldsFlag string

	cmd := &cobra.Command{
		Use:   "range",
		Short: "List stored readings between two times",
		Long: "List stored readings with start <= timestamp <= end, oldest first.\n" +
			"Times accept unix seconds, RFC3339, or a relative form such as -2h.\n" +
			"End defaults to now and start to one hour before end.",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			end := unixSeconds(now)
			if strings.TrimSpace(endFlag) != "" {
				v, err := parseTime(endFlag, now)
				if err != nil {
					return fmt.Errorf("--end: %w", err)
				}
				end = v
			}
			start := end - time.Hour.Seconds()
			if strings.TrimSpace(startFlag) != "" {
				v, err := parseTime(startFlag, now)
				if err != nil {
					return fmt.Errorf("--start: %w", err)
				}
				start = v
			}
			fields, err := api.ParseFields(fieldsFlag)
			if err != nil {
				return err
			}
			q := store.RangeQuery{Start: start, End: end}
			if err := q.Validate(); err != nil {
				return err
			}

			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			readings, truncated, err := st.QueryRange(cmd.Context(), q, fields)
			if err != nil {
				return fmt.Errorf("query range: %w", err)
			}
			resp := api.NewRangeResponse(q, st.MaxItems(), fields, readings, truncated)

			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			if resp.Count == 0 {
				fmt.Fprintln(out, "No readings in range")
				return nil
			}
			fmt.Fprintln(out, renderReadings(resp.Readings, fields))
			fmt.Fprintf(out, "%s readings\n", formatCount(resp.Count))
			if resp.Truncated {
				fmt.Fprintf(out, "Result capped at %s items; narrow the range to see later readings\n", formatCount(resp.Limit))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&startFlag, "start", "", "Range start (inclusive)")
	cmd.Flags().StringVar(&endFlag, "end", "", "Range end (inclusive)")
	cmd.Flags().StringVar(&fieldsFlag, "fields", "", "Comma-separated reading fields to include")
	return cmd
}
