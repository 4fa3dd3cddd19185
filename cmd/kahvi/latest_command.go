package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errNoReadings = errors.New("no readings stored yet")

func newLatestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Show the most recent stored reading",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			r, err := st.QueryLatest(cmd.Context())
			if err != nil {
				return fmt.Errorf("query latest: %w", err)
			}
			if r == nil {
				return errNoReadings
			}
			return ctx.emit(cmd, r, func() string {
				return renderReadings([]map[string]any{r.Project(nil)}, nil)
			})
		},
	}
}
