package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type cleanResult struct {
	Simulated int64 `json:"simulated"`
	Removed   int64 `json:"removed"`
}

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove readings recorded with the dummy driver",
		Long: "Readings taken while the daemon ran on the dummy driver are tagged as\n" +
			"simulated. Without --yes the command only counts them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.CountSimulated(cmd.Context())
			if err != nil {
				return err
			}
			result := cleanResult{Simulated: n}
			if confirm && n > 0 {
				if result.Removed, err = st.PurgeSimulated(cmd.Context()); err != nil {
					return err
				}
			}
			return ctx.emit(cmd, result, func() string {
				switch {
				case n == 0:
					return "No simulated readings found"
				case !confirm:
					return fmt.Sprintf("Found %s simulated readings; rerun with --yes to remove them", formatCount(int(n)))
				default:
					return fmt.Sprintf("Removed %s simulated readings", formatCount(int(result.Removed)))
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Delete the simulated readings")
	return cmd
}
