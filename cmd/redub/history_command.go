package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"redub/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "history <video>",
		Short: "Show recent pipeline runs for the video's show",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, _, release, err := ctx.openWorkspace(args[0])
			if err != nil {
				return err
			}
			defer release()

			store, err := history.Open(ws.HistoryDBPath())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.RecentRuns(cmd.Context(), limitFlag)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no recorded runs")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.Episode,
					r.Status,
					strconv.Itoa(r.Ran),
					strconv.Itoa(r.Skipped),
					strconv.Itoa(r.Failed),
					r.FinishedAt,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Episode", "Status", "Ran", "Skipped", "Failed", "Finished"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limitFlag, "limit", 20, "Maximum runs to show")
	return cmd
}
