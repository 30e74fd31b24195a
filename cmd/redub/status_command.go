package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"redub/internal/phases"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <video>",
		Short: "Show per-phase manifest state for an episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, m, release, err := ctx.openWorkspace(args[0])
			if err != nil {
				return err
			}
			defer release()

			rows := make([][]string, 0, len(phases.Names()))
			for _, name := range phases.Names() {
				rec, ok := m.Phase(name)
				if !ok {
					rows = append(rows, []string{name, "-", "", "", ""})
					continue
				}
				rows = append(rows, []string{
					name,
					rec.Status,
					fmt.Sprintf("v%d", rec.Version),
					rec.FinishedAt,
					rec.Error,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "workspace: %s\n", ws.Dir)
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Phase", "Status", "Version", "Finished", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
