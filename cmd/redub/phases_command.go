package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"redub/internal/config"
	"redub/internal/phases"
)

func newPhasesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "phases",
		Short: "List pipeline phases and their artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			rows := make([][]string, 0, 9)
			for _, p := range phases.All(&cfg) {
				provides := make([]string, 0, len(p.Provides()))
				for key := range p.Provides() {
					provides = append(provides, key)
				}
				sort.Strings(provides)
				rows = append(rows, []string{
					p.Name(),
					fmt.Sprintf("v%d", p.Version()),
					strings.Join(p.Requires(), ", "),
					strings.Join(provides, ", "),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Phase", "Version", "Requires", "Provides"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
