package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"redub/internal/config"
	"redub/internal/logging"
	"redub/internal/phases"
	"redub/internal/pipeline"
)

func newBlessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "bless <video> <phase>",
		Short: "Re-baseline a phase's output fingerprints after a manual edit",
		Long: "Bless records the current on-disk state of a phase's outputs as\n" +
			"authoritative, so hand-edited files survive subsequent runs while\n" +
			"downstream phases still rerun against the edited content.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			ws, m, release, err := ctx.openWorkspace(args[0])
			if err != nil {
				return err
			}
			defer release()

			runner := pipeline.NewRunner(ws, m, cfg, config.Credentials{}, logger, phases.All(cfg))
			if err := runner.Bless(args[1]); err != nil {
				return err
			}
			logger.Info("phase blessed", logging.String(logging.FieldPhase, args[1]))
			fmt.Fprintf(cmd.OutOrStdout(), "blessed %s: output fingerprints re-baselined\n", args[1])
			return nil
		},
	}
}
