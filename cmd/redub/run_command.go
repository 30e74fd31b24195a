package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"redub/internal/config"
	"redub/internal/history"
	"redub/internal/logging"
	"redub/internal/manifest"
	"redub/internal/phases"
	"redub/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var fromFlag string
	var toFlag string

	cmd := &cobra.Command{
		Use:   "run <video>",
		Short: "Run the dubbing pipeline incrementally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			creds := config.LoadCredentials()
			needASR, needMT, needTTS := phases.NeedsCredentials(toFlag)
			if err := creds.Require(needASR, needMT, needTTS); err != nil {
				return err
			}

			ws, m, release, err := ctx.openWorkspace(args[0])
			if err != nil {
				return err
			}
			defer release()

			if m.Job.ID == "" {
				m.Job = manifest.Job{
					ID:        uuid.NewString(),
					Video:     ws.Video,
					Workspace: ws.Dir,
					CreatedAt: manifest.Now(),
				}
			}

			runner := pipeline.NewRunner(ws, m, cfg, creds, logger, phases.All(cfg))

			started := time.Now()
			summary, runErr := runner.Run(cmd.Context(), pipeline.Options{From: fromFlag, To: toFlag})

			if summary != nil {
				if store, openErr := history.Open(ws.HistoryDBPath()); openErr == nil {
					if _, recErr := store.RecordRun(cmd.Context(), ws.Episode, ws.Video, summary, started, runErr); recErr != nil {
						logger.Warn("failed to record run history", logging.Error(recErr))
					}
					_ = store.Close()
				} else {
					logger.Warn("failed to open run history", logging.Error(openErr))
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&fromFlag, "from", "", "Force rerun starting at this phase")
	cmd.Flags().StringVar(&toFlag, "to", "", "Stop after this phase")
	return cmd
}

func renderSummary(summary *pipeline.Summary) string {
	rows := make([][]string, 0, len(summary.Phases))
	for _, p := range summary.Phases {
		duration := ""
		if p.Duration > 0 {
			duration = p.Duration.Round(time.Millisecond).String()
		}
		rows = append(rows, []string{p.Name, string(p.Status), p.Reason, duration})
	}
	return renderTable(
		[]string{"Phase", "Outcome", "Reason", "Elapsed"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
	)
}
