package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podscribe/internal/config"
	"podscribe/internal/ledger"
	"podscribe/internal/pipeline"
	"podscribe/internal/tempfiles"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "process <podcast> <title> <source>",
		Short: "Process one episode from a URL or local audio file",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *ledger.Store) error {
				logger, err := buildLogger(cfg)
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}

				active := tempfiles.NewActiveSet()
				pipe := buildPipeline(cfg, store, active, logger)

				outcome, err := pipe.Process(cmd.Context(), pipeline.Request{
					PodcastName:  args[0],
					EpisodeTitle: args[1],
					Source:       args[2],
					Force:        force,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if outcome.AlreadyProcessed {
					fmt.Fprintf(out, "Episode already processed: %s\n", outcome.OutputPath)
					fmt.Fprintln(out, "Use --force to reprocess it")
					return nil
				}
				fmt.Fprintf(out, "Note written to %s\n", outcome.OutputPath)
				fmt.Fprintf(out, "Transcribed with %s (degraded: %s)\n", outcome.BackendUsed, yesNo(outcome.Degraded))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Reprocess the episode even if it already completed")
	return cmd
}
