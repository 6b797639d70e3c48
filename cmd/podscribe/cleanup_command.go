package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podscribe/internal/config"
	"podscribe/internal/ledger"
	"podscribe/internal/tempfiles"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove aged files from the temp directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *ledger.Store) error {
				logger, err := buildLogger(cfg)
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}

				// In-flight episodes keep their audio even past the age cutoff.
				active := tempfiles.NewActiveSet()
				paths, err := store.ActiveAudioPaths(cmd.Context())
				if err != nil {
					return err
				}
				for _, path := range paths {
					active.Register(path)
				}

				janitor := tempfiles.NewJanitor(cfg.Paths.TempDir, active, logger)
				result := janitor.Sweep(cmd.Context(), cfg.TempMaxAge(), dryRun)

				out := cmd.OutOrStdout()
				if dryRun {
					if len(result.Planned) == 0 {
						fmt.Fprintln(out, "Nothing to remove")
						return nil
					}
					for _, path := range result.Planned {
						fmt.Fprintf(out, "would remove %s\n", path)
					}
					fmt.Fprintf(out, "Would remove %d files\n", len(result.Planned))
					return nil
				}

				for _, sweepErr := range result.Errors {
					fmt.Fprintf(out, "failed to remove %s: %v\n", sweepErr.Path, sweepErr.Error)
				}
				fmt.Fprintf(out, "Removed %d files\n", len(result.Removed))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List removable files without deleting them")
	return cmd
}
