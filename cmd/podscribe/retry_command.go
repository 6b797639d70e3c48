package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podscribe/internal/config"
	"podscribe/internal/ledger"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [url...]",
		Short: "Move failed episodes back to pending",
		Long: `Move failed episodes back to pending so the next run picks them up.
With no arguments every failed episode is retried; otherwise only the
episodes with the given source URLs.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *ledger.Store) error {
				updated, err := store.RetryFailed(cmd.Context(), args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d failed episodes\n", updated)
				return nil
			})
		},
	}
}
