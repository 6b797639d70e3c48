package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"podscribe/internal/config"
	"podscribe/internal/ledger"
)

func newSubscribeCommand(ctx *commandContext) *cobra.Command {
	subscribeCmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Manage podcast feed subscriptions",
	}

	subscribeCmd.AddCommand(newSubscribeAddCommand(ctx))
	subscribeCmd.AddCommand(newSubscribeListCommand(ctx))
	subscribeCmd.AddCommand(newSubscribeEnableCommand(ctx, true))
	subscribeCmd.AddCommand(newSubscribeEnableCommand(ctx, false))

	return subscribeCmd
}

func newSubscribeAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <rss-url>",
		Short: "Subscribe to a podcast feed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *ledger.Store) error {
				sub, err := store.AddSubscription(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Subscribed to %s (%s)\n", sub.Name, sub.RSSURL)
				return nil
			})
		},
	}
}

func newSubscribeListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List feed subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *ledger.Store) error {
				subs, err := store.ListSubscriptions(cmd.Context(), false)
				if err != nil {
					return err
				}
				if len(subs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No subscriptions")
					return nil
				}

				rows := make([][]string, 0, len(subs))
				for _, sub := range subs {
					lastChecked := "never"
					if sub.LastChecked != nil {
						lastChecked = sub.LastChecked.Local().Format(time.RFC3339)
					}
					rows = append(rows, []string{sub.Name, sub.RSSURL, yesNo(sub.Enabled), lastChecked})
				}
				out := renderTable(
					[]string{"Name", "Feed", "Enabled", "Last Checked"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
}

func newSubscribeEnableCommand(ctx *commandContext, enable bool) *cobra.Command {
	use := "enable <name>"
	short := "Re-enable a paused subscription"
	verb := "Enabled"
	if !enable {
		use = "disable <name>"
		short = "Pause a subscription without deleting its history"
		verb = "Disabled"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *ledger.Store) error {
				if err := store.SetSubscriptionEnabled(cmd.Context(), args[0], enable); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s subscription %s\n", verb, args[0])
				return nil
			})
		},
	}
}
