package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"podscribe/internal/config"
	"podscribe/internal/feed"
	"podscribe/internal/ledger"
	"podscribe/internal/logging"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Refresh subscribed feeds and enqueue new episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *ledger.Store) error {
				logger, err := buildLogger(cfg)
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}

				subs, err := store.ListSubscriptions(cmd.Context(), true)
				if err != nil {
					return err
				}
				if len(subs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No enabled subscriptions; add one with `podscribe subscribe add`")
					return nil
				}

				fetchLimit := limit
				if fetchLimit <= 0 {
					fetchLimit = cfg.Workflow.FetchLimit
				}

				source := feed.NewSource(logger)
				out := cmd.OutOrStdout()
				enqueued := 0
				for _, sub := range subs {
					items, err := source.Episodes(cmd.Context(), sub.Name, sub.RSSURL, fetchLimit)
					if err != nil {
						// One broken feed should not block the rest.
						logger.Warn("feed refresh failed",
							logging.String(logging.FieldPodcast, sub.Name),
							logging.Error(err),
						)
						fmt.Fprintf(out, "%s: feed refresh failed: %v\n", sub.Name, err)
						continue
					}

					added := 0
					for _, item := range items {
						_, created, err := store.CreateOrGet(cmd.Context(), item.PodcastName, item.EpisodeTitle, item.AudioURL)
						if err != nil {
							return err
						}
						if created {
							added++
						}
					}
					if err := store.TouchSubscription(cmd.Context(), sub.ID, time.Now()); err != nil {
						return err
					}

					enqueued += added
					fmt.Fprintf(out, "%s: %d episodes seen, %d new\n", sub.Name, len(items), added)
				}

				fmt.Fprintf(out, "Enqueued %d new episodes\n", enqueued)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Episodes to inspect per feed (0 uses workflow.fetch_limit)")
	return cmd
}
