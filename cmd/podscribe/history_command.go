package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"podscribe/internal/config"
	"podscribe/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var statusFilters []string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List processed episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]ledger.Status, 0, len(statusFilters))
			for _, raw := range statusFilters {
				status, ok := ledger.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				statuses = append(statuses, status)
			}

			return ctx.withStore(func(cfg *config.Config, store *ledger.Store) error {
				episodes, err := store.History(cmd.Context(), limit, statuses...)
				if err != nil {
					return err
				}
				if len(episodes) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No episodes recorded")
					return nil
				}

				rows := make([][]string, 0, len(episodes))
				for _, episode := range episodes {
					detail := episode.OutputPath
					if episode.Status == ledger.StatusFailed {
						detail = episode.ErrorMessage
					}
					rows = append(rows, []string{
						strconv.FormatInt(episode.ID, 10),
						episode.PodcastName,
						episode.EpisodeTitle,
						string(episode.Status),
						episode.BackendUsed,
						episode.UpdatedAt.Local().Format(time.RFC3339),
						detail,
					})
				}
				out := renderTable(
					[]string{"ID", "Podcast", "Episode", "Status", "Backend", "Updated", "Detail"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum episodes to show (0 for all)")
	cmd.Flags().StringSliceVarP(&statusFilters, "status", "s", nil, "Filter by status (repeatable)")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show episode counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *ledger.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(stats))
				total := 0
				for _, status := range ledger.AllStatuses() {
					count, ok := stats[status]
					if !ok {
						continue
					}
					total += count
					rows = append(rows, []string{string(status), strconv.Itoa(count)})
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Ledger is empty")
					return nil
				}
				rows = append(rows, []string{"total", strconv.Itoa(total)})

				out := renderTable(
					[]string{"Status", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				)
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
}
