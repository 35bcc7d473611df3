package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/morezero/chat-worker/internal/config"
	"github.com/morezero/chat-worker/pkg/db"
)

func journalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect or prune the dispatch journal (requires DATABASE_URL)",
	}

	var limit int
	recent := &cobra.Command{
		Use:   "recent",
		Short: "Print the latest journal entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
				entries, err := db.NewJournal(pool).Recent(ctx, limit)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CREATED\tACTION\tREQUEST\tOK\tCODE\tMS")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%d\n",
						e.Created.Format(time.RFC3339), e.Action, e.RequestID, e.OK, e.Code, e.DurationMs)
				}
				return tw.Flush()
			})
		},
	}
	recent.Flags().IntVarP(&limit, "limit", "n", db.DefaultRecentLimit, "Number of entries to show")

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete entries older than --older-than (default JOURNAL_RETENTION)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				age := olderThan
				if age <= 0 {
					age = cfg.JournalRetention
				}
				if age <= 0 {
					return fmt.Errorf("journal prune: retention must be positive")
				}
				n, err := db.NewJournal(pool).Prune(ctx, time.Now().Add(-age))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d entries older than %s\n", n, age)
				return nil
			})
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 0, "Age cutoff, e.g. 72h")

	cmd.AddCommand(recent, prune)
	return cmd
}
