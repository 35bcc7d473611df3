package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/morezero/chat-worker/internal/config"
	"github.com/morezero/chat-worker/pkg/db"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the dispatch journal schema (requires DATABASE_URL)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations from MIGRATION_PATH",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				migrations, err := db.LoadMigrations(cfg.MigrationPath)
				if err != nil {
					return fmt.Errorf("load migrations: %w", err)
				}
				n, err := db.RunMigrations(ctx, pool, migrations)
				if err != nil {
					return fmt.Errorf("run migrations: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s)\n", n)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show which migrations have been applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				states, err := db.MigrationStatus(ctx, pool, cfg.MigrationPath)
				if err != nil {
					return err
				}
				for _, s := range states {
					mark := "pending"
					if s.Applied {
						mark = "applied"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", mark, s.Name)
				}
				return nil
			})
		},
	})

	return cmd
}

func withPool(ctx context.Context, fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}
