package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shortlinkd/shortlinkd/internal/bootstrap"
	"github.com/shortlinkd/shortlinkd/internal/store/migrate"
	"github.com/shortlinkd/shortlinkd/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage PostgreSQL/MySQL schema migrations (SQLite needs none)",
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrateEnv(func(ctx context.Context, dsn string, log *logger.Config) error {
			return migrate.Up(ctx, dsn, buildLogger(*log))
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrateEnv(func(ctx context.Context, dsn string, log *logger.Config) error {
			return migrate.Down(ctx, dsn, buildLogger(*log))
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrateEnv(func(ctx context.Context, dsn string, log *logger.Config) error {
			return migrate.Status(ctx, dsn, buildLogger(*log))
		})
	},
}

func withMigrateEnv(fn func(ctx context.Context, dsn string, log *logger.Config) error) error {
	cfg, err := bootstrap.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return fn(context.Background(), cfg.DatabaseDSN, &cfg.Log)
}
