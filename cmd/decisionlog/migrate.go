package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smallbiznis/decisionlog/internal/migrations"
)

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the Postgres schema",
	Long: `Apply or inspect the embedded schema migrations against DATABASE_URL.

Examples:
  decisionlog migrate up
  decisionlog migrate status`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrationDB(cmd.Context(), migrations.Up)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the state of every migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrationDB(cmd.Context(), migrations.Status)
	},
}

func withMigrationDB(ctx context.Context, run func(context.Context, *sql.DB, *zap.Logger) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := newConfig()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrations")
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return run(ctx, db, logger)
}
