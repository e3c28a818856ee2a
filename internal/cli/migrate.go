package cli

import (
	"context"
	"database/sql"
	"errors"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"learnearn/internal/config"
	"learnearn/internal/content"
	pgmigrations "learnearn/internal/infra/postgres/migrations"
)

// NewMigrateCmd applies database migrations and optionally seeds the question tables.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			if err := runMigrations(cmd.Context(), cfg, seed); err != nil {
				return err
			}
			logger.Info("migrations applied", "seeded", seed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "upsert the built-in question tables")
	return cmd
}

func openBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func runMigrations(ctx context.Context, cfg config.Config, seed bool) error {
	if cfg.Postgres.URL == "" {
		return errors.New("postgres url not configured")
	}

	db := openBun(cfg.Postgres.URL)
	defer db.Close()

	if _, err := pgmigrations.Apply(ctx, db); err != nil {
		return err
	}
	if seed {
		return pgmigrations.Seed(ctx, db, content.Builtin().Categories())
	}
	return nil
}
