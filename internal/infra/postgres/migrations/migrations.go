// Package migrations holds the Postgres schema and the question seeding used by `learnearn migrate`.
package migrations

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"learnearn/internal/domain"
)

var Migrations = migrate.NewMigrations()

// Apply creates the migration tables if needed and runs pending migrations.
func Apply(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, err
	}
	return migrator.Migrate(ctx)
}

// Seed upserts question tables; position follows the slice order.
func Seed(ctx context.Context, db *bun.DB, categories []domain.Category) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for i, c := range categories {
			data, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("marshal category %s: %w", c.Key, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO question_sets (key, position, data, updated_at) VALUES (?, ?, ?::jsonb, now())
				 ON CONFLICT (key) DO UPDATE SET position=EXCLUDED.position, data=EXCLUDED.data, updated_at=now()`,
				c.Key, i, string(data)); err != nil {
				return fmt.Errorf("seed category %s: %w", c.Key, err)
			}
		}
		return nil
	})
}
