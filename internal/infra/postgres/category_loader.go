package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"learnearn/internal/domain"
)

// CategoryLoader loads question tables stored as JSONB in Postgres.
type CategoryLoader struct {
	pool *pgxpool.Pool
}

func NewCategoryLoader(pool *pgxpool.Pool) *CategoryLoader {
	return &CategoryLoader{pool: pool}
}

func (l *CategoryLoader) LoadCategory(ctx context.Context, key string) (domain.Category, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM question_sets WHERE key=$1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Category{}, fmt.Errorf("%w: %s", domain.ErrCategoryNotFound, key)
	}
	if err != nil {
		return domain.Category{}, fmt.Errorf("load category: %w", err)
	}
	var c domain.Category
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.Category{}, fmt.Errorf("unmarshal category: %w", err)
	}
	for _, q := range c.Questions {
		if err := q.Validate(); err != nil {
			return domain.Category{}, fmt.Errorf("category %s: %w", key, err)
		}
	}
	c.Key = key
	return c, nil
}

// Keys lists the stored category keys in display order.
func (l *CategoryLoader) Keys(ctx context.Context) ([]string, error) {
	rows, err := l.pool.Query(ctx, `SELECT key FROM question_sets ORDER BY position, key`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan category key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
