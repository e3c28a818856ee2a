package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type record struct {
	bun.BaseModel `bun:"table:records"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// RecordStorage keeps named records in the records table.
type RecordStorage struct {
	db  *bun.DB
	now func() time.Time
}

func NewRecordStorage(db *bun.DB) *RecordStorage {
	return &RecordStorage{db: db, now: time.Now}
}

func (s *RecordStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	var r record
	err := s.db.NewSelect().Model(&r).Where("key = ?", key).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select record %s: %w", key, err)
	}
	return r.Value, true, nil
}

func (s *RecordStorage) SetItem(ctx context.Context, key, value string) error {
	r := record{Key: key, Value: value, UpdatedAt: s.now().UTC()}
	_, err := s.db.NewInsert().
		Model(&r).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", key, err)
	}
	return nil
}
