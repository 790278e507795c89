package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tuanvumaihuynh/inventory-count/internal/storage/db"
)

const (
	MetaKeyProductCount = "product_count"
	MetaKeyLastImportID = "last_import_id"
	MetaKeyLastImportAt = "last_import_at"
)

// MetaRepository stores small derived scalars.
type MetaRepository interface {
	WithDB(db db.DB) MetaRepository
	Get(ctx context.Context, key string) (string, bool, error)
	GetMany(ctx context.Context, keys ...string) (map[string]string, error)
	Set(ctx context.Context, values map[string]string) error
}

type metaRepository struct {
	db db.DB
}

func NewMetaRepository(db db.DB) MetaRepository {
	return &metaRepository{db: db}
}

func (r metaRepository) WithDB(db db.DB) MetaRepository {
	return &metaRepository{db: db}
}

func (r metaRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow(ctx, `SELECT value FROM meta WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get meta %s: %w", key, err)
	}
	return value, true, nil
}

func (r metaRepository) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	rows, err := r.db.Query(ctx, `SELECT key, value FROM meta WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("get meta: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string, len(keys))
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meta: %w", err)
	}

	return values, nil
}

func (r metaRepository) Set(ctx context.Context, values map[string]string) error {
	batch := &pgx.Batch{}
	for k, v := range values {
		batch.Queue(`
			INSERT INTO meta (key, value, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (key) DO UPDATE
			SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
		`, k, v)
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("set meta: %w", err)
	}
	return nil
}
