package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

const schema = `
CREATE TABLE IF NOT EXISTS blobs (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Blobs is the Postgres backend of storage.Blobs: one row per collection,
// replaced by a single upsert so a save is all or nothing.
type Blobs struct{ DB *pgxpool.Pool }

func (b *Blobs) Migrate(ctx context.Context) error {
	_, err := b.DB.Exec(ctx, schema)
	return err
}

func (b *Blobs) Load(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := b.DB.QueryRow(ctx, `SELECT value FROM blobs WHERE key=$1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("postgres.Load", "blob", key)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (b *Blobs) Save(ctx context.Context, key string, value []byte) error {
	_, err := b.DB.Exec(ctx, `
		INSERT INTO blobs(key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, key, value)
	return err
}
