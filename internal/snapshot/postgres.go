package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjannette/moverbot/internal/models"
)

type PGStore struct {
	pool     *pgxpool.Pool
	ownsPool bool
}

// NewPGStore wraps pool. When owns is true Close also closes the pool.
func NewPGStore(pool *pgxpool.Pool, owns bool) *PGStore {
	return &PGStore{pool: pool, ownsPool: owns}
}

func (r *PGStore) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS snapshots (
			key        TEXT PRIMARY KEY,
			value      BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	)
	if err != nil {
		return fmt.Errorf("%w: create snapshots table: %w", models.ErrPersistence, err)
	}
	return nil
}

func (r *PGStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := r.pool.QueryRow(ctx,
		`SELECT value FROM snapshots WHERE key = $1`, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: select %s: %w", models.ErrPersistence, key, err)
	}
	return value, true, nil
}

func (r *PGStore) Save(ctx context.Context, key string, data []byte) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO snapshots (key, value, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, data,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %w", models.ErrPersistence, key, err)
	}
	return nil
}

func (r *PGStore) Close() error {
	if r.ownsPool {
		r.pool.Close()
	}
	return nil
}
