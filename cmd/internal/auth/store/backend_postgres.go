package store

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolFactory builds a ready-to-use pool. The backend owns what it returns.
type PoolFactory func(ctx context.Context) (*pgxpool.Pool, error)

// PostgresBackend stores records in the nuvem_session_cache table.
// The table is created on Open if missing.
type PostgresBackend struct {
	connect PoolFactory

	mu   sync.Mutex
	pool *pgxpool.Pool
}

// NewPostgresBackend creates a Postgres-backed record store.
func NewPostgresBackend(connect PoolFactory) *PostgresBackend {
	return &PostgresBackend{connect: connect}
}

// Open builds a pool and ensures the schema. A previous pool, if any, is closed.
func (b *PostgresBackend) Open(ctx context.Context) error {
	pool, err := b.connect(ctx)
	if err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS nuvem_session_cache (
			key        text PRIMARY KEY,
			value      bytea NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)
	`); err != nil {
		pool.Close()
		return err
	}

	b.mu.Lock()
	old := b.pool
	b.pool = pool
	b.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

func (b *PostgresBackend) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pool != nil
}

// Get loads the value stored under key.
func (b *PostgresBackend) Get(ctx context.Context, key string) ([]byte, error) {
	pool, err := b.conn()
	if err != nil {
		return nil, err
	}

	var v []byte
	err = pool.QueryRow(ctx, `
		SELECT value FROM nuvem_session_cache WHERE key = $1
	`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Put upserts the value for key.
func (b *PostgresBackend) Put(ctx context.Context, key string, value []byte) error {
	pool, err := b.conn()
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO nuvem_session_cache (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, key, value)
	return err
}

// Delete removes key. Missing keys are not an error.
func (b *PostgresBackend) Delete(ctx context.Context, key string) error {
	pool, err := b.conn()
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `DELETE FROM nuvem_session_cache WHERE key = $1`, key)
	return err
}

func (b *PostgresBackend) Close() error {
	b.mu.Lock()
	pool := b.pool
	b.pool = nil
	b.mu.Unlock()

	if pool != nil {
		pool.Close()
	}
	return nil
}

func (b *PostgresBackend) conn() (*pgxpool.Pool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pool == nil {
		return nil, ErrClosed
	}
	return b.pool, nil
}
