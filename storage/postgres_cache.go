package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// PostgresCache stores lookup results in the lookup_cache table. Rows are
// only ever inserted.
type PostgresCache struct {
	db        *sql.DB
	closeOnce sync.Once
	closeErr  error
}

// NewPostgresCache connects to dsn and ensures the cache table exists.
func NewPostgresCache(dsn string) (*PostgresCache, error) {
	db, err := openPostgres(dsn)
	if err != nil {
		return nil, err
	}
	pc := &PostgresCache{db: db}
	if err := pc.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate cache: %w", err)
	}
	return pc, nil
}

func (pc *PostgresCache) migrate() error {
	_, err := pc.db.Exec(`
		CREATE TABLE IF NOT EXISTS lookup_cache (
			key        TEXT        PRIMARY KEY,
			value      JSONB       NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

func (pc *PostgresCache) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	var value []byte
	err := pc.db.QueryRowContext(ctx,
		`SELECT value FROM lookup_cache WHERE key = $1`, string(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres: get cache entry: %w", err)
	}
	return value, true, nil
}

func (pc *PostgresCache) Set(ctx context.Context, key Key, value []byte) error {
	_, err := pc.db.ExecContext(ctx, `
		INSERT INTO lookup_cache (key, value)
		VALUES ($1, $2::jsonb)
		ON CONFLICT (key) DO NOTHING
	`, string(key), string(value))
	if err != nil {
		return fmt.Errorf("postgres: set cache entry: %w", err)
	}
	return nil
}

// Close releases the connection pool. Every statement is committed as it
// runs, so there is nothing to flush.
func (pc *PostgresCache) Close() error {
	pc.closeOnce.Do(func() {
		pc.closeErr = pc.db.Close()
	})
	return pc.closeErr
}
