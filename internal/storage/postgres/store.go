package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createCacheTable = `
	CREATE TABLE IF NOT EXISTS snapshot_cache (
		cache_key  BYTEA PRIMARY KEY,
		value      BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// Store provides a Postgres-backed result cache.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// EnsureSchema creates the cache table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createCacheTable); err != nil {
		return fmt.Errorf("create snapshot_cache: %w", err)
	}
	return nil
}

// Get returns the cached blob for key.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	var value []byte
	row := s.pool.QueryRow(ctx, `SELECT value FROM snapshot_cache WHERE cache_key=$1`, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

// Put stores value under key. An existing entry is left as is since entries
// for the same key are identical.
func (s *Store) Put(ctx context.Context, key []byte, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO snapshot_cache (cache_key, value, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (cache_key) DO NOTHING
	`, key, value)
	return err
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
