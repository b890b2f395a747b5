package weather

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a persistent series tier shared across processes, so that series
// fetched by the worker are visible to the API.
type Store interface {
	// Get returns the series stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (*Series, error)

	// Put stores or replaces the series under key.
	Put(ctx context.Context, key string, series *Series) error
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL weather store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the weather table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS weather_series (
			cache_key  TEXT PRIMARY KEY,
			provider   TEXT NOT NULL,
			samples    JSONB NOT NULL,
			fetched_at TIMESTAMPTZ NOT NULL
		)
	`

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("creating weather_series table: %w", err)
	}
	return nil
}

// Get retrieves a series by cache key.
func (s *PostgresStore) Get(ctx context.Context, key string) (*Series, error) {
	query := `
		SELECT provider, samples, fetched_at
		FROM weather_series
		WHERE cache_key = $1
	`

	var series Series
	err := s.pool.QueryRow(ctx, query, key).Scan(
		&series.Provider,
		&series.Samples,
		&series.FetchedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying weather series: %w", err)
	}

	return &series, nil
}

// Put upserts a series under a cache key.
func (s *PostgresStore) Put(ctx context.Context, key string, series *Series) error {
	query := `
		INSERT INTO weather_series (cache_key, provider, samples, fetched_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cache_key) DO UPDATE SET
			provider = EXCLUDED.provider,
			samples = EXCLUDED.samples,
			fetched_at = EXCLUDED.fetched_at
	`

	_, err := s.pool.Exec(ctx, query,
		key,
		series.Provider,
		series.Samples,
		series.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting weather series: %w", err)
	}
	return nil
}
