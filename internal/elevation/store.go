package elevation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a persistent elevation tier shared across processes.
type Store interface {
	// Get returns the sample stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (*Sample, error)

	// Put stores or replaces the sample under key.
	Put(ctx context.Context, key string, sample Sample) error
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL elevation store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the elevation table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS elevation_samples (
			cell_key    TEXT PRIMARY KEY,
			lat         DOUBLE PRECISION NOT NULL,
			lon         DOUBLE PRECISION NOT NULL,
			elevation_m DOUBLE PRECISION NOT NULL,
			data_source TEXT NOT NULL,
			fetched_at  TIMESTAMPTZ NOT NULL
		)
	`

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("creating elevation_samples table: %w", err)
	}
	return nil
}

// Get retrieves a sample by cell key.
func (s *PostgresStore) Get(ctx context.Context, key string) (*Sample, error) {
	query := `
		SELECT lat, lon, elevation_m, data_source, fetched_at
		FROM elevation_samples
		WHERE cell_key = $1
	`

	var sample Sample
	err := s.pool.QueryRow(ctx, query, key).Scan(
		&sample.Lat,
		&sample.Lon,
		&sample.Elevation,
		&sample.DataSource,
		&sample.Timestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying elevation sample: %w", err)
	}

	return &sample, nil
}

// Put upserts a sample under a cell key.
func (s *PostgresStore) Put(ctx context.Context, key string, sample Sample) error {
	query := `
		INSERT INTO elevation_samples (cell_key, lat, lon, elevation_m, data_source, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cell_key) DO UPDATE SET
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			elevation_m = EXCLUDED.elevation_m,
			data_source = EXCLUDED.data_source,
			fetched_at = EXCLUDED.fetched_at
	`

	_, err := s.pool.Exec(ctx, query,
		key,
		sample.Lat,
		sample.Lon,
		sample.Elevation,
		sample.DataSource,
		sample.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("upserting elevation sample: %w", err)
	}
	return nil
}
