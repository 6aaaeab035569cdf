package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"feed-go/internal/database/migrations"
	"feed-go/internal/feed"
)

// PostgresSubstrate stores substrate values in the kv table of a Postgres
// database. Each call is bounded by the configured timeout.
type PostgresSubstrate struct {
	db      *sql.DB
	timeout time.Duration
}

var _ feed.Substrate = (*PostgresSubstrate)(nil)

// NewPostgresSubstrate connects to dsn and migrates the schema.
func NewPostgresSubstrate(dsn string, timeout time.Duration) (*PostgresSubstrate, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := migrations.MigrateUp(db, migrations.Postgres); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating postgres: %w", err)
	}
	return &PostgresSubstrate{db: db, timeout: timeout}, nil
}

func (s *PostgresSubstrate) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("reading", key, err)
	}
	return value, true, nil
}

func (s *PostgresSubstrate) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value)
	if err != nil {
		return unavailable("writing", key, err)
	}
	return nil
}

func (s *PostgresSubstrate) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = $1`, key); err != nil {
		return unavailable("deleting", key, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresSubstrate) Close() error {
	return s.db.Close()
}
