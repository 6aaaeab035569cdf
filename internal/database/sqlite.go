package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"feed-go/internal/database/migrations"
	"feed-go/internal/feed"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteSubstrate stores substrate values in the kv table of a SQLite file.
type SQLiteSubstrate struct {
	db   *sql.DB
	path string
}

var _ feed.Substrate = (*SQLiteSubstrate)(nil)

// NewSQLiteSubstrate opens (creating if needed) the database at path and
// migrates it to the latest schema. path may be ":memory:".
func NewSQLiteSubstrate(path string) (*SQLiteSubstrate, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db, migrations.SQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return &SQLiteSubstrate{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection.
// path can be a file path or ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every new connection to :memory: is a fresh, empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return db, nil
}

func (s *SQLiteSubstrate) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("reading", key, err)
	}
	return value, true, nil
}

func (s *SQLiteSubstrate) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return unavailable("writing", key, err)
	}
	return nil
}

func (s *SQLiteSubstrate) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return unavailable("deleting", key, err)
	}
	return nil
}

// Close closes the underlying connection.
func (s *SQLiteSubstrate) Close() error {
	return s.db.Close()
}

func unavailable(verb, key string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", verb, key, feed.ErrStorageUnavailable, err)
}
