package database

import (
	"fmt"
	"io"
	"path/filepath"

	"feed-go/internal/config"
	"feed-go/internal/feed"
)

// Substrate is a SQL-backed substrate that holds a connection.
type Substrate interface {
	feed.Substrate
	io.Closer
}

// NewSubstrateFromConfig opens the SQL substrate named by cfg.Type.
func NewSubstrateFromConfig(cfg config.SubstrateConfig) (Substrate, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite substrate")
		}
		s, err := NewSQLiteSubstrate(filepath.Join(cfg.DataDir, "feed.db"))
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		timeout, err := cfg.CallTimeout()
		if err != nil {
			return nil, err
		}
		s, err := NewPostgresSubstrate(cfg.PostgresDSN, timeout)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("not a sql substrate type: %s", cfg.Type)
	}
}
