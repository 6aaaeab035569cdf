package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ilyakaznacheev/cleanenv"
)

// Config represents the main configuration for feed.
type Config struct {
	BaseDir    string           `toml:"base_dir" env:"FEED_HOME"`
	LogDir     string           `toml:"log_dir" env:"FEED_LOG_DIR"`
	LogLevel   string           `toml:"log_level" env:"FEED_LOG_LEVEL"` // debug, info, warn or error
	Substrate  SubstrateConfig  `toml:"substrate"`
	Encryption EncryptionConfig `toml:"encryption"`
	Session    SessionConfig    `toml:"session"`
	Feed       FeedConfig       `toml:"feed"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

// SubstrateConfig selects the key/value backend the store persists to.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type SubstrateConfig struct {
	Type     string `toml:"type" env:"FEED_SUBSTRATE"` // "memory", "filesystem", "sqlite", "postgres" or "s3"
	MaxBytes int64  `toml:"max_bytes,omitempty"`       // quota for memory and filesystem; 0 means unlimited
	Encrypt  bool   `toml:"encrypt,omitempty"`         // wrap the backend with at-rest encryption

	// Filesystem and SQLite fields
	DataDir string `toml:"data_dir,omitempty" env:"FEED_DATA_DIR"`

	// Postgres fields
	PostgresDSN string `toml:"postgres_dsn,omitempty" env:"FEED_POSTGRES_DSN"`

	// S3 fields
	S3Bucket   string `toml:"s3_bucket,omitempty" env:"FEED_S3_BUCKET"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty" env:"FEED_S3_REGION"`
	S3Endpoint string `toml:"s3_endpoint,omitempty" env:"FEED_S3_ENDPOINT"` // MinIO and other S3-compatible services

	// Static credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty" env:"FEED_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty" env:"FEED_S3_SECRET_ACCESS_KEY"`

	// Timeout bounds each call of the network backends (postgres, s3).
	Timeout string `toml:"timeout,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for at-rest encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// SessionConfig configures login sessions.
type SessionConfig struct {
	Secret string `toml:"secret" env:"FEED_SESSION_SECRET"` // HMAC key for session tokens
	TTL    string `toml:"ttl"`                              // e.g. "24h"
}

// FeedConfig configures the record store.
type FeedConfig struct {
	CollectionKey string `toml:"collection_key"`
	PerPage       int    `toml:"per_page"` // default page size for listings
}

// MetricsConfig configures the metrics textfile export.
type MetricsConfig struct {
	TextfilePath string `toml:"textfile_path,omitempty" env:"FEED_METRICS_TEXTFILE"` // empty disables export
}

const (
	DefaultSessionTTL = 24 * time.Hour
	DefaultTimeout    = 10 * time.Second
	DefaultPerPage    = 10
)

// NewConfig creates a new Config rooted at baseDir with default paths.
func NewConfig(baseDir, sessionSecret string) *Config {
	return &Config{
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Substrate: SubstrateConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "feed.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "feed.key"),
		},
		Session: SessionConfig{
			Secret: sessionSecret,
			TTL:    DefaultSessionTTL.String(),
		},
		Feed: FeedConfig{
			CollectionKey: "publicaciones",
			PerPage:       DefaultPerPage,
		},
	}
}

// SessionTTL parses Session.TTL, falling back to DefaultSessionTTL when unset.
func (c *Config) SessionTTL() (time.Duration, error) {
	return parseDuration(c.Session.TTL, DefaultSessionTTL)
}

// CallTimeout parses Timeout, falling back to DefaultTimeout when unset.
func (c *SubstrateConfig) CallTimeout() (time.Duration, error) {
	return parseDuration(c.Timeout, DefaultTimeout)
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing duration %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %s", s)
	}
	return d, nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader and applies FEED_* environment
// overrides on top of it.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cleanenv.UpdateEnv(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file carries the session secret.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes a new config file at path. It refuses to overwrite an existing one.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
