package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults are the paths used when no config file says otherwise.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - FEED_CONFIG_PATH: config file location (default: ~/.config/feed.toml)
//   - FEED_HOME: base directory for feed data (default: ~/.local/share/feed)
func GetDefaults() (*Defaults, error) {
	configPath, err := fromEnvOrHome("FEED_CONFIG_PATH", ".config", "feed.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := fromEnvOrHome("FEED_HOME", ".local", "share", "feed")
	if err != nil {
		return nil, err
	}
	return &Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}

func fromEnvOrHome(env string, elem ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elem...)...), nil
}
