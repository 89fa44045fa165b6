// Package config handles loading and managing chatvault configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the chatvault configuration.
type Config struct {
	Data   DataConfig   `toml:"data"`
	Index  IndexConfig  `toml:"index"`
	Server ServerConfig `toml:"server"`

	// Computed paths (not from config file)
	HomeDir string `toml:"-"`
}

// DataConfig holds data location configuration.
type DataConfig struct {
	// SourceDB is the path to the external message database. Read-only.
	SourceDB string `toml:"source_db"`
	// CacheDir holds the rebuildable search index. Defaults to the
	// chatvault home directory; safe to delete entirely.
	CacheDir string `toml:"cache_dir"`
}

// IndexConfig holds indexing and search tuning.
type IndexConfig struct {
	BatchSize       int `toml:"batch_size"`       // rows per incremental batch
	ScanCap         int `toml:"scan_cap"`         // max matches one search collects
	IntervalSeconds int `toml:"interval_seconds"` // incremental tick interval
}

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	APIPort int `toml:"api_port"` // HTTP server port (default: 8080)
}

// DefaultHome returns the default chatvault home directory.
// Respects the CHATVAULT_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("CHATVAULT_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatvault"
	}
	return filepath.Join(home, ".chatvault")
}

// Load reads the configuration from the specified file. If path is
// empty, the default location (<home>/config.toml) is used. If homeDir
// is empty, DefaultHome() is used. The config file is optional;
// defaults apply when it is absent.
func Load(path, homeDir string) (*Config, error) {
	if homeDir == "" {
		homeDir = DefaultHome()
	}
	if path == "" {
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := &Config{
		HomeDir: homeDir,
		Data: DataConfig{
			CacheDir: homeDir,
		},
		Index: IndexConfig{
			BatchSize:       1000,
			ScanCap:         10000,
			IntervalSeconds: 30,
		},
		Server: ServerConfig{
			APIPort: 8080,
		},
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Data.SourceDB = expandPath(cfg.Data.SourceDB)
	cfg.Data.CacheDir = expandPath(cfg.Data.CacheDir)
	if cfg.Data.CacheDir == "" {
		cfg.Data.CacheDir = homeDir
	}

	return cfg, nil
}

// EnsureHomeDir creates the home directory if it does not exist.
func (c *Config) EnsureHomeDir() error {
	return os.MkdirAll(c.HomeDir, 0755)
}

// ConfigFilePath returns the path of the config file for this home.
func (c *Config) ConfigFilePath() string {
	return filepath.Join(c.HomeDir, "config.toml")
}

// IndexDBPath returns the path of the search index database.
func (c *Config) IndexDBPath() string {
	return filepath.Join(c.Data.CacheDir, "index.db")
}

// TickInterval returns the incremental indexing interval.
func (c *Config) TickInterval() time.Duration {
	if c.Index.IntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Index.IntervalSeconds) * time.Second
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
