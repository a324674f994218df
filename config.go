package culturedb

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines store configuration.
type Config struct {
	// Path is the file path for the SQLite database. Required.
	Path string `yaml:"path"`

	// Storage holds SQLite tuning settings.
	Storage StorageConfig `yaml:"storage"`

	// HTTP configures the read-only HTTP API server.
	HTTP HTTPConfig `yaml:"http"`

	// Stream configures live activity-update streaming.
	Stream StreamConfig `yaml:"stream"`

	// Sources overrides the built-in source catalog. Leave nil to use the
	// default catalog; overrides are validated for disjoint column
	// ownership at open time exactly like the defaults.
	Sources []SourceSpec `yaml:"-"`
}

// StorageConfig groups SQLite tuning settings.
type StorageConfig struct {
	// CacheSize is the SQLite page cache size in KB. Default: 2000.
	CacheSize int `yaml:"cache_size"`

	// JournalMode sets the SQLite journal mode. Default: WAL.
	JournalMode string `yaml:"journal_mode"`

	// Synchronous sets the synchronous pragma. Default: NORMAL.
	Synchronous string `yaml:"synchronous"`

	// BusyTimeout bounds, in milliseconds, how long an append waits on a
	// concurrent writer before failing with ErrBusy. Default: 5000.
	BusyTimeout int `yaml:"busy_timeout"`

	// MaxConnections is the max number of database connections. Default: 8.
	MaxConnections int `yaml:"max_connections"`
}

// HTTPConfig groups HTTP server settings.
type HTTPConfig struct {
	// Enabled turns on the read-only HTTP API. Default: false.
	Enabled bool `yaml:"enabled"`

	// Addr is the listen address. Default: ":8086".
	Addr string `yaml:"addr"`
}

// StreamConfig configures the activity-update stream.
type StreamConfig struct {
	// Enabled turns on post-commit publication to subscribers.
	// Default: true.
	Enabled bool `yaml:"enabled"`

	// BufferSize is the channel buffer per subscription. A slow consumer
	// drops updates rather than stalling appends. Default: 256.
	BufferSize int `yaml:"buffer_size"`

	// WriteTimeout bounds WebSocket writes. Default: 10s.
	WriteTimeout time.Duration `yaml:"-"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig(path string) Config {
	return Config{
		Path: path,
		Storage: StorageConfig{
			CacheSize:      2000,
			JournalMode:    "WAL",
			Synchronous:    "NORMAL",
			BusyTimeout:    5000,
			MaxConnections: 8,
		},
		HTTP: HTTPConfig{
			Enabled: false,
			Addr:    ":8086",
		},
		Stream: StreamConfig{
			Enabled:      true,
			BufferSize:   256,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// normalize fills zero-value fields with defaults.
func (c *Config) normalize() {
	def := DefaultConfig(c.Path)
	if c.Storage.CacheSize <= 0 {
		c.Storage.CacheSize = def.Storage.CacheSize
	}
	if c.Storage.JournalMode == "" {
		c.Storage.JournalMode = def.Storage.JournalMode
	}
	if c.Storage.Synchronous == "" {
		c.Storage.Synchronous = def.Storage.Synchronous
	}
	if c.Storage.BusyTimeout <= 0 {
		c.Storage.BusyTimeout = def.Storage.BusyTimeout
	}
	if c.Storage.MaxConnections <= 0 {
		c.Storage.MaxConnections = def.Storage.MaxConnections
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = def.HTTP.Addr
	}
	if c.Stream.BufferSize <= 0 {
		c.Stream.BufferSize = def.Stream.BufferSize
	}
	if c.Stream.WriteTimeout <= 0 {
		c.Stream.WriteTimeout = def.Stream.WriteTimeout
	}
}

// LoadConfig reads a YAML configuration file. Missing fields take the same
// defaults as DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Path == "" {
		return Config{}, fmt.Errorf("config file %s: path is required", path)
	}

	cfg.normalize()
	return cfg, nil
}
