package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Environment variables that override the file configuration.
const (
	EnvStoragePath = "STORAGE_PATH"
	EnvNodeURL     = "TM_NODE"
)

const (
	DefaultStoragePath  = "/data"
	DefaultNodeTimeout  = 5 * time.Second
	DefaultPollInterval = 1 * time.Second
	DefaultErrorBackoff = 5 * time.Second
	DefaultLockTTL      = 30 * time.Second
)

// ErrMissingNodeURL is returned when no chain node URL is configured.
var ErrMissingNodeURL = errors.New("chain node URL is required (set " + EnvNodeURL + " or node.url)")

// Load reads configuration from a YAML file, applies environment overrides
// and defaults, and validates the result. A missing file is not an error:
// the indexer can be configured from the environment alone.
func Load(path string) (*AppConfig, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for maintenance commands that never
// talk to the node.
func Read(path string) (*AppConfig, error) {
	var cfg AppConfig

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			// Expand environment variables in the YAML content
			expandedData := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if v := os.Getenv(EnvStoragePath); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv(EnvNodeURL); v != "" {
		cfg.Node.URL = v
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverFile
	}
	if cfg.Node.Timeout == 0 {
		cfg.Node.Timeout = DefaultNodeTimeout
	}
	if cfg.Poll.Interval == 0 {
		cfg.Poll.Interval = DefaultPollInterval
	}
	if cfg.Poll.ErrorBackoff == 0 {
		cfg.Poll.ErrorBackoff = DefaultErrorBackoff
	}
	if cfg.Lock.Driver == "" {
		cfg.Lock.Driver = DriverFile
	}
	if cfg.Lock.TTL == 0 {
		cfg.Lock.TTL = DefaultLockTTL
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks required settings and driver names.
func (c *AppConfig) Validate() error {
	if c.Node.URL == "" {
		return ErrMissingNodeURL
	}
	switch c.Storage.Driver {
	case DriverFile:
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("storage driver %q requires database.url", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Lock.Driver {
	case DriverFile:
	case DriverRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("lock driver %q requires redis.url", c.Lock.Driver)
		}
	default:
		return fmt.Errorf("unknown lock driver %q", c.Lock.Driver)
	}
	if c.Node.RequestsPerSecond < 0 {
		return fmt.Errorf("node.requests_per_second must not be negative")
	}
	return nil
}
