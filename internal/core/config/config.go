package config

import (
	"time"

	redisclient "github.com/vietddude/blockledger/internal/infra/redis"
	"github.com/vietddude/blockledger/internal/infra/storage/postgres"
)

// Storage and lock drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Storage  StorageConfig      `yaml:"storage"`
	Node     NodeConfig         `yaml:"node"`
	Poll     PollConfig         `yaml:"poll"`
	Lock     LockConfig         `yaml:"lock"`
	Server   ServerConfig       `yaml:"server"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
	Logging  LoggingConfig      `yaml:"logging"`
}

// StorageConfig locates the ledger and the instance lock marker.
type StorageConfig struct {
	Path   string `yaml:"path"`   // directory holding blocks.csv and processor.state
	Driver string `yaml:"driver"` // file, postgres
}

// NodeConfig holds settings for the chain node HTTP API.
type NodeConfig struct {
	URL               string        `yaml:"url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 = unlimited
}

// PollConfig paces the catch-up loop.
type PollConfig struct {
	Interval     time.Duration `yaml:"interval"`
	ErrorBackoff time.Duration `yaml:"error_backoff"`
}

// LockConfig selects the instance lock backend.
type LockConfig struct {
	Driver string        `yaml:"driver"` // file, redis
	TTL    time.Duration `yaml:"ttl"`    // redis only
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"` // 0 disables the health server
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
