// Package config provides centralized configuration management for the application.
// Settings come from struct tag defaults, an optional YAML file, environment
// variables and explicitly set command line flags, in increasing priority.
// Everything is validated on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig    `key:"server"`
	Database DatabaseConfig  `key:"database"`
	Reader   ReaderConfig    `key:"reader"`
	Process  ProcessConfig   `key:"process"`
	Snapshot SnapshotConfig  `key:"snapshot"`
	Rate     RateLimitConfig `key:"rate_limit"`
	Security SecurityConfig  `key:"security"`
	Logging  LoggingConfig   `key:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `key:"host" env:"SERVER_HOST" flag:"host" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `key:"port" env:"SERVER_PORT" envAlt:"PORT" flag:"port" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `key:"read_timeout" env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0, bounded by RequestTimeout)
	WriteTimeout time.Duration `key:"write_timeout" env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `key:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `key:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests. It must leave room
	// for a full process request (default: 6m)
	RequestTimeout time.Duration `key:"request_timeout" env:"SERVER_REQUEST_TIMEOUT" default:"6m"`

	// MaxBodySize caps JSON request bodies in bytes (default: 1MB)
	MaxBodySize int64 `key:"max_body_size" env:"SERVER_MAX_BODY_SIZE" default:"1048576"`
}

// Database drivers accepted by DatabaseConfig.Driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver selects the store backend: postgres or sqlite (default: sqlite)
	Driver string `key:"driver" env:"DATABASE_DRIVER" flag:"db-driver" default:"sqlite"`

	// URL is the PostgreSQL connection string, required for the postgres driver.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `key:"url" env:"DATABASE_URL" envAlt:"DB_URL" flag:"database-url"`

	// SQLitePath is the database file for the sqlite driver (default: astroapi.db)
	SQLitePath string `key:"sqlite_path" env:"SQLITE_PATH" flag:"sqlite-path" default:"astroapi.db"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `key:"max_conns" env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `key:"min_conns" env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `key:"max_conn_lifetime" env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `key:"max_conn_idle_time" env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ReaderConfig selects how source files are opened.
type ReaderConfig struct {
	// Mode is file (read FITS/HDF5 from disk) or synthetic (generated data
	// for demos and tests) (default: file)
	Mode string `key:"mode" env:"READER_MODE" flag:"reader" default:"file"`

	// Family is the particle family read from simulation snapshots. Empty
	// picks the first family with particles
	Family string `key:"family" env:"SIM_FAMILY" flag:"family"`
}

// ProcessConfig bounds combine requests, which hold whole tables in memory.
type ProcessConfig struct {
	// MaxConcurrent is the number of process requests allowed at once (default: 4)
	MaxConcurrent int `key:"max_concurrent" env:"PROCESS_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a request waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `key:"max_wait_time" env:"PROCESS_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration of a single process request (default: 5m)
	Timeout time.Duration `key:"timeout" env:"PROCESS_TIMEOUT" default:"5m"`
}

// Snapshot formats accepted by SnapshotConfig.Format.
const (
	SnapshotCSV     = "csv"
	SnapshotParquet = "parquet"
)

// SnapshotConfig controls the on-disk copy of every processed table.
type SnapshotConfig struct {
	// Enabled turns snapshot writing on (default: true)
	Enabled bool `key:"enabled" env:"SNAPSHOT_ENABLED" default:"true"`

	// Dir is where snapshots are written (default: data)
	Dir string `key:"dir" env:"SNAPSHOT_DIR" flag:"snapshot-dir" default:"data"`

	// Format is csv or parquet (default: csv)
	Format string `key:"format" env:"SNAPSHOT_FORMAT" default:"csv"`

	// Retention is how long a snapshot is kept after its last write. Zero
	// keeps snapshots forever (default: 168h)
	Retention time.Duration `key:"retention" env:"SNAPSHOT_RETENTION" default:"168h"`

	// CheckInterval is how often expired snapshots are pruned (default: 1h)
	CheckInterval time.Duration `key:"check_interval" env:"SNAPSHOT_CHECK_INTERVAL" default:"1h"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `key:"enabled" env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `key:"requests_per_minute" env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ProcessLimit is requests per minute for the process endpoint (default: 10)
	ProcessLimit int `key:"process" env:"RATE_LIMIT_PROCESS" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `key:"trusted_proxies" env:"TRUSTED_PROXIES"`

	// RequireAPIKey rejects API requests without a valid X-API-Key header (default: false)
	RequireAPIKey bool `key:"require_api_key" env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `key:"api_keys" env:"API_KEYS"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `key:"enable_csp" env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `key:"level" env:"LOG_LEVEL" flag:"log-level" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `key:"format" env:"LOG_FORMAT" flag:"log-format" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
