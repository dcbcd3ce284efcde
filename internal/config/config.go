// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Convert  ConvertConfig
	Resource ResourceConfig
	Lookup   LookupConfig
	Output   OutputConfig
	Jobs     JobsConfig
	Server   ServerConfig
	Database DatabaseConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ConvertConfig holds format conversion settings.
type ConvertConfig struct {
	// Dir is where converted CSV files are written (default: ./converted)
	Dir string `env:"CONVERT_DIR" default:"./converted"`

	// Delimiter overrides TXT delimiter detection when set
	Delimiter string `env:"CONVERT_DELIMITER"`
}

// ResourceConfig holds resource advisory settings.
type ResourceConfig struct {
	// MaxRecommendedGB is the file size above which a warning is logged (default: 8)
	MaxRecommendedGB float64 `env:"RESOURCE_MAX_GB" default:"8.0"`
}

// LookupConfig holds lookup enrichment settings.
type LookupConfig struct {
	// Cache enables the lookup cache (default: true)
	Cache bool `env:"LOOKUP_CACHE" default:"true"`

	// CacheCapacity is the number of lookup tables kept in memory (default: 1)
	CacheCapacity int `env:"LOOKUP_CACHE_CAPACITY" default:"1"`

	// Collision is the normalized column collision policy: last_wins or fail
	Collision string `env:"COLUMN_COLLISION" default:"last_wins"`
}

// OutputConfig holds settings for the cleaned output.
type OutputConfig struct {
	// Format is the output sink: csv, parquet or postgres (default: csv)
	Format string `env:"OUTPUT_FORMAT" default:"csv"`

	// Dir is where cleaned files are written (default: ./cleaned)
	Dir string `env:"OUTPUT_DIR" default:"./cleaned"`

	// Schema is the PostgreSQL schema for postgres output (default: public)
	Schema string `env:"PG_SCHEMA" default:"public"`
}

// JobsConfig holds run execution settings.
type JobsConfig struct {
	// Workers is the maximum number of runs in flight (default: 4)
	Workers int `env:"NUM_WORKERS" default:"4"`

	// MaxWait is how long a run waits for a worker slot (default: 30s)
	MaxWait time.Duration `env:"JOB_MAX_WAIT" default:"30s"`

	// Timeout is the maximum duration for a single run (default: 10m)
	Timeout time.Duration `env:"JOB_TIMEOUT" default:"10m"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// DataRoot confines every path received over HTTP when set
	DataRoot string `env:"SERVER_DATA_ROOT"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 10m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"10m"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string, required for postgres output.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// RunLimit is requests per minute for run and convert endpoints (default: 10)
	RunLimit int `env:"RATE_LIMIT_RUNS" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey enables X-API-Key checks on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Real-IP and X-Forwarded-For headers are honored
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
