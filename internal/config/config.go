// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Import    ImportConfig
	Retention RetentionConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ImportConfig holds appointment import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum accepted upload size in bytes (default: 10MiB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"10485760"`

	// PreviewRows is how many parsed rows Ingest returns as a preview (default: 10)
	PreviewRows int `env:"IMPORT_PREVIEW_ROWS" default:"10"`

	// ErrorSamples is how many invalid rows Validate surfaces (default: 10)
	ErrorSamples int `env:"IMPORT_ERROR_SAMPLES" default:"10"`

	// Workers is the number of rows committed in parallel within one batch (default: 4)
	Workers int `env:"IMPORT_WORKERS" default:"4"`

	// MaxConcurrentBatches limits batches processing at the same time (default: 4)
	MaxConcurrentBatches int `env:"IMPORT_MAX_CONCURRENT_BATCHES" default:"4"`

	// QueueWait is how long a queued batch waits for a processing slot (default: 10m)
	QueueWait time.Duration `env:"IMPORT_QUEUE_WAIT" default:"10m"`

	// BatchTimeout bounds the processing phase of a single batch (default: 30m)
	BatchTimeout time.Duration `env:"IMPORT_BATCH_TIMEOUT" default:"30m"`

	// MatchThreshold is the minimum fuzzy similarity for a service match (default: 0.90)
	MatchThreshold float64 `env:"IMPORT_MATCH_THRESHOLD" default:"0.90"`

	// DefaultDuration is used when neither the row nor its services give a duration (default: 60m)
	DefaultDuration time.Duration `env:"IMPORT_DEFAULT_DURATION" default:"60m"`

	// TimeZone is the IANA zone appointment dates and times are interpreted in (default: UTC)
	TimeZone string `env:"IMPORT_TIMEZONE" default:"UTC"`

	// DefaultCharset decodes delimited files that are not valid UTF-8 (default: windows-1250)
	DefaultCharset string `env:"IMPORT_DEFAULT_CHARSET" default:"windows-1250"`
}

// RetentionConfig controls how long parsed jobs and finished batches stay in memory.
type RetentionConfig struct {
	// JobTTL is how long an ingested file stays available for validate/start (default: 2h)
	JobTTL time.Duration `env:"RETENTION_JOB_TTL" default:"2h"`

	// BatchTTL is how long a finished batch stays pollable (default: 24h)
	BatchTTL time.Duration `env:"RETENTION_BATCH_TTL" default:"24h"`

	// Schedule is the cron spec for the eviction sweep (default: @every 10m)
	Schedule string `env:"RETENTION_SCHEDULE" default:"@every 10m"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for ingest and batch start endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey rejects API requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
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
