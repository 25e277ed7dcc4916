// Package config provides centralized configuration management for the importer.
// Values come from environment variables with defaults declared as struct tags,
// and the whole configuration is validated once at startup.
package config

import (
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Remote   RemoteConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is 0 by default so progress streams stay open
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// TrustedProxies is a comma-separated list of CIDRs or IPs whose
	// X-Real-IP / X-Forwarded-For headers are honored (default: none)
	TrustedProxies string `env:"SERVER_TRUSTED_PROXIES"`
}

// DatabaseConfig holds connection settings for the Postgres-backed store.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ImportConfig holds staging and commit settings.
type ImportConfig struct {
	// BatchSize is the number of rows submitted per commit request (default: 100)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"100"`

	// MaxFileSize is the maximum accepted upload in bytes (default: 25MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"26214400"`

	// MaxSessions caps concurrently staged imports (default: 8)
	MaxSessions int `env:"IMPORT_MAX_SESSIONS" default:"8"`

	// SessionWait is how long a new session waits for a free slot (default: 5s)
	SessionWait time.Duration `env:"IMPORT_SESSION_WAIT" default:"5s"`

	// SessionTTL is how long an idle staged import is kept (default: 30m)
	SessionTTL time.Duration `env:"IMPORT_SESSION_TTL" default:"30m"`

	// Timeout bounds a single execute run (default: 10m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`

	// DefaultRecordType is used when a file's columns match no signature
	DefaultRecordType string `env:"IMPORT_DEFAULT_RECORD_TYPE" default:"people"`

	SkipInvalidRows bool   `env:"IMPORT_SKIP_INVALID_ROWS" default:"true"`
	DateFormat      string `env:"IMPORT_DATE_FORMAT" default:"YYYY-MM-DD"`
}

// RemoteConfig points the pipeline at remote services.
// Both URLs are optional; when empty the in-process implementations are used.
type RemoteConfig struct {
	// StoreURL is the base URL of a remote backing store (e.g. http://host/api/store)
	StoreURL string `env:"REMOTE_STORE_URL"`

	// ParseURL is the spreadsheet-parse endpoint tried before local parsing
	ParseURL string `env:"REMOTE_PARSE_URL"`

	Timeout time.Duration `env:"REMOTE_TIMEOUT" default:"30s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// TrustedProxyList splits TrustedProxies into its non-empty entries.
func (c *ServerConfig) TrustedProxyList() []string {
	var out []string
	for _, p := range strings.Split(c.TrustedProxies, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
