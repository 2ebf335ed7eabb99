// Package config loads filerift settings from environment variables with
// defaults, and validates them on startup so a misconfiguration fails before
// any file is read.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/JonMunkholm/filerift/internal/dialect"
	"github.com/JonMunkholm/filerift/internal/mapping"
	"github.com/JonMunkholm/filerift/internal/reader"
	"github.com/JonMunkholm/filerift/internal/typed"
)

// Config holds all application configuration.
type Config struct {
	Reader   ReaderConfig
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
}

// ReaderConfig holds the defaults for reading files.
type ReaderConfig struct {
	// Delimiter is the field separator; unset means detect it from a sample.
	// Accepts a character or a name such as "tab" or "pipe".
	Delimiter rune `env:"FILERIFT_DELIMITER"`

	// Quote is the quote character, "none" to disable (default: ")
	Quote rune `env:"FILERIFT_QUOTE" default:"dquote"`

	// AllowedDelimiters restricts detection to these characters, e.g. ",;|"
	AllowedDelimiters string `env:"FILERIFT_ALLOWED_DELIMITERS"`

	HasHeader   bool `env:"FILERIFT_HAS_HEADER" default:"true"`
	Trim        bool `env:"FILERIFT_TRIM" default:"false"`
	BlankToNull bool `env:"FILERIFT_BLANK_TO_NULL" default:"false"`

	// DateFormats are Go time layouts separated by ";" since layouts may
	// contain commas, e.g. "Jan 2, 2006;2006-01-02"
	DateFormats []string `env:"FILERIFT_DATE_FORMATS" sep:";"`

	IgnoreHeaderCase   bool `env:"FILERIFT_IGNORE_HEADER_CASE" default:"true"`
	IgnoreSpecialChars bool `env:"FILERIFT_IGNORE_SPECIAL_CHARS" default:"false"`
	CollectErrors      bool `env:"FILERIFT_COLLECT_ERRORS" default:"false"`

	// SampleSize is the number of lines read for detection (default: 20)
	SampleSize int `env:"FILERIFT_SAMPLE_SIZE" default:"20"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 127.0.0.1)
	Host string `env:"SERVER_HOST" default:"127.0.0.1"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// MaxUploadSize caps multipart uploads in bytes (default: 32MB)
	MaxUploadSize int64 `env:"SERVER_MAX_UPLOAD_SIZE" default:"33554432"`

	// PreviewRows is the number of rows returned by preview (default: 50)
	PreviewRows int `env:"SERVER_PREVIEW_ROWS" default:"50"`

	// MaxConcurrentUploads bounds uploads parsed at once (default: 4)
	MaxConcurrentUploads int `env:"SERVER_MAX_CONCURRENT_UPLOADS" default:"4"`

	// UploadWait is how long an upload waits for a free slot (default: 10s)
	UploadWait time.Duration `env:"SERVER_UPLOAD_WAIT" default:"10s"`

	// RateLimit is requests per minute per client, 0 disables (default: 100)
	RateLimit int `env:"SERVER_RATE_LIMIT" default:"100"`

	// TrustedProxies are CIDRs whose X-Real-IP and X-Forwarded-For headers
	// are honored, e.g. "10.0.0.0/8,127.0.0.1"
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// DatabaseConfig holds the PostgreSQL settings used by the load command.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Only load needs it.
	// Supports both DATABASE_URL and DB_URL env vars.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"4"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"0"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
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
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Dialect returns the configured dialect. ok is false when the delimiter is
// unset and must be detected.
func (c *ReaderConfig) Dialect() (d dialect.Dialect, ok bool) {
	if c.Delimiter == 0 {
		return dialect.Dialect{}, false
	}
	return dialect.Dialect{Delimiter: c.Delimiter, Quote: c.Quote}, true
}

// Detector returns a detector honoring AllowedDelimiters.
func (c *ReaderConfig) Detector() *dialect.Detector {
	return dialect.NewDetector([]rune(c.AllowedDelimiters)...)
}

// ReaderOptions converts the settings into row reader options.
func (c *ReaderConfig) ReaderOptions() reader.Options {
	return reader.Options{
		HasHeader:        c.HasHeader,
		Trim:             c.Trim,
		BlankToNull:      c.BlankToNull,
		IgnoreHeaderCase: c.IgnoreHeaderCase,
		DateFormats:      c.DateFormats,
	}
}

// AutoOptions converts the settings into auto-mapping options.
func (c *ReaderConfig) AutoOptions() mapping.AutoOptions {
	return mapping.AutoOptions{
		CaseSensitive:      !c.IgnoreHeaderCase,
		IgnoreSpecialChars: c.IgnoreSpecialChars,
	}
}

// Policy returns the typed reader failure policy.
func (c *ReaderConfig) Policy() typed.Policy {
	if c.CollectErrors {
		return typed.CollectAndContinue
	}
	return typed.FailFast
}
