package config

import (
	"fmt"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/filerift/internal/dialect"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// envTag is the parsed set of loader tags on one field.
type envTag struct {
	name     string
	alt      string
	def      string
	sep      string
	required bool
}

func parseTag(f reflect.StructField) envTag {
	return envTag{
		name:     f.Tag.Get("env"),
		alt:      f.Tag.Get("envAlt"),
		def:      f.Tag.Get("default"),
		sep:      f.Tag.Get("sep"),
		required: f.Tag.Get("required") == "true",
	}
}

// value returns the raw setting. An empty variable counts as unset.
func (t envTag) value() (string, error) {
	for _, name := range []string{t.name, t.alt} {
		if name == "" {
			continue
		}
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	if t.required {
		return "", fmt.Errorf("required environment variable %s is not set", t.name)
	}
	return t.def, nil
}

// loadStruct fills every tagged field of v, descending into the section
// structs.
func loadStruct(v reflect.Value) error {
	t := v.Type()
	for i := range t.NumField() {
		sf, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if sf.Type.Kind() == reflect.Struct {
			if err := loadStruct(fv); err != nil {
				return err
			}
			continue
		}

		tag := parseTag(sf)
		if tag.name == "" {
			continue
		}
		raw, err := tag.value()
		if err != nil {
			return err
		}
		if raw == "" {
			continue
		}
		if err := setField(fv, raw, tag.sep); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", tag.name, raw, err)
		}
	}
	return nil
}

// setField parses raw into field. rune fields go through dialect.ParseRune
// so names such as "tab" work. Slices split on sep, or a comma.
func setField(field reflect.Value, raw, sep string) error {
	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))

	case field.Kind() == reflect.Int32:
		r, err := dialect.ParseRune(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(r))

	case field.Kind() == reflect.Int || field.Kind() == reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)

	case field.Kind() == reflect.String:
		field.SetString(raw)

	case field.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		if sep == "" {
			sep = ","
		}
		var items []string
		for _, p := range strings.Split(raw, sep) {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Type())
	}
	return nil
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string
	errs = append(errs, c.Reader.problems()...)
	errs = append(errs, c.Database.problems()...)
	errs = append(errs, c.Server.problems()...)
	errs = append(errs, c.Logging.problems()...)

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *ReaderConfig) problems() []string {
	var errs []string
	if c.Delimiter != 0 && c.Delimiter == c.Quote {
		errs = append(errs, "FILERIFT_DELIMITER and FILERIFT_QUOTE must differ")
	}
	if c.Delimiter == '\n' || c.Delimiter == '\r' {
		errs = append(errs, "FILERIFT_DELIMITER cannot be a line terminator")
	}
	if c.SampleSize <= 0 {
		errs = append(errs, "FILERIFT_SAMPLE_SIZE must be positive")
	}
	return errs
}

func (c *DatabaseConfig) problems() []string {
	var errs []string
	switch {
	case c.MaxConns <= 0:
		errs = append(errs, "DB_MAX_CONNS must be positive")
	case c.MaxConns < c.MinConns:
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.MaxConns, c.MinConns))
	}
	if c.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	return errs
}

func (c *ServerConfig) problems() []string {
	var errs []string
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Port))
	}
	if c.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	positive := []struct {
		name  string
		value int64
	}{
		{"SERVER_MAX_UPLOAD_SIZE", c.MaxUploadSize},
		{"SERVER_MAX_CONCURRENT_UPLOADS", int64(c.MaxConcurrentUploads)},
		{"SERVER_PREVIEW_ROWS", int64(c.PreviewRows)},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, p.name+" must be positive")
		}
	}
	if c.RateLimit < 0 {
		errs = append(errs, "SERVER_RATE_LIMIT must be non-negative")
	}
	return errs
}

func (c *LoggingConfig) problems() []string {
	var errs []string
	if !slices.Contains(logLevels, strings.ToLower(c.Level)) {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: %s", c.Level, strings.Join(logLevels, ", ")))
	}
	if !slices.Contains(logFormats, strings.ToLower(c.Format)) {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: %s", c.Format, strings.Join(logFormats, ", ")))
	}
	return errs
}

// String summarizes the config for logging with the database URL masked.
func (c *Config) String() string {
	delim := "detect"
	if d, ok := c.Reader.Dialect(); ok {
		delim = d.String()
	}

	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Reader: {Dialect: %s, HasHeader: %v, Trim: %v, BlankToNull: %v, Policy: %s}, ",
		delim, c.Reader.HasHeader, c.Reader.Trim, c.Reader.BlankToNull, c.Reader.Policy()))
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
