package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load reads configuration from the process environment, applies defaults
// and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with an explicit variable source. Every missing required
// variable and every unparsable value is reported, not just the first.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}

	l := loader{lookup: lookup}
	l.fill(reflect.ValueOf(cfg).Elem())
	if err := errors.Join(l.errs...); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

type loader struct {
	lookup LookupFunc
	errs   []error
}

var (
	durationType = reflect.TypeOf(time.Duration(0))
	timeType     = reflect.TypeOf(time.Time{})
)

// fill walks the struct tree and sets every field tagged with env.
func (l *loader) fill(v reflect.Value) {
	t := v.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		fv := v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct && field.Type != timeType {
			l.fill(fv)
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}

		value, ok := l.get(name, field.Tag.Get("envAlt"))
		if !ok {
			if field.Tag.Get("required") == "true" {
				l.errs = append(l.errs, fmt.Errorf("required environment variable %s is not set", name))
				continue
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fv, value); err != nil {
			l.errs = append(l.errs, fmt.Errorf("invalid value for %s=%q: %w", name, value, err))
		}
	}
}

// get returns the first non-empty value of name or alt.
func (l *loader) get(name, alt string) (string, bool) {
	for _, key := range []string{name, alt} {
		if key == "" {
			continue
		}
		if v, ok := l.lookup(key); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float: %w", err)
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		field.Set(reflect.ValueOf(splitList(value)))
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// problems collects validation failures.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

// Validate checks that the configuration is usable. The error lists every
// failure.
func (c *Config) Validate() error {
	var p problems
	c.Database.validate(&p)
	c.Server.validate(&p)
	c.Import.validate(&p)
	c.Retention.validate(&p)
	c.Rate.validate(&p)
	c.Security.validate(&p)
	c.Logging.validate(&p)

	if len(p) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
	}
	return nil
}

func (d *DatabaseConfig) validate(p *problems) {
	if d.URL == "" {
		p.addf("DATABASE_URL is required")
	}
	if d.MaxConns <= 0 {
		p.addf("DB_MAX_CONNS must be positive")
	}
	if d.MinConns < 0 {
		p.addf("DB_MIN_CONNS must be non-negative")
	}
	if d.MaxConns < d.MinConns {
		p.addf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", d.MaxConns, d.MinConns)
	}
}

func (s *ServerConfig) validate(p *problems) {
	if s.Port <= 0 || s.Port > 65535 {
		p.addf("SERVER_PORT (%d) must be 1-65535", s.Port)
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.IdleTimeout < 0 || s.RequestTimeout < 0 {
		p.addf("SERVER_*_TIMEOUT values must be non-negative")
	}
	if s.ShutdownTimeout <= 0 {
		p.addf("SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
}

func (im *ImportConfig) validate(p *problems) {
	positive := []struct {
		name string
		ok   bool
	}{
		{"IMPORT_MAX_FILE_SIZE", im.MaxFileSize > 0},
		{"IMPORT_WORKERS", im.Workers > 0},
		{"IMPORT_MAX_CONCURRENT_BATCHES", im.MaxConcurrentBatches > 0},
		{"IMPORT_QUEUE_WAIT", im.QueueWait > 0},
		{"IMPORT_BATCH_TIMEOUT", im.BatchTimeout > 0},
		{"IMPORT_DEFAULT_DURATION", im.DefaultDuration > 0},
	}
	for _, f := range positive {
		if !f.ok {
			p.addf("%s must be positive", f.name)
		}
	}
	if im.PreviewRows < 0 {
		p.addf("IMPORT_PREVIEW_ROWS must be non-negative")
	}
	if im.ErrorSamples < 0 {
		p.addf("IMPORT_ERROR_SAMPLES must be non-negative")
	}
	if im.MatchThreshold <= 0 || im.MatchThreshold > 1 {
		p.addf("IMPORT_MATCH_THRESHOLD (%v) must be in (0, 1]", im.MatchThreshold)
	}
	if _, err := time.LoadLocation(im.TimeZone); err != nil {
		p.addf("IMPORT_TIMEZONE (%q) is not a known time zone", im.TimeZone)
	}
}

func (r *RetentionConfig) validate(p *problems) {
	if r.JobTTL <= 0 {
		p.addf("RETENTION_JOB_TTL must be positive")
	}
	if r.BatchTTL <= 0 {
		p.addf("RETENTION_BATCH_TTL must be positive")
	}
	if _, err := cron.ParseStandard(r.Schedule); err != nil {
		p.addf("RETENTION_SCHEDULE (%q) is not a valid cron spec", r.Schedule)
	}
}

func (r *RateLimitConfig) validate(p *problems) {
	if !r.Enabled {
		return
	}
	if r.RequestsPerMinute <= 0 {
		p.addf("RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if r.UploadLimit <= 0 {
		p.addf("RATE_LIMIT_UPLOAD must be positive when rate limiting is enabled")
	}
}

func (s *SecurityConfig) validate(p *problems) {
	if s.RequireAPIKey && len(s.APIKeys) == 0 {
		p.addf("REQUIRE_API_KEY is set but API_KEYS is empty")
	}
}

func (l *LoggingConfig) validate(p *problems) {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		p.addf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		p.addf("LOG_FORMAT (%q) must be one of: text, json", l.Format)
	}
}

// String returns the configuration with secrets masked, for logging.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Server: {Addr: %q}, Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, "+
		"Import: {MaxFileSize: %d, Workers: %d, MaxConcurrentBatches: %d, MatchThreshold: %.2f, TimeZone: %q}, "+
		"Retention: {JobTTL: %s, BatchTTL: %s, Schedule: %q}, Rate: {Enabled: %v, RequestsPerMinute: %d, UploadLimit: %d}, "+
		"Security: {RequireAPIKey: %v, APIKeys: %d configured, TrustedProxies: %d}, Logging: {Level: %q, Format: %q}}",
		c.Server.Addr(),
		c.Database.MaxConns, c.Database.MinConns,
		c.Import.MaxFileSize, c.Import.Workers, c.Import.MaxConcurrentBatches, c.Import.MatchThreshold, c.Import.TimeZone,
		c.Retention.JobTTL, c.Retention.BatchTTL, c.Retention.Schedule,
		c.Rate.Enabled, c.Rate.RequestsPerMinute, c.Rate.UploadLimit,
		c.Security.RequireAPIKey, len(c.Security.APIKeys), len(c.Security.TrustedProxies),
		c.Logging.Level, c.Logging.Format,
	)
}
