package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	// Secrets (from .env)
	APIKey          string
	WebhookURL      string `validate:"omitempty,url"`
	AlertName       string
	CORSAllowOrigin string

	// HTTP
	APIPort int `validate:"min=1,max=65535"`

	// Logging
	LogLevel  string `validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	LogFormat string `validate:"oneof=json text"`

	// Database
	DBDriver   string `validate:"oneof=postgres sqlite"`
	DBHost     string
	DBPort     int `validate:"min=1,max=65535"`
	DBName     string
	DBUser     string
	DBPassword string
	SQLitePath string

	// Rollup queries
	QueryTimeoutSeconds int `validate:"min=0"`
	QueryRetryAttempts  int `validate:"min=1,max=10"`

	// Result cache
	CacheTTLSeconds           int  `validate:"min=1"`
	CacheMaxEntries           int  `validate:"min=1"`
	CacheRecordStats          bool
	CacheShards               int `validate:"min=1,max=256"`
	CacheSweepIntervalSeconds int `validate:"min=0"`

	// Paging
	DefaultPageSize int `validate:"min=1"`
	MaxPageSize     int `validate:"min=1"`

	// Comparison band
	OutperformRatio   float64 `validate:"gt=0"`
	UnderperformRatio float64 `validate:"gt=0"`

	// Request limits (0 disables)
	MaxSymbolsPerRequest int `validate:"min=0"`
	MaxRangeDays         int `validate:"min=0"`

	// Alerting
	AlertMinIntervalSeconds int `validate:"min=0"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Secrets
		APIKey:          envStr("API_KEY", ""),
		WebhookURL:      envStr("WEBHOOK_URL", ""),
		AlertName:       envStr("ALERT_NAME", "TrahnAnalytics"),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		// HTTP
		APIPort: envInt("API_PORT", 3001),

		// Logging
		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "json"),

		// Database
		DBDriver:   strings.ToLower(envStr("DB_DRIVER", "postgres")),
		DBHost:     envStr("DB_HOST", "localhost"),
		DBPort:     envInt("DB_PORT", 5432),
		DBName:     envStr("DB_NAME", "market_analytics"),
		DBUser:     envStr("DB_USER", ""),
		DBPassword: envStr("DB_PASSWORD", ""),
		SQLitePath: envStr("SQLITE_PATH", "rollups.db"),

		// Rollup queries
		QueryTimeoutSeconds: envInt("QUERY_TIMEOUT_SECONDS", 10),
		QueryRetryAttempts:  envInt("QUERY_RETRY_ATTEMPTS", 2),

		// Result cache
		CacheTTLSeconds:           envInt("CACHE_TTL_SECONDS", 300),
		CacheMaxEntries:           envInt("CACHE_MAX_ENTRIES", 10000),
		CacheRecordStats:          envBool("CACHE_RECORD_STATS", true),
		CacheShards:               envInt("CACHE_SHARDS", 16),
		CacheSweepIntervalSeconds: envInt("CACHE_SWEEP_INTERVAL_SECONDS", 60),

		// Paging
		DefaultPageSize: envInt("DEFAULT_PAGE_SIZE", 100),
		MaxPageSize:     envInt("MAX_PAGE_SIZE", 1000),

		// Comparison band
		OutperformRatio:   envFloat("OUTPERFORM_RATIO", 1.10),
		UnderperformRatio: envFloat("UNDERPERFORM_RATIO", 0.90),

		// Request limits
		MaxSymbolsPerRequest: envInt("MAX_SYMBOLS_PER_REQUEST", 50),
		MaxRangeDays:         envInt("MAX_RANGE_DAYS", 0),

		// Alerting
		AlertMinIntervalSeconds: envInt("ALERT_MIN_INTERVAL_SECONDS", 60),
	}

	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and the cross-field rules, and reports
// every problem at once. Soft problems are returned as warnings.
func (c *Config) Validate() (warnings []string, err error) {
	var errs []string

	if verr := validate.Struct(c); verr != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(verr, &fieldErrs) {
			return nil, fmt.Errorf("config validation: %w", verr)
		}
		for _, fe := range fieldErrs {
			errs = append(errs, fmt.Sprintf("%s: failed %q (value %v)", fe.Field(), fe.Tag()+param(fe.Param()), fe.Value()))
		}
	}

	if c.DefaultPageSize > c.MaxPageSize {
		errs = append(errs, fmt.Sprintf("DEFAULT_PAGE_SIZE (%d) exceeds MAX_PAGE_SIZE (%d)", c.DefaultPageSize, c.MaxPageSize))
	}
	if c.UnderperformRatio >= c.OutperformRatio {
		errs = append(errs, fmt.Sprintf("UNDERPERFORM_RATIO (%.2f) must be below OUTPERFORM_RATIO (%.2f)", c.UnderperformRatio, c.OutperformRatio))
	}
	if c.DBDriver == "postgres" && c.DBUser == "" {
		errs = append(errs, "DB_USER is required for the postgres driver")
	}
	if c.DBDriver == "sqlite" && c.SQLitePath == "" {
		errs = append(errs, "SQLITE_PATH is required for the sqlite driver")
	}

	if c.APIKey == "" {
		warnings = append(warnings, "API_KEY not set, REST API has no authentication")
	}
	if c.WebhookURL == "" {
		warnings = append(warnings, "WEBHOOK_URL not set, degraded responses are only logged")
	}
	if !c.CacheRecordStats {
		warnings = append(warnings, "CACHE_RECORD_STATS disabled, cache metrics will read zero")
	}

	if len(errs) > 0 {
		return warnings, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return warnings, nil
}

func (c *Config) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Market Analytics Configuration ===")
	fmt.Fprintf(w, "API Port: %d\n", c.APIPort)
	fmt.Fprintf(w, "API Key: %s\n", boolLabel(c.APIKey != "", "configured", "not set"))
	fmt.Fprintln(w, "--------------------------------------")
	fmt.Fprintf(w, "Database: %s\n", c.DBDriver)
	if c.DBDriver == "sqlite" {
		fmt.Fprintf(w, "  Path: %s\n", c.SQLitePath)
	} else {
		fmt.Fprintf(w, "  Host: %s:%d/%s\n", c.DBHost, c.DBPort, c.DBName)
	}
	fmt.Fprintf(w, "  Query timeout: %s (%d attempts)\n", c.QueryTimeout(), c.QueryRetryAttempts)
	fmt.Fprintln(w, "--------------------------------------")
	fmt.Fprintln(w, "Result Cache:")
	fmt.Fprintf(w, "  TTL: %s\n", c.CacheTTL())
	fmt.Fprintf(w, "  Max entries: %d (%d shards)\n", c.CacheMaxEntries, c.CacheShards)
	fmt.Fprintf(w, "  Stats: %v\n", c.CacheRecordStats)
	fmt.Fprintf(w, "  Sweep: every %s\n", c.CacheSweepInterval())
	fmt.Fprintln(w, "--------------------------------------")
	fmt.Fprintf(w, "Paging: default %d, max %d\n", c.DefaultPageSize, c.MaxPageSize)
	fmt.Fprintf(w, "Comparison band: %.2fx - %.2fx mean\n", c.UnderperformRatio, c.OutperformRatio)
	fmt.Fprintf(w, "Alerts: %s\n", boolLabel(c.WebhookURL != "", "webhook", "log only"))
	fmt.Fprintln(w, "======================================")
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c *Config) CacheSweepInterval() time.Duration {
	return time.Duration(c.CacheSweepIntervalSeconds) * time.Second
}

func (c *Config) AlertMinInterval() time.Duration {
	return time.Duration(c.AlertMinIntervalSeconds) * time.Second
}

func (c *Config) MaxRange() time.Duration {
	return time.Duration(c.MaxRangeDays) * 24 * time.Hour
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

func param(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
