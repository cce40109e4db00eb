package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Config struct {
	// HTTP Server
	Port           string
	TrustedProxies []string

	// Logging
	LogLevel string

	// Ledger
	DataBackend  string
	SQLiteDBPath string
	StoreTimeout time.Duration
	SeedCSVPath  string

	// AMQP
	AMQPURL         string
	AMQPExchange    string
	IngestQueue     string
	AlertRoutingKey string

	// Access governor
	RedisURL           string
	RateLimitPerMinute int
	RateLimitWindow    time.Duration

	// Cache layer
	SummaryCacheTTL time.Duration
	QueryCacheTTL   time.Duration
	CacheMaxEntries int

	// Threshold monitor
	ServiceLimitsFile string
	WarnFraction      float64
	CriticalFraction  float64
	MonitorSchedule   string
}

func Load() *Config {
	cfg := &Config{
		Port:           getEnv("PORT", "8081"),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/boothmetrics.db"),
		StoreTimeout: getEnvDuration("STORE_TIMEOUT", 5*time.Second),
		SeedCSVPath:  getEnv("SEED_CSV_PATH", ""),

		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "boothmetrics"),
		IngestQueue:     getEnv("INGEST_QUEUE", "ingest_transactions"),
		AlertRoutingKey: getEnv("ALERT_ROUTING_KEY", "alerts.service_limit"),

		RedisURL:           getEnv("REDIS_URL", ""),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 100),
		RateLimitWindow:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		SummaryCacheTTL: getEnvDuration("CACHE_TTL_SUMMARY", 30*time.Second),
		QueryCacheTTL:   getEnvDuration("CACHE_TTL_QUERY", 60*time.Second),
		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 256),

		ServiceLimitsFile: getEnv("SERVICE_LIMITS_FILE", ""),
		WarnFraction:      getEnvFloat("ALERT_WARN_FRACTION", 0.90),
		CriticalFraction:  getEnvFloat("ALERT_CRITICAL_FRACTION", 1.00),
		MonitorSchedule:   getEnv("MONITOR_SCHEDULE", "@every 1m"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.StoreTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid store timeout %v: must be positive", c.StoreTimeout))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.IngestQueue == "" {
			errors = append(errors, "ingest queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RedisURL != "" {
		if parsedURL, err := url.Parse(c.RedisURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Redis URL '%s': %v", c.RedisURL, err))
		} else if parsedURL.Scheme != "redis" && parsedURL.Scheme != "rediss" {
			errors = append(errors, fmt.Sprintf("invalid Redis URL scheme '%s': must be 'redis' or 'rediss'", parsedURL.Scheme))
		}
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}
	if c.RateLimitWindow < time.Second {
		errors = append(errors, fmt.Sprintf("invalid rate limit window %v: must be at least 1 second", c.RateLimitWindow))
	}

	if c.SummaryCacheTTL <= 0 || c.QueryCacheTTL <= 0 {
		errors = append(errors, "cache TTLs must be positive")
	}
	if c.CacheMaxEntries < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must not be negative", c.CacheMaxEntries))
	}

	if c.WarnFraction <= 0 || c.WarnFraction > 1 {
		errors = append(errors, fmt.Sprintf("invalid warning fraction %v: must be in (0, 1]", c.WarnFraction))
	}
	if c.CriticalFraction < c.WarnFraction {
		errors = append(errors, fmt.Sprintf("invalid critical fraction %v: must not be below the warning fraction", c.CriticalFraction))
	}
	if _, err := cron.ParseStandard(c.MonitorSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid monitor schedule '%s': %v", c.MonitorSchedule, err))
	}

	if c.ServiceLimitsFile != "" {
		if _, err := os.Stat(c.ServiceLimitsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("service limits file does not exist: %s", c.ServiceLimitsFile))
		}
	}
	if c.SeedCSVPath != "" {
		if _, err := os.Stat(c.SeedCSVPath); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("seed CSV file does not exist: %s", c.SeedCSVPath))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// RequireAMQP is the extra check of processes that cannot run without a broker.
func (c *Config) RequireAMQP() error {
	if c.AMQPURL == "" {
		return fmt.Errorf("configuration validation failed:\n- AMQP_URL is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
