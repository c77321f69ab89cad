// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// DispatchConfig provides settings for the action dispatcher.
type DispatchConfig interface {
	// GetSchedulingLocation returns the timezone used for daily send windows.
	// Daily caps and next-day rescheduling are computed in this location.
	GetSchedulingLocation() *time.Location
	// GetDispatchPollInterval returns how often the due-action poller runs.
	GetDispatchPollInterval() time.Duration
	// GetDispatchBatchSize returns how many due actions one poll may claim.
	GetDispatchBatchSize() int
	// GetRetryBackoffBase returns the base delay for failed-attempt backoff.
	GetRetryBackoffBase() time.Duration
	// GetRetryBackoffCap returns the upper bound on backoff delay.
	GetRetryBackoffCap() time.Duration
	// GetDailyLimitJitterPct returns the maximum downward jitter, in percent,
	// applied when fixing an account's daily limit for the day. Zero disables.
	GetDailyLimitJitterPct() int
}

// WarmupConfig provides settings for warm-up ramp policies.
type WarmupConfig interface {
	// GetWarmupPolicyPath returns the optional YAML ramp policy file.
	// Empty means the built-in per-resource-type ramps are used.
	GetWarmupPolicyPath() string
}

// HealthConfig provides settings for the resource health monitor.
type HealthConfig interface {
	GetHealthRecomputeInterval() time.Duration
}

// SMTPConfig provides settings for the SMTP delivery provider.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetSMTPFromName() string
	IsSMTPEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                     string
	HTTPAddr                string
	DatabaseURL             string
	MigrationsDir           string
	JWTAccessSecret         string
	CORSAllowAll            bool
	CORSOrigins             []string
	CORSAllowCreds          bool
	RedisURL                string
	RedisTLSInsecure        bool
	AsynqQueueName          string
	AsynqConcurrency        int
	SchedulingTimezone      string
	DispatchPollInterval    time.Duration
	DispatchBatchSize       int
	RetryBackoffBase        time.Duration
	RetryBackoffCap         time.Duration
	DailyLimitJitterPct     int
	WarmupPolicyPath        string
	HealthRecomputeInterval time.Duration
	SMTPHost                string
	SMTPPort                int
	SMTPUsername            string
	SMTPPassword            string
	SMTPFromName            string

	schedulingLocation *time.Location
}

// Load reads configuration from environment variables, loading a .env file
// first when present. Missing required values return an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		MigrationsDir:           getEnv("MIGRATIONS_DIR", "migrations"),
		JWTAccessSecret:         os.Getenv("JWT_ACCESS_SECRET"),
		CORSAllowAll:            getBoolEnv("CORS_ALLOW_ALL", false),
		CORSOrigins:             splitAndTrim(os.Getenv("CORS_ORIGINS")),
		CORSAllowCreds:          getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
		RedisURL:                os.Getenv("REDIS_URL"),
		RedisTLSInsecure:        getBoolEnv("REDIS_TLS_INSECURE", false),
		AsynqQueueName:          getEnv("ASYNQ_QUEUE", "dispatch"),
		AsynqConcurrency:        getIntEnv("ASYNQ_CONCURRENCY", 10),
		SchedulingTimezone:      getEnv("SCHEDULING_TIMEZONE", "UTC"),
		DispatchPollInterval:    getDurationEnv("DISPATCH_POLL_INTERVAL", 2*time.Second),
		DispatchBatchSize:       getIntEnv("DISPATCH_BATCH_SIZE", 50),
		RetryBackoffBase:        getDurationEnv("RETRY_BACKOFF_BASE", 5*time.Minute),
		RetryBackoffCap:         getDurationEnv("RETRY_BACKOFF_CAP", 6*time.Hour),
		DailyLimitJitterPct:     getIntEnv("DAILY_LIMIT_JITTER_PCT", 0),
		WarmupPolicyPath:        os.Getenv("WARMUP_POLICY_PATH"),
		HealthRecomputeInterval: getDurationEnv("HEALTH_RECOMPUTE_INTERVAL", time.Hour),
		SMTPHost:                os.Getenv("SMTP_HOST"),
		SMTPPort:                getIntEnv("SMTP_PORT", 587),
		SMTPUsername:            os.Getenv("SMTP_USERNAME"),
		SMTPPassword:            os.Getenv("SMTP_PASSWORD"),
		SMTPFromName:            getEnv("SMTP_FROM_NAME", "Outreach"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}

	loc, err := time.LoadLocation(cfg.SchedulingTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULING_TIMEZONE %q: %w", cfg.SchedulingTimezone, err)
	}
	cfg.schedulingLocation = loc

	return cfg, nil
}

// =============================================================================
// Interface implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string    { return c.DatabaseURL }
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

func (c *Config) GetRedisURL() string      { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

func (c *Config) GetSchedulingLocation() *time.Location {
	if c.schedulingLocation == nil {
		return time.UTC
	}
	return c.schedulingLocation
}
func (c *Config) GetDispatchPollInterval() time.Duration { return c.DispatchPollInterval }
func (c *Config) GetDispatchBatchSize() int              { return c.DispatchBatchSize }
func (c *Config) GetRetryBackoffBase() time.Duration     { return c.RetryBackoffBase }
func (c *Config) GetRetryBackoffCap() time.Duration      { return c.RetryBackoffCap }
func (c *Config) GetDailyLimitJitterPct() int            { return c.DailyLimitJitterPct }

func (c *Config) GetWarmupPolicyPath() string              { return c.WarmupPolicyPath }
func (c *Config) GetHealthRecomputeInterval() time.Duration { return c.HealthRecomputeInterval }

func (c *Config) GetSMTPHost() string     { return c.SMTPHost }
func (c *Config) GetSMTPPort() int        { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string { return c.SMTPPassword }
func (c *Config) GetSMTPFromName() string { return c.SMTPFromName }
func (c *Config) IsSMTPEnabled() bool     { return c.SMTPHost != "" }

// =============================================================================
// Helpers
// =============================================================================

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getIntEnv(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
