// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// CacheBackend selects the dashboard cache implementation.
type CacheBackend string

const (
	// CacheBackendMemory keeps aggregates in-process. The default: the
	// event log is the only durable truth, a cache restart just recomputes.
	CacheBackendMemory CacheBackend = "memory"

	// CacheBackendRedis shares aggregates across replicas.
	CacheBackendRedis CacheBackend = "redis"
)

// Config holds all application configuration.
type Config struct {
	// Application
	App AppConfig

	// Storage (append-only event log)
	Storage StorageConfig

	// Privacy (student identifier anonymization)
	Privacy PrivacyConfig

	// Cache (dashboard aggregates)
	Cache CacheConfig

	// Redis (used when Cache.Backend is redis)
	Redis RedisConfig

	// HTTP server
	HTTP HTTPConfig

	// Scheduler (background jobs)
	Scheduler SchedulerConfig

	// Export (external analytics mirror)
	Export ExportConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string
	Environment Environment
	Debug       bool
	Version     string

	// LogLevel: debug, info, warn, error.
	LogLevel string

	// Graceful shutdown timeout.
	ShutdownTimeout time.Duration
}

// StorageConfig holds event log settings.
type StorageConfig struct {
	// Dir is the directory holding the append-only log file.
	Dir string

	// RetentionDays bounds how long events are kept. Zero disables purging.
	RetentionDays int
}

// PrivacyConfig holds anonymization settings.
type PrivacyConfig struct {
	// Salt keys the student identifier hash. Must stay stable across
	// restarts or histories fracture into unrelated actors.
	Salt string
}

// CacheConfig selects and tunes the dashboard cache.
type CacheConfig struct {
	Backend CacheBackend
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Addr returns the host:port address.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	RateLimitPerMinute int
}

// SchedulerConfig holds background job settings.
type SchedulerConfig struct {
	// Enabled turns the in-process scheduler on.
	Enabled bool

	// RetentionSweepInterval is how often expired events are purged.
	RetentionSweepInterval time.Duration

	// CacheWarmupInterval is how often hot aggregates are precomputed.
	// Zero disables warmup.
	CacheWarmupInterval time.Duration
}

// ExportConfig holds the external analytics mirror settings.
type ExportConfig struct {
	// URL of the external collector. Empty disables export.
	URL string

	// AuthToken is sent as a bearer token when set.
	AuthToken string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		App:       loadAppConfig(),
		Storage:   loadStorageConfig(),
		Privacy:   loadPrivacyConfig(),
		Cache:     loadCacheConfig(),
		Redis:     loadRedisConfig(),
		HTTP:      loadHTTPConfig(),
		Scheduler: loadSchedulerConfig(),
		Export:    loadExportConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func loadAppConfig() AppConfig {
	env := Environment(getEnv("APP_ENV", "development"))
	return AppConfig{
		Name:            getEnv("APP_NAME", "edupulse-insights"),
		Environment:     env,
		Debug:           env == EnvDevelopment || getEnvBool("APP_DEBUG", false),
		Version:         getEnv("APP_VERSION", "0.1.0"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		Dir:           getEnv("STORAGE_DIR", "./data"),
		RetentionDays: getEnvInt("STORAGE_RETENTION_DAYS", 180),
	}
}

func loadPrivacyConfig() PrivacyConfig {
	return PrivacyConfig{
		Salt: getEnv("PRIVACY_SALT", ""),
	}
}

func loadCacheConfig() CacheConfig {
	backend := CacheBackend(strings.ToLower(getEnv("CACHE_BACKEND", string(CacheBackendMemory))))
	return CacheConfig{Backend: backend}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Host:         getEnv("REDIS_HOST", "localhost"),
		Port:         getEnvInt("REDIS_PORT", 6379),
		Password:     getEnv("REDIS_PASSWORD", ""),
		DB:           getEnvInt("REDIS_DB", 0),
		PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
		MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
	}
}

func loadHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Host:               getEnv("HTTP_HOST", "0.0.0.0"),
		Port:               getEnvInt("HTTP_PORT", 8080),
		ReadTimeout:        getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       getEnvDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:        getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		RateLimitPerMinute: getEnvInt("HTTP_RATE_LIMIT_PER_MINUTE", 300),
	}
}

func loadSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:                getEnvBool("SCHEDULER_ENABLED", true),
		RetentionSweepInterval: getEnvDuration("SCHEDULER_RETENTION_INTERVAL", 24*time.Hour),
		CacheWarmupInterval:    getEnvDuration("SCHEDULER_WARMUP_INTERVAL", 0),
	}
}

func loadExportConfig() ExportConfig {
	return ExportConfig{
		URL:       getEnv("EXPORT_URL", ""),
		AuthToken: getEnv("EXPORT_AUTH_TOKEN", ""),
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Storage.Dir == "" {
		return fmt.Errorf("STORAGE_DIR must not be empty")
	}
	if c.Storage.RetentionDays < 0 {
		return fmt.Errorf("STORAGE_RETENTION_DAYS must not be negative")
	}
	if c.App.Environment == EnvProduction && c.Privacy.Salt == "" {
		return fmt.Errorf("PRIVACY_SALT is required in production")
	}
	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.Cache.Backend)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP_PORT %d out of range", c.HTTP.Port)
	}
	return nil
}

// IsProduction reports whether the app runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// ─────────────────────────────────────────────────────────────────────────────
// Environment helpers
// ─────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
