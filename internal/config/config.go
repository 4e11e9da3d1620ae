package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Tenancy   TenancyConfig
	S3        S3Config
	Redis     RedisConfig
	Cache     CacheConfig
	Sentry    SentryConfig
	Janitor   JanitorConfig
	RateLimit RateLimitConfig
	Logger    LoggerConfig
	CORS      CORSConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port      string
	GinMode   string
	TestImage string // path of the image used by /elb-health/ and /test/*
}

// TenancyConfig selects how customers are resolved
type TenancyConfig struct {
	Domain          string // stripped from the Host header to get the customer key
	MultiCustomer   bool
	SecretsBucket   string // holds credentials.json in multi customer mode
	DefaultCustomer string
}

// S3Config holds the single customer bucket and the credentials used
// to read the secrets bucket
type S3Config struct {
	Bucket      string
	WriteBucket string
	Region      string
	EndpointURL string // set for S3-compatible stores
	AccessKey   string
	SecretKey   string
}

// RedisConfig holds Redis database configuration
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// CacheConfig configures the derivative index.
// Supports three backend types:
// - "none": every exists check goes to the object store
// - "redis": remembers derived keys in Redis
// - "badger": remembers derived keys in an embedded BadgerDB
type CacheConfig struct {
	Type      string
	Directory string        // only used when type=badger
	TTL       time.Duration // how long a derived key is trusted without a HEAD
}

// SentryConfig holds error reporting configuration
type SentryConfig struct {
	DSN         string
	Environment string
}

// JanitorConfig controls the temp file sweep run before each derivation
type JanitorConfig struct {
	Glob   string
	MaxAge time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Derive int // requests per minute per client on the derivation entry, 0 disables
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json", "console"
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	Enabled         bool
	AllowAllOrigins bool
	AllowedOrigins  []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port:      getEnv("PORT", "8080"),
			GinMode:   getEnv("GIN_MODE", "release"),
			TestImage: getEnv("TEST_IMAGE", ""),
		},
		Tenancy: TenancyConfig{
			Domain:          getEnv("DOMAIN", ""),
			MultiCustomer:   getEnvBool("MULTI_CUSTOMER_MODE", false),
			SecretsBucket:   getEnv("SECRETS_BUCKET", ""),
			DefaultCustomer: getEnv("DEFAULT_CUSTOMER", ""),
		},
		S3: S3Config{
			Bucket:      getEnv("S3_BUCKET", ""),
			WriteBucket: getEnv("S3_WRITE_BUCKET", ""),
			Region:      getEnv("AWS_REGION", "us-east-1"),
			EndpointURL: getEnv("S3_ENDPOINT_URL", ""),
			AccessKey:   getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
			Timeout:  time.Duration(getEnvInt("REDIS_TIMEOUT", 5)) * time.Second,
		},
		Cache: CacheConfig{
			Type:      getEnv("CACHE_TYPE", "none"),
			Directory: getEnv("CACHE_DIRECTORY", "./data/cache"),
			TTL:       time.Duration(getEnvInt("CACHE_TTL", 3600)) * time.Second,
		},
		Sentry: SentryConfig{
			DSN:         getEnv("SENTRY_DSN", ""),
			Environment: getEnv("SENTRY_ENVIRONMENT", "production"),
		},
		Janitor: JanitorConfig{
			Glob:   getEnv("TMP_FILE_GLOB", "/tmp/prism-*"),
			MaxAge: getEnvDuration("TMP_FILE_MAX_AGE", 300*time.Second),
		},
		RateLimit: RateLimitConfig{
			Derive: getEnvInt("RATE_LIMIT_DERIVE", 0),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		CORS: CORSConfig{
			Enabled:         getEnvBool("CORS_ENABLED", true),
			AllowAllOrigins: getEnvBool("CORS_ALLOW_ALL_ORIGINS", true),
			AllowedOrigins:  getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate checks required settings and enumerations
func (c *Config) Validate() error {
	switch {
	case c.Tenancy.MultiCustomer && c.Tenancy.SecretsBucket == "":
		return fmt.Errorf("SECRETS_BUCKET is required when MULTI_CUSTOMER_MODE is true")
	case !c.Tenancy.MultiCustomer && c.S3.Bucket == "":
		return fmt.Errorf("S3_BUCKET must be set if MULTI_CUSTOMER_MODE is not true")
	case c.Server.Port == "":
		return fmt.Errorf("PORT cannot be empty")
	}

	if err := oneOf("CACHE_TYPE", c.Cache.Type, "none", "redis", "badger"); err != nil {
		return err
	}
	switch {
	case c.Cache.Type == "redis" && c.Redis.URL == "":
		return fmt.Errorf("REDIS_URL is required when CACHE_TYPE=redis")
	case c.Cache.Type == "badger" && c.Cache.Directory == "":
		return fmt.Errorf("CACHE_DIRECTORY is required when CACHE_TYPE=badger")
	case c.Cache.Type != "none" && c.Cache.TTL <= 0:
		return fmt.Errorf("CACHE_TTL must be positive")
	case c.RateLimit.Derive < 0:
		return fmt.Errorf("RATE_LIMIT_DERIVE cannot be negative")
	}

	if err := oneOf("LOG_LEVEL", c.Logger.Level, "debug", "info", "warn", "error"); err != nil {
		return err
	}
	return oneOf("LOG_FORMAT", c.Logger.Format, "json", "console")
}

// IsDevelopment reports debug gin mode or console logging
func (c *Config) IsDevelopment() bool {
	return c.Server.GinMode == "debug" || c.Logger.Format == "console"
}

// IsProduction reports release gin mode with json logging
func (c *Config) IsProduction() bool {
	return c.Server.GinMode == "release" && c.Logger.Format == "json"
}

func oneOf(name, value string, allowed ...string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("%s must be one of: %s", name, strings.Join(allowed, ", "))
}

// lookup parses a set variable, keeping the default when it is unset or
// does not parse
func lookup[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue
	}
	v, err := parse(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnv(key, defaultValue string) string {
	return lookup(key, defaultValue, func(s string) (string, error) { return s, nil })
}

func getEnvInt(key string, defaultValue int) int {
	return lookup(key, defaultValue, strconv.Atoi)
}

func getEnvBool(key string, defaultValue bool) bool {
	return lookup(key, defaultValue, strconv.ParseBool)
}

// getEnvDuration accepts Go durations ("5m") and bare seconds ("300")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	return lookup(key, defaultValue, func(s string) (time.Duration, error) {
		if secs, err := strconv.Atoi(s); err == nil {
			return time.Duration(secs) * time.Second, nil
		}
		return time.ParseDuration(s)
	})
}

// getEnvStringSlice splits a comma separated list, dropping blanks
func getEnvStringSlice(key string, defaultValue []string) []string {
	return lookup(key, defaultValue, func(s string) ([]string, error) {
		var items []string
		for _, part := range strings.Split(s, ",") {
			if item := strings.TrimSpace(part); item != "" {
				items = append(items, item)
			}
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("empty list")
		}
		return items, nil
	})
}
