package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/tillsession/pkg/jwtx"
	"github.com/aussiebroadwan/tillsession/pkg/slogx"
)

// Provider and cache selectors.
const (
	ProviderFake    = "fake"
	ProviderNetwork = "network"

	CacheMemory = "memory"
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
)

type Config struct {
	Provider    string        // fake or network (default: fake)
	BaseURL     string        // Login server base URL, required for network
	HTTPTimeout time.Duration // Network provider request timeout (default: 10s)
	LoginRate   float64       // Client-side login attempts per second, 0 disables (default: 0)

	SigningAlg    string // Token algorithm: none or HS256 (default: none)
	SigningSecret string // HS256 secret; enables signature checks on the client

	Cache         string        // memory, sqlite or redis (default: sqlite)
	CacheFile     string        // SQLite file (default: ./tillsession.db)
	RedisAddr     string        // host:port, required for redis
	RedisPassword string        // Optional
	RedisDB       int           // Optional (default: 0)
	RedisPrefix   string        // Key prefix (default: tillsession)
	RedisTTL      time.Duration // Key expiry, 0 keeps keys forever (default: 0)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: warn)
	LogFormat           string        // Log format (json, text) (default: text)
	Port                int           // Login server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		Provider:    strings.ToLower(getEnvOrDefault("TILL_PROVIDER", ProviderFake)),
		BaseURL:     os.Getenv("TILL_BASE_URL"),
		HTTPTimeout: getEnvDurationOrDefault("TILL_HTTP_TIMEOUT", 10*time.Second),
		LoginRate:   getEnvFloatOrDefault("TILL_LOGIN_RATE", 0),

		SigningAlg:    getEnvOrDefault("TILL_SIGNING_ALG", jwtx.AlgNone),
		SigningSecret: os.Getenv("TILL_SIGNING_SECRET"),

		Cache:         strings.ToLower(getEnvOrDefault("TILL_CACHE", CacheSQLite)),
		CacheFile:     getEnvOrDefault("TILL_CACHE_FILE", "tillsession.db"),
		RedisAddr:     os.Getenv("TILL_REDIS_ADDR"),
		RedisPassword: os.Getenv("TILL_REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("TILL_REDIS_DB", 0),
		RedisPrefix:   getEnvOrDefault("TILL_REDIS_PREFIX", "tillsession"),
		RedisTTL:      getEnvDurationOrDefault("TILL_REDIS_TTL", 0),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "warn"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "text"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

// Validate reports configuration the client cannot start with.
func (c Config) Validate() error {
	var errs []error

	switch c.Provider {
	case ProviderFake:
	case ProviderNetwork:
		if c.BaseURL == "" {
			errs = append(errs, errors.New("TILL_BASE_URL is required for the network provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TILL_PROVIDER %q", c.Provider))
	}

	switch c.Cache {
	case CacheMemory:
	case CacheSQLite:
		if c.CacheFile == "" {
			errs = append(errs, errors.New("TILL_CACHE_FILE is required for the sqlite cache"))
		}
	case CacheRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("TILL_REDIS_ADDR is required for the redis cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TILL_CACHE %q", c.Cache))
	}

	switch c.SigningAlg {
	case jwtx.AlgNone, jwtx.AlgHS256:
	default:
		errs = append(errs, fmt.Errorf("unsupported TILL_SIGNING_ALG %q", c.SigningAlg))
	}

	if _, err := slogx.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	if c.LoginRate < 0 {
		errs = append(errs, errors.New("TILL_LOGIN_RATE must be >= 0"))
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultValue
}
