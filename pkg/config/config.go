// Package config loads the bridge configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/erpbridge/pkg/observability"
)

// Store backends.
const (
	StoreBackendRedis  = "redis"
	StoreBackendMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Store         StoreConfig
	Bridge        BridgeConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// StoreConfig holds token store configuration
type StoreConfig struct {
	Backend string

	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// MemorySize bounds the memory backend
	MemorySize int
}

// BridgeConfig holds the SSO bridge settings
type BridgeConfig struct {
	// ERPBaseURL is the external base URL outbound auth URLs are built on
	ERPBaseURL string

	// PlatformURL is the host platform's internal API base URL
	PlatformURL     string
	PlatformTimeout time.Duration

	// Browser destinations for inbound logins
	DashboardURL string
	LoginURL     string

	TokenTTL    time.Duration
	TokenLength int
}

// RateLimitConfig throttles the authentication endpoints per client IP
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	// AuditLogFile is the path of the JSON-lines audit trail. Empty routes
	// audit events through the structured logger only.
	AuditLogFile string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("ERPBRIDGE_HOST", "0.0.0.0"),
			Port:            getEnv("ERPBRIDGE_PORT", "8080"),
			ReadTimeout:     getEnvDuration("ERPBRIDGE_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("ERPBRIDGE_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("ERPBRIDGE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("ERPBRIDGE_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("ERPBRIDGE_HEALTH_PORT", "9090"),
		},
		Store: StoreConfig{
			Backend:         getEnv("ERPBRIDGE_STORE_BACKEND", StoreBackendRedis),
			RedisURL:        getEnv("ERPBRIDGE_REDIS_URL", "redis://localhost:6379"),
			RedisPassword:   getEnv("ERPBRIDGE_REDIS_PASSWORD", ""),
			RedisDB:         getEnvInt("ERPBRIDGE_REDIS_DB", 0),
			RedisMaxRetries: getEnvInt("ERPBRIDGE_REDIS_MAX_RETRIES", 3),
			RedisPoolSize:   getEnvInt("ERPBRIDGE_REDIS_POOL_SIZE", 10),
			MemorySize:      getEnvInt("ERPBRIDGE_MEMORY_STORE_SIZE", 4096),
		},
		Bridge: BridgeConfig{
			ERPBaseURL:      getEnv("ERPBRIDGE_ERP_BASE_URL", "http://localhost:8000"),
			PlatformURL:     getEnv("ERPBRIDGE_PLATFORM_URL", "http://localhost:8081"),
			PlatformTimeout: getEnvDuration("ERPBRIDGE_PLATFORM_TIMEOUT", 5*time.Second),
			DashboardURL:    getEnv("ERPBRIDGE_DASHBOARD_URL", "/dashboard"),
			LoginURL:        getEnv("ERPBRIDGE_LOGIN_URL", "/user/auth/login"),
			TokenTTL:        getEnvDuration("ERPBRIDGE_TOKEN_TTL", 300*time.Second),
			TokenLength:     getEnvInt("ERPBRIDGE_TOKEN_LENGTH", 64),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvBool("ERPBRIDGE_RATE_LIMIT_ENABLED", true),
			RequestsPerWindow: getEnvInt("ERPBRIDGE_RATE_LIMIT_REQUESTS", 30),
			Window:            getEnvDuration("ERPBRIDGE_RATE_LIMIT_WINDOW", time.Minute),
			Burst:             getEnvInt("ERPBRIDGE_RATE_LIMIT_BURST", 10),
		},
		Observability: ObservabilityConfig{
			LogLevel:       parseLogLevel(getEnv("ERPBRIDGE_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("ERPBRIDGE_METRICS_ENABLED", true),
			AuditLogFile:   getEnv("ERPBRIDGE_AUDIT_LOG_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Store.Backend {
	case StoreBackendRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("redis URL is required for the redis store backend")
		}
	case StoreBackendMemory:
		if c.Store.MemorySize <= 0 {
			return fmt.Errorf("memory store size must be positive")
		}
	default:
		return fmt.Errorf("invalid store backend: %s (must be redis or memory)", c.Store.Backend)
	}

	if c.Bridge.ERPBaseURL == "" {
		return fmt.Errorf("ERP base URL is required")
	}
	if c.Bridge.PlatformURL == "" {
		return fmt.Errorf("platform URL is required")
	}
	if c.Bridge.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Bridge.TokenLength < 64 {
		return fmt.Errorf("token length must be at least 64")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerWindow <= 0 {
			return fmt.Errorf("rate limit requests per window must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
		if c.RateLimit.Burst < 0 {
			return fmt.Errorf("rate limit burst must not be negative")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
