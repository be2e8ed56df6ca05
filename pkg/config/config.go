package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Index backends
const (
	BackendPostgres = "postgres"
	BackendSnapshot = "snapshot"
)

// Config holds all application configuration
type Config struct {
	Env      string
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Search   SearchConfig
	OTEL     OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	TablePrefix  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// SearchConfig tunes the federated search engine
type SearchConfig struct {
	// Backend is BackendPostgres or BackendSnapshot
	Backend      string
	SnapshotPath string

	PerKindCap     int
	DefaultLimit   int
	MaxLimit       int
	MinQueryLength int

	// PartialResults returns the surviving searchers' candidates when one
	// fails instead of failing the whole call.
	PartialResults bool

	CacheTTL time.Duration
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real env vars win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "medsearch"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			TablePrefix:  getEnv("DB_TABLE_PREFIX", "search_"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Search: SearchConfig{
			Backend:        getEnv("SEARCH_BACKEND", BackendPostgres),
			SnapshotPath:   getEnv("SEARCH_SNAPSHOT_PATH", ""),
			PerKindCap:     getEnvAsInt("SEARCH_PER_KIND_CAP", 50),
			DefaultLimit:   getEnvAsInt("SEARCH_DEFAULT_LIMIT", 20),
			MaxLimit:       getEnvAsInt("SEARCH_MAX_LIMIT", 100),
			MinQueryLength: getEnvAsInt("SEARCH_MIN_QUERY_LENGTH", 3),
			PartialResults: getEnvAsBool("SEARCH_PARTIAL_RESULTS", false),
			CacheTTL:       getEnvAsDuration("SEARCH_CACHE_TTL", 60*time.Second),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "medsearch"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MaxPerKindCap is the largest accepted SEARCH_PER_KIND_CAP
const MaxPerKindCap = 10000

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	switch c.Search.Backend {
	case BackendPostgres:
	case BackendSnapshot:
		if c.Search.SnapshotPath == "" {
			return errors.New("SEARCH_SNAPSHOT_PATH is required for the snapshot backend")
		}
	default:
		return fmt.Errorf("unknown SEARCH_BACKEND %q", c.Search.Backend)
	}
	if c.Search.PerKindCap <= 0 || c.Search.PerKindCap > MaxPerKindCap {
		return fmt.Errorf("SEARCH_PER_KIND_CAP must be between 1 and %d", MaxPerKindCap)
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit < c.Search.DefaultLimit {
		return errors.New("SEARCH_DEFAULT_LIMIT must be positive and not exceed SEARCH_MAX_LIMIT")
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
