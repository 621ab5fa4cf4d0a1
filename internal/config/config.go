package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	Auth       AuthConfig       `yaml:"auth"`
	Search     SearchConfig     `yaml:"search"`
	Cleanup    CleanupConfig    `yaml:"cleanup"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Pagination PaginationConfig `yaml:"pagination"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port                   string   `yaml:"port"`
	Environment            string   `yaml:"environment"`
	AllowedOrigins         []string `yaml:"allowed_origins"`
	ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Type     string         `yaml:"type"`
	LogLevel string         `yaml:"log_level"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// StorageConfig contains image storage settings
type StorageConfig struct {
	Dir           string `yaml:"dir"`
	PublicPrefix  string `yaml:"public_prefix"`
	MaxFileSizeMB int    `yaml:"max_file_size_mb"`
	MaxFiles      int    `yaml:"max_files"`
}

// AuthConfig selects how the acting user is resolved.
// Mode "jwt" verifies an HS256 bearer token; mode "header" trusts
// X-User-Id / X-User-Role set by an upstream gateway.
type AuthConfig struct {
	Mode      string `yaml:"mode"`
	JWTSecret string `yaml:"jwt_secret"`
	RoleClaim string `yaml:"role_claim"`
	AdminRole string `yaml:"admin_role"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Enabled         bool              `yaml:"enabled"`
	ReindexSchedule string            `yaml:"reindex_schedule"`
	Meilisearch     MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
	Index  string `yaml:"index"`
}

// CleanupConfig controls the orphaned image sweep
type CleanupConfig struct {
	Enabled            bool   `yaml:"enabled"`
	DailyRunTime       string `yaml:"daily_run_time"`
	GracePeriodMinutes int    `yaml:"grace_period_minutes"`
	MaxDeletionCount   int    `yaml:"max_deletion_count"`
	DryRun             bool   `yaml:"dry_run"`
}

// RateLimitConfig contains write rate limiting settings
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// PaginationConfig contains list pagination defaults
type PaginationConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                   "8080",
			Environment:            "development",
			AllowedOrigins:         []string{"http://localhost:3000"},
			ShutdownTimeoutSeconds: 10,
		},
		Database: DatabaseConfig{
			Type:     "postgres",
			LogLevel: "warn",
			MySQL: MySQLConfig{
				Host:     "mysql",
				Port:     3306,
				User:     "listing_user",
				Database: "listing_db",
			},
			Postgres: PostgresConfig{
				Host:     "db",
				Port:     5432,
				User:     "listing_user",
				Database: "listing_db",
				SSLMode:  "disable",
			},
		},
		Storage: StorageConfig{
			Dir:           "uploads/properties",
			PublicPrefix:  "/uploads/properties",
			MaxFileSizeMB: 5,
			MaxFiles:      10,
		},
		Auth: AuthConfig{
			Mode:      "jwt",
			RoleClaim: "role",
			AdminRole: "admin",
		},
		Search: SearchConfig{
			Enabled:         false,
			ReindexSchedule: "@every 15m",
			Meilisearch: MeilisearchConfig{
				Host:  "http://meilisearch:7700",
				Index: "properties",
			},
		},
		Cleanup: CleanupConfig{
			Enabled:            true,
			DailyRunTime:       "03:00",
			GracePeriodMinutes: 60,
			MaxDeletionCount:   1000,
			DryRun:             false,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 60,
			Burst:             10,
		},
		Pagination: PaginationConfig{
			DefaultLimit: 20,
			MaxLimit:     100,
		},
	}
}

// LoadConfig loads configuration from a YAML file, then applies environment overrides.
// A missing file is not an error; defaults are used instead.
func LoadConfig(filepath string) (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env file: %v", err)
	}

	config := DefaultConfig()

	if _, err := os.Stat(filepath); err == nil {
		data, err := os.ReadFile(filepath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides file values with environment variables when they are set
func (c *Config) ApplyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Environment = getEnv("APP_ENV", c.Server.Environment)

	c.Database.Type = getEnv("DB_TYPE", c.Database.Type)
	switch c.Database.Type {
	case "mysql":
		c.Database.MySQL.Host = getEnv("DB_HOST", c.Database.MySQL.Host)
		c.Database.MySQL.Port = getEnvAsInt("DB_PORT", c.Database.MySQL.Port)
		c.Database.MySQL.User = getEnv("DB_USER", c.Database.MySQL.User)
		c.Database.MySQL.Password = getEnv("DB_PASSWORD", c.Database.MySQL.Password)
		c.Database.MySQL.Database = getEnv("DB_NAME", c.Database.MySQL.Database)
	default:
		c.Database.Postgres.Host = getEnv("DB_HOST", c.Database.Postgres.Host)
		c.Database.Postgres.Port = getEnvAsInt("DB_PORT", c.Database.Postgres.Port)
		c.Database.Postgres.User = getEnv("DB_USER", c.Database.Postgres.User)
		c.Database.Postgres.Password = getEnv("DB_PASSWORD", c.Database.Postgres.Password)
		c.Database.Postgres.Database = getEnv("DB_NAME", c.Database.Postgres.Database)
	}

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Storage.Dir = getEnv("UPLOAD_DIR", c.Storage.Dir)
	c.Search.Meilisearch.Host = getEnv("MEILISEARCH_HOST", c.Search.Meilisearch.Host)
	c.Search.Meilisearch.APIKey = getEnv("MEILISEARCH_KEY", c.Search.Meilisearch.APIKey)
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.Type != "mysql" && c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database type %q (want mysql or postgres)", c.Database.Type)
	}
	switch c.Auth.Mode {
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret (or JWT_SECRET) is required in jwt mode")
		}
	case "header":
	default:
		return fmt.Errorf("unsupported auth mode %q (want jwt or header)", c.Auth.Mode)
	}
	if len(c.Server.AllowedOrigins) == 0 {
		return fmt.Errorf("server.allowed_origins must list at least one origin")
	}
	if c.Storage.Dir == "" || c.Storage.PublicPrefix == "" {
		return fmt.Errorf("storage dir and public prefix are required")
	}
	if c.Storage.MaxFileSizeMB <= 0 || c.Storage.MaxFiles <= 0 {
		return fmt.Errorf("storage limits must be positive")
	}
	if c.Pagination.DefaultLimit <= 0 || c.Pagination.MaxLimit < c.Pagination.DefaultLimit {
		return fmt.Errorf("invalid pagination limits: default=%d max=%d",
			c.Pagination.DefaultLimit, c.Pagination.MaxLimit)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerMinute <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit values must be positive when enabled")
	}
	return nil
}

// IsProduction reports whether error details should be hidden from clients
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// GetShutdownTimeout returns the graceful shutdown timeout as a duration
func (c *ServerConfig) GetShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// MaxFileSize returns the per-file upload limit in bytes
func (c *StorageConfig) MaxFileSize() int64 {
	return int64(c.MaxFileSizeMB) << 20
}

// GetGracePeriod returns how old an unreferenced file must be before it is swept
func (c *CleanupConfig) GetGracePeriod() time.Duration {
	return time.Duration(c.GracePeriodMinutes) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}
