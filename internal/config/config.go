package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/passbi/subway_path/internal/cache"
	"github.com/passbi/subway_path/internal/db"
)

// Config is the full service configuration
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  db.Config       `toml:"database"`
	Redis     cache.Config    `toml:"redis"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Workers   WorkersConfig   `toml:"workers"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string        `toml:"port"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// RateLimitConfig holds the per-client request limit
type RateLimitConfig struct {
	Enabled   bool `toml:"enabled"`
	PerSecond int  `toml:"per_second"`
}

// WorkersConfig sizes the goroutine pool used for multi-metric queries
type WorkersConfig struct {
	PoolSize int `toml:"pool_size"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: db.DefaultConfig(),
		Redis:    cache.DefaultConfig(),
		RateLimit: RateLimitConfig{
			Enabled:   false,
			PerSecond: 10,
		},
		Workers: WorkersConfig{
			PoolSize: 64,
		},
	}
}

// Load builds the configuration from defaults, then the TOML file named by
// CONFIG_FILE (if set), then environment variables
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit file path; an empty path skips the file
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvInt("DB_PORT", c.Database.Port)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.MinConns = int32(getEnvInt("DB_MIN_CONNS", int(c.Database.MinConns)))
	c.Database.MaxConns = int32(getEnvInt("DB_MAX_CONNS", int(c.Database.MaxConns)))

	c.Redis.Enabled = getEnvBool("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = getEnvInt("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)
	c.Redis.TLSEnabled = getEnvBool("REDIS_TLS_ENABLED", c.Redis.TLSEnabled)
	c.Redis.TTL = getEnvDuration("CACHE_TTL", c.Redis.TTL)
	c.Redis.MutexTTL = getEnvDuration("CACHE_MUTEX_TTL", c.Redis.MutexTTL)

	c.RateLimit.Enabled = getEnvBool("RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.PerSecond = getEnvInt("RATE_LIMIT_PER_SECOND", c.RateLimit.PerSecond)

	c.Workers.PoolSize = getEnvInt("WORKER_POOL_SIZE", c.Workers.PoolSize)
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port must be set")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("database max_conns (%d) below min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}
	if c.RateLimit.Enabled && c.RateLimit.PerSecond <= 0 {
		return fmt.Errorf("rate_limit per_second must be positive when enabled")
	}
	if c.Workers.PoolSize <= 0 {
		return fmt.Errorf("workers pool_size must be positive")
	}
	return nil
}

// getEnv retrieves an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
