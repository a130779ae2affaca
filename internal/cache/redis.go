package cache

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/passbi/subway_path/internal/models"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a concurrent computation did not finish in time
var ErrLockTimeout = errors.New("timeout waiting for lock")

// Config holds Redis configuration
type Config struct {
	Enabled    bool          `toml:"enabled"`
	Host       string        `toml:"host"`
	Port       int           `toml:"port"`
	Password   string        `toml:"password"`
	DB         int           `toml:"db"`
	TLSEnabled bool          `toml:"tls"`
	TTL        time.Duration `toml:"ttl"`
	MutexTTL   time.Duration `toml:"mutex_ttl"`
}

// DefaultConfig returns the settings used when neither a config file nor the
// environment provide a value
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		Host:     "localhost",
		Port:     6379,
		TTL:      10 * time.Minute,
		MutexTTL: 5 * time.Second,
	}
}

// Cache stores computed paths in Redis
type Cache struct {
	client   *redis.Client
	ttl      time.Duration
	mutexTTL time.Duration
}

// New connects to Redis and verifies the connection
func New(ctx context.Context, config Config) (*Cache, error) {
	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}

	// Managed Redis (Upstash and friends) requires TLS
	if config.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, config.TTL, config.MutexTTL), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client, ttl, mutexTTL time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, mutexTTL: mutexTTL}
}

// Client exposes the underlying client for other Redis consumers (rate limiting)
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Close closes the Redis client
func (c *Cache) Close() error {
	return c.client.Close()
}

// PathKey generates a cache key for a path query. The station pair is hashed
// so arbitrary station names produce fixed-length keys.
func PathKey(from, to string, metric models.MetricName) string {
	hash := sha256.Sum256([]byte(from + "\x00" + to))
	return fmt.Sprintf("path:%x:%s", hash[:8], metric)
}

// LockKey generates a mutex lock key
func LockKey(pathKey string) string {
	return fmt.Sprintf("lock:%s", pathKey)
}

// GetPath retrieves a cached path; a miss returns nil without error
func (c *Cache) GetPath(ctx context.Context, key string) (*models.Path, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var path models.Path
	if err := json.Unmarshal(data, &path); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached path: %w", err)
	}

	return &path, nil
}

// SetPath caches a path with the configured TTL
func (c *Cache) SetPath(ctx context.Context, key string, path *models.Path) error {
	data, err := json.Marshal(path)
	if err != nil {
		return fmt.Errorf("failed to marshal path: %w", err)
	}

	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// AcquireLock attempts to take the computation lock for pathKey.
// Returns true if the lock was acquired, false if it is already held.
func (c *Cache) AcquireLock(ctx context.Context, pathKey string) (bool, error) {
	return c.client.SetNX(ctx, LockKey(pathKey), "1", c.mutexTTL).Result()
}

// ReleaseLock releases the computation lock for pathKey
func (c *Cache) ReleaseLock(ctx context.Context, pathKey string) error {
	return c.client.Del(ctx, LockKey(pathKey)).Err()
}

// WaitForPath waits for another request's lock on pathKey to be released and
// then reads the cached result, so identical queries are computed once
func (c *Cache) WaitForPath(ctx context.Context, pathKey string, maxWait time.Duration) (*models.Path, error) {
	lockKey := LockKey(pathKey)
	deadline := time.Now().Add(maxWait)

	for time.Now().Before(deadline) {
		exists, err := c.client.Exists(ctx, lockKey).Result()
		if err != nil {
			return nil, err
		}

		if exists == 0 {
			return c.GetPath(ctx, pathKey)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	return nil, ErrLockTimeout
}

// HealthCheck performs a health check on the Redis connection
func (c *Cache) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis ping failed: %w", err)
	}

	return nil
}

// Stats returns connection pool statistics
func (c *Cache) Stats() map[string]interface{} {
	poolStats := c.client.PoolStats()

	return map[string]interface{}{
		"hits":        poolStats.Hits,
		"misses":      poolStats.Misses,
		"timeouts":    poolStats.Timeouts,
		"total_conns": poolStats.TotalConns,
		"idle_conns":  poolStats.IdleConns,
		"stale_conns": poolStats.StaleConns,
	}
}
