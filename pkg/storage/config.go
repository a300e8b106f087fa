package storage

import (
	"fmt"
	"time"
)

// Storage backends for the admin directory
const (
	TypePostgres = "postgres"
	TypeMemory   = "memory"
)

// Config for storage backend
type Config struct {
	Type string `yaml:"type"` // "postgres" or "memory"

	// PostgreSQL config
	PostgresURL         string        `yaml:"postgres_url"`
	PostgresReplicaURLs string        `yaml:"postgres_replica_urls"` // Comma-separated
	PostgresMaxConns    int           `yaml:"postgres_max_conns"`
	PostgresMinConns    int           `yaml:"postgres_min_conns"`
	PostgresTimeout     time.Duration `yaml:"postgres_timeout"`
	PostgresMaxLifetime time.Duration `yaml:"postgres_max_lifetime"`
	PostgresMaxIdleTime time.Duration `yaml:"postgres_max_idle_time"`

	// Redis config; an empty URL disables the shared login limiter
	RedisURL        string `yaml:"redis_url"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
	RedisPoolSize   int    `yaml:"redis_pool_size"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:                TypePostgres,
		PostgresMaxConns:    20,
		PostgresMinConns:    2,
		PostgresTimeout:     10 * time.Second,
		PostgresMaxLifetime: 30 * time.Minute,
		PostgresMaxIdleTime: 5 * time.Minute,
		RedisDB:             0,
		RedisMaxRetries:     3,
		RedisPoolSize:       10,
	}
}

// Validate checks the fields required by the selected backend
func (c Config) Validate() error {
	switch c.Type {
	case TypePostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
		if c.PostgresMinConns > c.PostgresMaxConns {
			return fmt.Errorf("postgres min conns (%d) exceeds max conns (%d)", c.PostgresMinConns, c.PostgresMaxConns)
		}
	case TypeMemory:
	default:
		return fmt.Errorf("invalid storage type: %q (must be postgres or memory)", c.Type)
	}
	return nil
}
