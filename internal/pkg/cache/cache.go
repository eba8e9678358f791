package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/animora/animora/internal/pkg/env"
)

const pingTimeout = 3 * time.Second

// Config holds the Redis/Dragonfly connection settings
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// LoadConfig reads the cache settings from the environment
func LoadConfig() *Config {
	return &Config{
		Host:     env.GetEnv("CACHE_HOST", "localhost"),
		Port:     env.GetEnv("CACHE_PORT", "6379"),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       env.GetEnvInt("CACHE_DB", 0),
	}
}

// Addr returns host:port
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", strings.TrimSpace(c.Host), strings.TrimSpace(c.Port))
}

// Enabled reports whether a cache host is configured at all
func (c *Config) Enabled() bool {
	return strings.TrimSpace(c.Host) != ""
}

// New creates a client without contacting the server
func New(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Connect creates a client and verifies the connection. On failure the
// client is closed and the error returned, callers fall back to running
// without a cache.
func Connect(ctx context.Context, cfg *Config) (*redis.Client, error) {
	client := New(cfg)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	pong, err := client.Ping(pingCtx).Result()
	if err != nil {
		_ = client.Close()
		log.Warnf("[Cache] Could not connect to cache at %s: %v", cfg.Addr(), err)
		return nil, err
	}
	log.Infof("[Cache] Successfully connected to cache: %s", pong)
	return client, nil
}
