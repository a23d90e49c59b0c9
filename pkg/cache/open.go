package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Driver names accepted in Config.Driver
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverNone   = "none"
)

// Config selects a cache backend and the TTLs of each key namespace
type Config struct {
	Driver    string        `yaml:"driver"`
	RedisURL  string        `yaml:"redisUrl"`
	ItemTTL   time.Duration `yaml:"itemTTL"`
	ListTTL   time.Duration `yaml:"listTTL"`
	ScanCount int           `yaml:"scanCount"`
}

// DefaultConfig returns the TTLs used by the write path
func DefaultConfig() Config {
	return Config{
		Driver:    DriverMemory,
		ItemTTL:   15 * time.Minute,
		ListTTL:   5 * time.Minute,
		ScanCount: defaultScanCount,
	}
}

// Conn is an opened cache together with the client it owns
type Conn struct {
	Cache
	Ping  func(ctx context.Context) error
	close func() error
}

// Close releases the underlying client
func (c *Conn) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// Open connects the backend named by cfg.Driver. An unreachable Redis is not
// an error: the cache degrades to misses until it comes back.
func Open(cfg Config) (*Conn, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return &Conn{Cache: NewMemory(), Ping: func(context.Context) error { return nil }}, nil
	case DriverNone:
		return &Conn{Cache: Nop{}, Ping: func(context.Context) error { return nil }}, nil
	case DriverRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		client := redis.NewClient(opts)
		return &Conn{
			Cache: NewRedis(client, cfg.ScanCount),
			Ping:  func(ctx context.Context) error { return client.Ping(ctx).Err() },
			close: client.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}
