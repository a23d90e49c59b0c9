package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Driver names accepted in Config.Driver
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverNATS   = "nats"
)

// Config selects and configures a bus backend
type Config struct {
	Driver    string `yaml:"driver"`
	RedisURL  string `yaml:"redisUrl"`
	NATSURL   string `yaml:"natsUrl"`
	QueueSize int    `yaml:"queueSize"`
}

// Conn is an opened bus together with the resources it owns
type Conn struct {
	Bus
	// Ping reports whether the underlying transport is reachable
	Ping    func(ctx context.Context) error
	closers []func() error
}

// Close closes the bus and then the transport it was opened on
func (c *Conn) Close() error {
	err := c.Bus.Close()
	for _, closer := range c.closers {
		if cerr := closer(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Open connects the backend named by cfg.Driver
func Open(ctx context.Context, cfg Config, origin string, logger zerolog.Logger) (*Conn, error) {
	opts := Options{Origin: origin, QueueSize: cfg.QueueSize, Logger: logger}

	switch cfg.Driver {
	case "", DriverMemory:
		return &Conn{
			Bus:  NewBroker(opts),
			Ping: func(context.Context) error { return nil },
		}, nil

	case DriverRedis:
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return &Conn{
			Bus:     NewRedisBus(client, opts),
			Ping:    func(ctx context.Context) error { return client.Ping(ctx).Err() },
			closers: []func() error{client.Close},
		}, nil

	case DriverNATS:
		nc, err := nats.Connect(cfg.NATSURL,
			nats.Name("relay-"+origin),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn().Err(err).Msg("nats disconnected")
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("connecting to nats: %w", err)
		}
		return &Conn{
			Bus: NewNATSBus(nc, opts),
			Ping: func(context.Context) error {
				if !nc.IsConnected() {
					return fmt.Errorf("nats status %v", nc.Status())
				}
				return nil
			},
			closers: []func() error{func() error { nc.Close(); return nil }},
		}, nil

	default:
		return nil, fmt.Errorf("unknown bus driver %q", cfg.Driver)
	}
}
