package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cuemby/relay/pkg/api"
	"github.com/cuemby/relay/pkg/cache"
	"github.com/cuemby/relay/pkg/events"
	"github.com/cuemby/relay/pkg/gateway"
	"github.com/cuemby/relay/pkg/health"
	"github.com/cuemby/relay/pkg/log"
	"gopkg.in/yaml.v3"
)

// Config is the configuration of every relay process. Each command reads
// only the sections it needs.
type Config struct {
	Log     log.Config     `yaml:"log"`
	Gateway gateway.Config `yaml:"gateway"`
	API     api.Config     `yaml:"api"`
	Bus     events.Config  `yaml:"bus"`
	Cache   cache.Config   `yaml:"cache"`
	Store   StoreConfig    `yaml:"store"`
	Health  health.Config  `yaml:"health"`
}

// StoreConfig locates the content database
type StoreConfig struct {
	DataDir string `yaml:"dataDir"`
}

// Default returns a configuration that runs every component in-process
func Default() *Config {
	return &Config{
		Log:     log.Config{Level: log.InfoLevel},
		Gateway: gateway.DefaultConfig(),
		API:     api.DefaultConfig(),
		Bus:     events.Config{Driver: events.DriverMemory, QueueSize: 256},
		Cache:   cache.DefaultConfig(),
		Store:   StoreConfig{DataDir: "./relay-data"},
		Health:  health.DefaultConfig(),
	}
}

// Load builds a configuration from defaults, the YAML file at path (if not
// empty) and the process environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables read through lookup.
// REDIS_URI configures both the bus and the cache.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst ...*string) {
		if v, ok := lookup(key); ok && v != "" {
			for _, d := range dst {
				*d = v
			}
		}
	}

	str("SHARD_ID", &c.Gateway.ShardID)
	str("SERVICE_ID", &c.API.ServiceID)
	str("REDIS_URI", &c.Bus.RedisURL, &c.Cache.RedisURL)
	str("NATS_URL", &c.Bus.NATSURL)
	str("BUS_DRIVER", &c.Bus.Driver)
	str("CACHE_DRIVER", &c.Cache.Driver)
	str("DATA_DIR", &c.Store.DataDir)

	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = log.Level(v)
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		if _, err := strconv.ParseUint(v, 10, 16); err != nil {
			return fmt.Errorf("invalid PORT %q", v)
		}
		c.Gateway.Addr = ":" + v
		c.API.Addr = ":" + v
	}
	return nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	switch log.Level(strings.ToLower(string(c.Log.Level))) {
	case log.DebugLevel, log.InfoLevel, log.WarnLevel, log.ErrorLevel, "":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}

	if strings.TrimSpace(c.Gateway.ShardID) == "" {
		errs = append(errs, errors.New("gateway.shardId: must not be empty"))
	}
	if strings.TrimSpace(c.API.ServiceID) == "" {
		errs = append(errs, errors.New("api.serviceId: must not be empty"))
	}
	if c.Gateway.MessageRate < 0 || c.Gateway.MessageBurst < 0 {
		errs = append(errs, errors.New("gateway: message rate and burst must not be negative"))
	}

	switch c.Bus.Driver {
	case events.DriverMemory:
	case events.DriverRedis:
		if c.Bus.RedisURL == "" {
			errs = append(errs, errors.New("bus.redisUrl: required for the redis driver"))
		}
	case events.DriverNATS:
		if c.Bus.NATSURL == "" {
			errs = append(errs, errors.New("bus.natsUrl: required for the nats driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("bus.driver: unknown driver %q", c.Bus.Driver))
	}

	switch c.Cache.Driver {
	case cache.DriverMemory, cache.DriverNone:
	case cache.DriverRedis:
		if c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("cache.redisUrl: required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.driver: unknown driver %q", c.Cache.Driver))
	}
	if c.Cache.ItemTTL <= 0 || c.Cache.ListTTL <= 0 {
		errs = append(errs, errors.New("cache: itemTTL and listTTL must be positive"))
	}

	if strings.TrimSpace(c.Store.DataDir) == "" {
		errs = append(errs, errors.New("store.dataDir: must not be empty"))
	}

	return errors.Join(errs...)
}
