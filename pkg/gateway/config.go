package gateway

import "time"

// Config holds configuration for a gateway shard
type Config struct {
	ShardID string `yaml:"shardId"`
	Addr    string `yaml:"addr"`

	// ReadTimeout closes sessions that send nothing for this long; zero disables it
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	SendQueue    int           `yaml:"sendQueue"`

	// Per-connection inbound limit
	MessageRate  float64 `yaml:"messageRate"`
	MessageBurst int     `yaml:"messageBurst"`

	// Per-address upgrade limit; zero AcceptRate disables it
	AcceptRate  float64 `yaml:"acceptRate"`
	AcceptBurst int     `yaml:"acceptBurst"`

	// AllowedOrigins are host patterns accepted on upgrade; empty accepts any origin
	AllowedOrigins []string `yaml:"allowedOrigins"`

	MetricsInterval time.Duration `yaml:"metricsInterval"`
}

// DefaultConfig returns the configuration of a standalone shard
func DefaultConfig() Config {
	return Config{
		ShardID:         "1",
		Addr:            ":4000",
		ReadTimeout:     5 * time.Minute,
		WriteTimeout:    10 * time.Second,
		SendQueue:       256,
		MessageRate:     20,
		MessageBurst:    40,
		AcceptRate:      5,
		AcceptBurst:     20,
		MetricsInterval: 5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ShardID == "" {
		c.ShardID = def.ShardID
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.SendQueue <= 0 {
		c.SendQueue = def.SendQueue
	}
	if c.MessageRate <= 0 {
		c.MessageRate = def.MessageRate
	}
	if c.MessageBurst <= 0 {
		c.MessageBurst = def.MessageBurst
	}
	if c.MetricsInterval <= 0 {
		c.MetricsInterval = def.MetricsInterval
	}
	return c
}
