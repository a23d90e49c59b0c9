package main

import (
	"fmt"
	"os"

	"github.com/cuemby/relay/pkg/config"
	"github.com/cuemby/relay/pkg/log"
	"github.com/cuemby/relay/pkg/metrics"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay - real-time fan-out for write-heavy APIs",
	Long: `Relay connects a write API to horizontally sharded websocket
gateways. Every write is committed, its cached reads are invalidated and
an event is published; each gateway shard pushes the event to its clients.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Relay version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log as JSON instead of console output")
}

// loadConfig resolves the configuration for a server command: defaults,
// then --config, then the environment, then explicit flags. It also
// initialises logging.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	setString(cmd, "log-level", (*string)(&cfg.Log.Level))
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSONOutput, _ = cmd.Flags().GetBool("log-json")
	}
	setString(cmd, "shard-id", &cfg.Gateway.ShardID)
	setString(cmd, "service-id", &cfg.API.ServiceID)
	setString(cmd, "data-dir", &cfg.Store.DataDir)
	setString(cmd, "bus-driver", &cfg.Bus.Driver)
	setString(cmd, "redis-url", &cfg.Bus.RedisURL, &cfg.Cache.RedisURL)
	setString(cmd, "nats-url", &cfg.Bus.NATSURL)
	setString(cmd, "cache-driver", &cfg.Cache.Driver)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}

	log.Init(cfg.Log)
	metrics.SetVersion(Version)
	return cfg, nil
}

// setString copies a flag into dst only when it was given explicitly
func setString(cmd *cobra.Command, name string, dst ...*string) {
	f := cmd.Flags().Lookup(name)
	if f == nil || !f.Changed {
		return
	}
	for _, d := range dst {
		*d = f.Value.String()
	}
}

// addBackendFlags registers the flags shared by the server commands
func addBackendFlags(cmd *cobra.Command) {
	cmd.Flags().String("bus-driver", "", "Event bus driver (memory, redis, nats)")
	cmd.Flags().String("redis-url", "", "Redis URL for the bus and cache (e.g. redis://localhost:6379)")
	cmd.Flags().String("nats-url", "", "NATS URL for the bus (e.g. nats://localhost:4222)")
}
