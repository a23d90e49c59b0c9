package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/relay/pkg/api"
	"github.com/cuemby/relay/pkg/cache"
	"github.com/cuemby/relay/pkg/coordinator"
	"github.com/cuemby/relay/pkg/events"
	"github.com/cuemby/relay/pkg/gateway"
	"github.com/cuemby/relay/pkg/health"
	"github.com/cuemby/relay/pkg/log"
	"github.com/cuemby/relay/pkg/metrics"
	"github.com/cuemby/relay/pkg/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run a websocket gateway shard",
	Long: `Run a gateway shard. The shard accepts websocket clients on /ws,
subscribes to content and presence events on the bus and pushes content
events to every connected client.

Examples:
  # Standalone shard with an in-process bus
  relay gateway --shard-id 1 --addr :4000

  # Shard attached to a shared Redis bus
  relay gateway --shard-id 2 --bus-driver redis --redis-url redis://redis:6379`,
	RunE: runGateway,
}

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run the write API",
	Long: `Run the write API. Every mutation is committed to the content store,
then the affected cache keys are invalidated, then an event is published.`,
	RunE: runAPI,
}

func init() {
	gatewayCmd.Flags().String("shard-id", "", "Unique shard ID")
	gatewayCmd.Flags().String("addr", "", "Listen address (default :4000)")
	addBackendFlags(gatewayCmd)

	apiCmd.Flags().String("service-id", "", "Service instance ID")
	apiCmd.Flags().String("addr", "", "Listen address (default :3000)")
	apiCmd.Flags().String("data-dir", "", "Data directory for the content store")
	apiCmd.Flags().String("cache-driver", "", "Cache driver (memory, redis, none)")
	addBackendFlags(apiCmd)

	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(apiCmd)
}

// warnLocalBus reports whether the bus only reaches this process. Events
// published by a separate api process never arrive at such a shard.
func warnLocalBus(logger zerolog.Logger, cfg events.Config) bool {
	if cfg.Driver != "" && cfg.Driver != events.DriverMemory {
		return false
	}
	logger.Warn().
		Str("bus", events.DriverMemory).
		Msg("In-process event bus: events do not reach other relay processes, use --bus-driver redis or nats")
	return true
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setString(cmd, "addr", &cfg.Gateway.Addr)

	logger := log.WithShardID(cfg.Gateway.ShardID)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, err := events.Open(ctx, cfg.Bus, "gateway-"+cfg.Gateway.ShardID, logger.With().Str("component", "bus").Logger())
	if err != nil {
		return fmt.Errorf("failed to open event bus: %w", err)
	}
	defer bus.Close()
	warnLocalBus(logger, cfg.Bus)

	shard := gateway.NewShard(cfg.Gateway, bus, logger)
	if err := shard.Subscribe(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	metrics.SetCriticalComponents("bus")
	monitor := health.NewMonitor(cfg.Health, logger)
	monitor.Add("bus", health.NewPingChecker(bus.Ping))
	monitor.Start(gctx)

	logger.Info().
		Str("bus", cfg.Bus.Driver).
		Str("addr", cfg.Gateway.Addr).
		Msg("Gateway shard starting")

	g.Go(shard.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return shard.Stop(shutdownCtx)
	})

	err = g.Wait()
	monitor.Wait()
	logger.Info().Msg("Shutdown complete")
	return err
}

func runAPI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setString(cmd, "addr", &cfg.API.Addr)

	logger := log.WithServiceID(cfg.API.ServiceID)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewBoltStore(cfg.Store.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open content store: %w", err)
	}
	defer store.Close()

	cacheConn, err := cache.Open(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer cacheConn.Close()

	bus, err := events.Open(ctx, cfg.Bus, cfg.API.ServiceID, logger.With().Str("component", "bus").Logger())
	if err != nil {
		return fmt.Errorf("failed to open event bus: %w", err)
	}
	defer bus.Close()
	warnLocalBus(logger, cfg.Bus)

	coord := coordinator.New(store, cacheConn, bus, coordinator.Config{
		ItemTTL: cfg.Cache.ItemTTL,
		ListTTL: cfg.Cache.ListTTL,
	}, logger.With().Str("component", "coordinator").Logger())
	server := api.NewServer(cfg.API, coord, cacheConn, logger)

	logger.Info().
		Str("bus", cfg.Bus.Driver).
		Str("cache", cfg.Cache.Driver).
		Str("data_dir", cfg.Store.DataDir).
		Msg("Write API starting")

	g, gctx := errgroup.WithContext(ctx)

	// The cache degrades to misses, so it is reported but never blocks readiness.
	metrics.SetCriticalComponents("store", "bus")
	monitor := health.NewMonitor(cfg.Health, logger)
	monitor.Add("store", health.NewPingChecker(store.Ping))
	monitor.Add("bus", health.NewPingChecker(bus.Ping))
	monitor.Add("cache", health.NewPingChecker(cacheConn.Ping))
	monitor.Start(gctx)

	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Stop(shutdownCtx)
	})

	err = g.Wait()
	monitor.Wait()
	logger.Info().Msg("Shutdown complete")
	return err
}
