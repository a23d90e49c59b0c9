package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cuemby/relay/pkg/health"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe the health of gateway shards and write APIs",
	Long: `Probe the /health endpoint of every given process concurrently and
print one line per process.

Example:
  relay status --gateway gw-1:4000 --gateway gw-2:4000 --api api:3000`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringSlice("gateway", nil, "Gateway shard address (repeatable)")
	statusCmd.Flags().StringSlice("api", nil, "Write API address (repeatable)")
	statusCmd.Flags().Duration("timeout", 5*time.Second, "Per-probe timeout")
	statusCmd.Flags().Int("parallel", 8, "Maximum concurrent probes")
	rootCmd.AddCommand(statusCmd)
}

type probe struct {
	kind   string
	addr   string
	result health.Result
}

func runStatus(cmd *cobra.Command, args []string) error {
	gateways, _ := cmd.Flags().GetStringSlice("gateway")
	apis, _ := cmd.Flags().GetStringSlice("api")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	parallel, _ := cmd.Flags().GetInt("parallel")

	var probes []*probe
	for _, addr := range gateways {
		probes = append(probes, &probe{kind: "gateway", addr: addr})
	}
	for _, addr := range apis {
		probes = append(probes, &probe{kind: "api", addr: addr})
	}
	if len(probes) == 0 {
		return fmt.Errorf("nothing to probe: pass --gateway or --api")
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(parallel)
	for _, p := range probes {
		p := p
		g.Go(func() error {
			checker := health.NewHTTPChecker(healthURL(p.addr)).WithTimeout(timeout)
			probeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			p.result = checker.Check(probeCtx)
			return nil
		})
	}
	_ = g.Wait()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "KIND\tADDRESS\tID\tSTATUS\tCONNECTIONS\tLATENCY")
	unhealthy := 0
	for _, p := range probes {
		id, connections := "-", "-"
		if v, ok := p.result.Details["shardId"]; ok {
			id = fmt.Sprint(v)
		}
		if v, ok := p.result.Details["serviceId"]; ok {
			id = fmt.Sprint(v)
		}
		if v, ok := p.result.Details["connections"]; ok {
			connections = fmt.Sprint(v)
		}

		status := "healthy"
		if !p.result.Healthy {
			status = "unhealthy: " + p.result.Message
			unhealthy++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.kind, p.addr, id, status, connections, p.result.Duration.Round(time.Millisecond))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if unhealthy > 0 {
		return fmt.Errorf("%d of %d processes unhealthy", unhealthy, len(probes))
	}
	return nil
}

func healthURL(addr string) string {
	if !strings.Contains(addr, "://") {
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}
		addr = "http://" + addr
	}
	return strings.TrimRight(addr, "/") + "/health"
}
