package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/relay/pkg/client"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect to a gateway shard and print pushed messages",
	Long: `Connect to a gateway shard as a client and print every message it
pushes, one per line, until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("gateway")
		userID, _ := cmd.Flags().GetString("user")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		conn, err := client.DialGateway(ctx, addr, "")
		if err != nil {
			return err
		}
		defer conn.Close()

		fmt.Fprintf(os.Stderr, "✓ Connected to shard %s as %s\n", conn.Greeting.ShardID, conn.Greeting.ConnectionID)
		if userID != "" {
			if err := conn.SubscribeUser(ctx, userID); err != nil {
				return fmt.Errorf("failed to subscribe user: %w", err)
			}
		}

		for {
			msg, err := conn.Next(ctx)
			if err != nil {
				if errors.Is(ctx.Err(), context.Canceled) {
					return nil
				}
				return fmt.Errorf("connection lost: %w", err)
			}
			fmt.Printf("%s %s\n", msg.Type, msg.Data)
		}
	},
}

func init() {
	watchCmd.Flags().String("gateway", "localhost:4000", "Gateway shard address")
	watchCmd.Flags().String("user", "", "Associate the connection with this user ID")
	rootCmd.AddCommand(watchCmd)
}
