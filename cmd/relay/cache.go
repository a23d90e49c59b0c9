package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Administer the read cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge NAMESPACE [PATTERN]",
	Short: "Purge cached keys",
	Long: `Purge cached keys in a namespace. NAMESPACE is "item" or "list";
PATTERN is an optional glob matched against the rest of the key.

Examples:
  # Drop every cached single-item read
  relay cache purge item

  # Drop cached items whose id starts with 12
  relay cache purge item '12*'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := ""
		if len(args) == 2 {
			pattern = args[1]
		}

		c := newAPIClient(cmd)
		defer c.Close()

		purged, err := c.PurgeCache(args[0], pattern)
		if err != nil {
			return fmt.Errorf("failed to purge cache: %w", err)
		}
		fmt.Printf("✓ Purged %d keys\n", purged)
		return nil
	},
}

func init() {
	cacheCmd.PersistentFlags().String("api", "localhost:3000", "Write API address")
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}
