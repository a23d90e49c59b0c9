package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/cuemby/relay/pkg/client"
	"github.com/cuemby/relay/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Content commands
var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Create, like and inspect content through the write API",
}

var contentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a content record",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		media, _ := cmd.Flags().GetString("media")
		caption, _ := cmd.Flags().GetString("caption")

		c := newAPIClient(cmd)
		defer c.Close()

		content, err := c.CreateContent(owner, media, caption)
		if err != nil {
			return fmt.Errorf("failed to create content: %w", err)
		}
		fmt.Printf("✓ Content created: %d\n", content.ID)
		return nil
	},
}

var contentLikeCmd = &cobra.Command{
	Use:   "like ID",
	Short: "Add one like to a content record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		c := newAPIClient(cmd)
		defer c.Close()

		content, err := c.LikeContent(id)
		if err != nil {
			return fmt.Errorf("failed to like content: %w", err)
		}
		fmt.Printf("✓ Content %d now has %d likes\n", content.ID, content.Likes)
		return nil
	},
}

var contentGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show a content record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		c := newAPIClient(cmd)
		defer c.Close()

		content, err := c.GetContent(id)
		if err != nil {
			return fmt.Errorf("failed to get content: %w", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(content)
	},
}

var contentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the newest content records",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newAPIClient(cmd)
		defer c.Close()

		contents, err := c.ListContent()
		if err != nil {
			return fmt.Errorf("failed to list content: %w", err)
		}
		if len(contents) == 0 {
			fmt.Println("No content found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tOWNER\tLIKES\tMEDIA\tCREATED")
		for _, content := range contents {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
				content.ID, content.OwnerID, content.Likes, content.MediaURL,
				content.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var contentApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create content records from a YAML file",
	Long: `Create every content record listed in a YAML file.

Example file:
  items:
    - ownerId: u1
      mediaUrl: /cdn/2024/intro.mp4
      caption: hello
    - ownerId: u2
      mediaUrl: /cdn/2024/clip.mp4`,
	RunE: runContentApply,
}

// ContentFile is the YAML document accepted by content apply
type ContentFile struct {
	Items []types.NewContent `yaml:"items"`
}

func init() {
	contentCreateCmd.Flags().String("owner", "", "Owner user ID (required)")
	contentCreateCmd.Flags().String("media", "", "Media URL under /cdn/ (required)")
	contentCreateCmd.Flags().String("caption", "", "Optional caption")
	_ = contentCreateCmd.MarkFlagRequired("owner")
	_ = contentCreateCmd.MarkFlagRequired("media")

	contentApplyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	_ = contentApplyCmd.MarkFlagRequired("file")

	contentCmd.PersistentFlags().String("api", "localhost:3000", "Write API address")

	contentCmd.AddCommand(contentCreateCmd)
	contentCmd.AddCommand(contentLikeCmd)
	contentCmd.AddCommand(contentGetCmd)
	contentCmd.AddCommand(contentListCmd)
	contentCmd.AddCommand(contentApplyCmd)
	rootCmd.AddCommand(contentCmd)
}

func runContentApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	var file ContentFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(file.Items) == 0 {
		return fmt.Errorf("%s contains no items", filename)
	}

	c := newAPIClient(cmd)
	defer c.Close()

	for i, item := range file.Items {
		content, err := c.CreateContent(item.OwnerID, item.MediaURL, item.Caption)
		if err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		fmt.Printf("✓ Content created: %d (%s)\n", content.ID, content.MediaURL)
	}
	return nil
}

func newAPIClient(cmd *cobra.Command) *client.Client {
	addr, _ := cmd.Flags().GetString("api")
	return client.NewClient(addr)
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid content id %q", s)
	}
	return id, nil
}
