package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sagarc03/assetgate"
	"github.com/sagarc03/assetgate/config"
)

var tagsCmd = &cobra.Command{
	Use:   "tags <asset-id>",
	Short: "Print the tags the store holds for an asset",
	Long: `Read the asset's tag set straight from the object store, in store order.
Useful to see why a download is refused.`,
	Args: cobra.ExactArgs(1),
	RunE: runTags,
}

func init() {
	rootCmd.AddCommand(tagsCmd)
}

func runTags(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.close()

	tags, err := store.backend.GetTags(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get tags: %w", err)
	}

	out := struct {
		ID       string          `json:"id"`
		Tags     []assetgate.Tag `json:"tags"`
		Uploaded bool            `json:"uploaded"`
	}{ID: args[0], Tags: tags, Uploaded: assetgate.IsUploaded(tags)}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
