package main

import (
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <asset-id> <status>",
	Short: "Record a status against an asset",
	Long: `Record a status against an asset, replacing any status recorded before.

Only the status "uploaded" makes an asset downloadable. The asset must
already exist in the store.

Examples:
  assetctl status 4f9c2d7e8b1a4c3d9e0f1a2b3c4d5e6f uploaded
  assetctl status 4f9c2d7e8b1a4c3d9e0f1a2b3c4d5e6f quarantined`,
	Args: cobra.ExactArgs(2),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	result, err := client.SetStatus(cmd.Context(), args[0], args[1])
	if err != nil {
		return handleError(err)
	}

	return getFormatter().FormatStatus(os.Stdout, result)
}
