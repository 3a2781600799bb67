package main

import (
	"os"

	"github.com/spf13/cobra"
)

var urlTimeout int

var urlCmd = &cobra.Command{
	Use:   "url <asset-id>",
	Short: "Print a download URL for an uploaded asset",
	Long: `Request a presigned download URL and print it without fetching the
content. Anyone holding the URL can download the asset until it expires.

Examples:
  assetctl url 4f9c2d7e8b1a4c3d9e0f1a2b3c4d5e6f
  assetctl url --timeout 3600 -q 4f9c2d7e8b1a4c3d9e0f1a2b3c4d5e6f`,
	Args: cobra.ExactArgs(1),
	RunE: runURL,
}

func init() {
	urlCmd.Flags().IntVar(&urlTimeout, "timeout", 0, "URL validity in seconds (default: profile or server setting)")
}

func runURL(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	ticket, err := client.RequestDownload(cmd.Context(), args[0], urlTimeout)
	if err != nil {
		return handleError(err)
	}

	return getFormatter().FormatTicket(os.Stdout, ticket)
}
