package main

import (
	"os"

	"github.com/spf13/cobra"
)

var inspectShowSecrets bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <presigned-url>",
	Short: "Show the validity window of a presigned URL",
	Long: `Decode the X-Amz-* parameters of a presigned URL and report when it
was issued and when it expires. Nothing is sent over the network and the
signature is not checked.

Examples:
  assetctl inspect "$(assetctl url -q 4f9c2d7e8b1a4c3d9e0f1a2b3c4d5e6f)"`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectShowSecrets, "show-secrets", false, "show the full access key")
}

func runInspect(_ *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	result, err := client.Inspect(args[0])
	if err != nil {
		return handleError(err)
	}

	return getFormatter().FormatInspect(os.Stdout, result, inspectShowSecrets)
}
