package main

import (
	"os"

	"github.com/sagarc03/assetgate/clientcli"
	"github.com/spf13/cobra"
)

var (
	uploadContentType string
	uploadStatus      string
	uploadNoStatus    bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <local-path> [local-path...]",
	Short: "Upload files as new assets",
	Long: `Upload one or more files. Each file becomes a new asset with its own id.

For every file assetctl requests an upload URL from the gateway, sends the
content to the store, then records the status "uploaded" so the asset can
be downloaded. Use --status to record something else, or --no-status to
leave the asset untagged.

Examples:
  assetctl upload ./photo.jpg
  assetctl upload -q ./a.png ./b.png > ids.txt
  assetctl upload --content-type application/json ./data
  assetctl upload --no-status ./draft.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadContentType, "content-type", "t", "", "override content-type")
	uploadCmd.Flags().StringVar(&uploadStatus, "status", "", `status to record after upload (default "uploaded")`)
	uploadCmd.Flags().BoolVar(&uploadNoStatus, "no-status", false, "do not record a status")
	uploadCmd.MarkFlagsMutuallyExclusive("status", "no-status")
}

func runUpload(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	opts := clientcli.UploadOptions{
		ContentType: uploadContentType,
		Status:      uploadStatus,
		SkipStatus:  uploadNoStatus,
	}

	results, err := client.UploadFiles(cmd.Context(), args, opts)
	if err != nil {
		return handleError(err)
	}

	formatter := getFormatter()
	if err := formatter.FormatUpload(os.Stdout, results); err != nil {
		return err
	}

	if clientcli.HasUploadErrors(results) {
		return &exitError{code: 1}
	}

	return nil
}
