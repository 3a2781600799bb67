package main

import (
	"io"
	"os"

	"github.com/sagarc03/assetgate/clientcli"
	"github.com/spf13/cobra"
)

var (
	downloadOutput  string
	downloadStdout  bool
	downloadTimeout int
)

var downloadCmd = &cobra.Command{
	Use:   "download <asset-id> [local-path]",
	Short: "Download an uploaded asset",
	Long: `Download an asset. The asset must have been marked "uploaded".

The local path defaults to the asset id.

Examples:
  assetctl download 4f9c2d7e8b1a4c3d9e0f1a2b3c4d5e6f
  assetctl download 4f9c2d7e8b1a4c3d9e0f1a2b3c4d5e6f ./photo.jpg
  assetctl download --stdout 4f9c2d7e8b1a4c3d9e0f1a2b3c4d5e6f | jq .
  assetctl download --timeout 10 -o ./out.bin 4f9c2d7e8b1a4c3d9e0f1a2b3c4d5e6f`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "output file path")
	downloadCmd.Flags().BoolVar(&downloadStdout, "stdout", false, "write to stdout")
	downloadCmd.Flags().IntVar(&downloadTimeout, "timeout", 0, "download URL validity in seconds (default: profile or server setting)")
}

func runDownload(cmd *cobra.Command, args []string) error {
	localPath := ""
	if len(args) > 1 {
		localPath = args[1]
	}
	if downloadOutput != "" {
		localPath = downloadOutput
	}
	if downloadStdout {
		localPath = "-"
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	opts := clientcli.DownloadOptions{
		ID:        args[0],
		LocalPath: localPath,
		Timeout:   downloadTimeout,
	}

	result, reader, err := client.Download(cmd.Context(), opts)
	if err != nil {
		return handleError(err)
	}

	if reader != nil {
		defer func() { _ = reader.Close() }()
		written, err := io.Copy(os.Stdout, reader)
		if err != nil {
			return err
		}
		result.Size = written
		// Metadata goes to stderr so stdout stays clean
		if jsonOutput {
			return getFormatter().FormatDownload(os.Stderr, result)
		}
		return nil
	}

	return getFormatter().FormatDownload(os.Stdout, result)
}
