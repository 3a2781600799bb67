package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/assetgate/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "assetgate",
	Short:   "Asset lifecycle gateway for S3 compatible object stores",
	Long: `assetgate brokers access to an object store without proxying asset bytes.
Clients receive time-bounded presigned upload and download URLs, and a
download URL is only issued once the asset's status tag reads "uploaded".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file path, repeatable; later files override earlier ones (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("backend", "", "object store backend: s3, minio, local (env: ASSETGATE_STORE_BACKEND)")
	rootCmd.PersistentFlags().String("bucket", "", "bucket holding the assets (env: ASSETGATE_STORE_BUCKET)")
	rootCmd.PersistentFlags().String("region", "", "store region (env: ASSETGATE_STORE_REGION)")
	rootCmd.PersistentFlags().String("endpoint", "", "store endpoint for S3 compatible services (env: ASSETGATE_STORE_ENDPOINT)")
	rootCmd.PersistentFlags().String("data-path", "", "data directory for the local backend (env: ASSETGATE_STORE_LOCAL_PATH)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: ASSETGATE_LOG_LEVEL)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	files, _ := cmd.Flags().GetStringSlice("config")

	cfg, err := config.Load(files, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
