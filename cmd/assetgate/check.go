package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/assetgate/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the object store is reachable",
	Long: `Connect to the configured object store and verify the bucket exists and
is reachable with the configured credentials. Exits non-zero on failure.`,
	RunE: runCheck,
}

var checkTimeout time.Duration

func init() {
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 10*time.Second, "maximum time to wait for the store")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.close()

	if err := store.backend.Ping(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}

	slog.Info("store reachable", "backend", cfg.Store.Backend, "bucket", cfg.Store.Bucket)
	return nil
}
