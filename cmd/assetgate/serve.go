package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sagarc03/assetgate"
	"github.com/sagarc03/assetgate/config"
	assethttp "github.com/sagarc03/assetgate/http"
	"github.com/sagarc03/assetgate/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the assetgate HTTP server.

The store is pinged before the listener opens; a store that cannot be
reached aborts start-up. With the local backend the server also serves the
presigned object URLs under /store.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8080, "HTTP server port (env: ASSETGATE_SERVER_PORT)")
	serveCmd.Flags().String("public-url", "", "origin clients reach the server at (env: ASSETGATE_SERVER_PUBLIC_URL)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.close()

	if err = store.backend.Ping(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	slog.Info("connected to store", "backend", cfg.Store.Backend, "bucket", cfg.Store.Bucket)

	tracerProvider, shutdownTracing, err := setupTracing(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Error("tracing shutdown error", "err", err)
		}
	}()

	gatewayCfg := assetgate.GatewayConfig{
		MaxDownloadTimeout: cfg.Gateway.MaxDownloadTimeout,
		TracerProvider:     tracerProvider,
	}

	handlerConfig := assethttp.HandlerConfig{
		DefaultDownloadTimeout: cfg.Gateway.DefaultDownloadTimeout,
		CORS:                   cfg.CORS,
		Logger:                 slog.Default(),
		Health:                 store.backend,
		Store:                  store.handler,
	}

	if cfg.Metrics.Enabled {
		observer, err := metrics.NewPrometheusObserver(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)
		if err != nil {
			return fmt.Errorf("create metrics observer: %w", err)
		}
		gatewayCfg.Observer = observer
		handlerConfig.Metrics = metrics.Handler(prometheus.DefaultGatherer)
		handlerConfig.MetricsPath = cfg.Metrics.Path
	}

	gateway, err := assetgate.NewGateway(store.backend, gatewayCfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	handler := assethttp.NewHandler(&handlerConfig, gateway)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server", "addr", addr, "public_url", cfg.Server.PublicURL, "backend", cfg.Store.Backend)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	// Let in-flight requests finish before the store is closed
	<-shutdownDone
	return nil
}
