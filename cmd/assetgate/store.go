package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sagarc03/assetgate"
	"github.com/sagarc03/assetgate/config"
	assethttp "github.com/sagarc03/assetgate/http"
	"github.com/sagarc03/assetgate/keybackend"
	"github.com/sagarc03/assetgate/localstore"
	"github.com/sagarc03/assetgate/miniostore"
	"github.com/sagarc03/assetgate/s3store"
)

// backend is an object store the server can also health check.
type backend interface {
	assetgate.ObjectStore
	Ping(ctx context.Context) error
}

// openedStore is the configured backend plus what the server needs to run it.
type openedStore struct {
	backend backend
	// handler serves presigned object requests; only the local backend has one.
	handler http.Handler
	close   func()
}

func openStore(ctx context.Context, cfg *config.Config) (*openedStore, error) {
	sc := cfg.Store

	switch sc.Backend {
	case "s3":
		store, err := s3store.New(ctx, s3store.Config{
			Bucket:       sc.Bucket,
			Region:       sc.Region,
			Endpoint:     sc.Endpoint,
			AccessKey:    sc.AccessKey,
			SecretKey:    sc.SecretKey,
			UsePathStyle: sc.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		return &openedStore{backend: store, close: func() {}}, nil

	case "minio":
		store, err := miniostore.New(ctx, miniostore.Config{
			Endpoint:     sc.Endpoint,
			AccessKey:    sc.AccessKey,
			SecretKey:    sc.SecretKey,
			Bucket:       sc.Bucket,
			Region:       sc.Region,
			UseSSL:       sc.UseSSL,
			CreateBucket: sc.CreateBucket,
		})
		if err != nil {
			return nil, err
		}
		return &openedStore{backend: store, close: func() {}}, nil

	case "local":
		accessKey, secretKey := sc.AccessKey, sc.SecretKey
		if accessKey == "" {
			// Capabilities are minted and verified by this process, so
			// ephemeral keys work; URLs just do not survive a restart.
			accessKey = "AG" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:18])
			secretKey = strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
			slog.Warn("local store has no credentials configured, using ephemeral keys", "access_key", accessKey)
		}

		previous, err := keybackend.Load(sc.Local.PreviousKeys)
		if err != nil {
			return nil, fmt.Errorf("load previous keys: %w", err)
		}
		if n := previous.Len(); n > 0 {
			slog.Info("accepting capabilities signed with previous keys", "count", n)
		}

		store, err := localstore.Open(ctx, localstore.Config{
			Path:         sc.Local.Path,
			DSN:          sc.Local.DSN,
			Table:        sc.Local.Table,
			Bucket:       sc.Bucket,
			BaseURL:      strings.TrimSuffix(cfg.Server.PublicURL, "/") + assethttp.StorePrefix,
			Region:       sc.Region,
			AccessKey:    accessKey,
			SecretKey:    secretKey,
			PreviousKeys: previous,
		})
		if err != nil {
			return nil, err
		}
		return &openedStore{
			backend: store,
			handler: store.Handler(),
			close: func() {
				if err := store.Close(); err != nil {
					slog.Error("close local store", "err", err)
				}
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
	}
}
