package clientcli_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/assetgate"
	"github.com/sagarc03/assetgate/clientcli"
)

// fakeGateway serves the gateway API and a naive object store from one
// listener. Content and status are kept per asset id.
type fakeGateway struct {
	mu          sync.Mutex
	content     map[string][]byte
	types       map[string]string
	status      map[string]string
	lastTimeout string
	server      *httptest.Server
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()

	g := &fakeGateway{
		content: make(map[string][]byte),
		types:   make(map[string]string),
		status:  make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /asset", func(w http.ResponseWriter, _ *http.Request) {
		id, err := assetgate.NewAssetID()
		require.NoError(t, err)
		writeJSON(w, http.StatusOK, map[string]string{
			"id":         id,
			"upload_url": g.server.URL + "/store/" + id,
		})
	})
	mux.HandleFunc("PUT /asset/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Status string `json:"Status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": err.Error()})
			return
		}
		g.mu.Lock()
		defer g.mu.Unlock()
		id := r.PathValue("id")
		if _, ok := g.content[id]; !ok {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store_rejected", "message": "no such key"})
			return
		}
		g.status[id] = body.Status
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /asset/{id}", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.lastTimeout = r.URL.Query().Get("timeout")
		id := r.PathValue("id")
		if g.status[id] != assetgate.StatusUploaded {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "invalid_asset_status", "message": "Asset is not uploaded"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"Download_url": g.server.URL + "/store/" + id})
	})
	mux.HandleFunc("PUT /store/{id}", func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		g.mu.Lock()
		defer g.mu.Unlock()
		g.content[r.PathValue("id")] = data
		g.types[r.PathValue("id")] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag-`+r.PathValue("id")[:4]+`"`)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /store/{id}", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		data, ok := g.content[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("<Error><Code>NoSuchKey</Code></Error>"))
			return
		}
		w.Header().Set("Content-Type", g.types[r.PathValue("id")])
		_, _ = w.Write(data)
	})

	g.server = httptest.NewServer(mux)
	t.Cleanup(g.server.Close)
	return g
}

func (g *fakeGateway) client(t *testing.T) *clientcli.Client {
	t.Helper()
	client, err := clientcli.New(&clientcli.Config{Endpoint: g.server.URL + "/"})
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNew(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := clientcli.New(nil)
		assert.ErrorIs(t, err, clientcli.ErrConfigRequired)
	})

	t.Run("empty endpoint uses default", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{})
		require.NoError(t, err)
		assert.Equal(t, clientcli.DefaultEndpoint, client.Endpoint())
	})

	t.Run("trailing slash removed", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{Endpoint: "http://localhost:8080/"})
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080", client.Endpoint())
	})

	t.Run("invalid endpoint", func(t *testing.T) {
		_, err := clientcli.New(&clientcli.Config{Endpoint: "localhost:8080"})
		assert.ErrorIs(t, err, clientcli.ErrInvalidEndpoint)
	})
}

func TestClient_UploadAndDownload(t *testing.T) {
	gateway := newFakeGateway(t)
	client := gateway.client(t)
	ctx := context.Background()

	localPath := writeTempFile(t, "notes.txt", "test content")

	result, err := client.Upload(ctx, clientcli.UploadOptions{LocalPath: localPath})
	require.NoError(t, err)

	assert.True(t, assetgate.IsValidAssetID(result.ID))
	assert.Equal(t, localPath, result.LocalPath)
	assert.Equal(t, "text/plain; charset=utf-8", result.ContentType)
	assert.Equal(t, int64(12), result.Size)
	assert.Equal(t, "etag-"+result.ID[:4], result.ETag)
	assert.Equal(t, assetgate.StatusUploaded, result.Status)
	assert.False(t, result.UploadedAt.IsZero())

	t.Run("to file", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "nested", "copy.txt")

		download, reader, err := client.Download(ctx, clientcli.DownloadOptions{ID: result.ID, LocalPath: dest})
		require.NoError(t, err)
		assert.Nil(t, reader)
		assert.Equal(t, dest, download.LocalPath)
		assert.Equal(t, int64(12), download.Size)

		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, "test content", string(data))
	})

	t.Run("to stdout", func(t *testing.T) {
		download, reader, err := client.Download(ctx, clientcli.DownloadOptions{ID: result.ID, LocalPath: "-"})
		require.NoError(t, err)
		require.NotNil(t, reader)
		defer func() { _ = reader.Close() }()

		assert.Equal(t, "-", download.LocalPath)
		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "test content", string(data))
	})
}

func TestClient_Upload(t *testing.T) {
	t.Run("custom status and content type", func(t *testing.T) {
		gateway := newFakeGateway(t)
		client := gateway.client(t)

		result, err := client.Upload(context.Background(), clientcli.UploadOptions{
			LocalPath:   writeTempFile(t, "data", "{}"),
			ContentType: "application/json",
			Status:      "pending-review",
		})
		require.NoError(t, err)

		assert.Equal(t, "pending-review", result.Status)
		assert.Equal(t, "application/json", gateway.types[result.ID])
		assert.Equal(t, "pending-review", gateway.status[result.ID])
	})

	t.Run("skip status", func(t *testing.T) {
		gateway := newFakeGateway(t)
		client := gateway.client(t)

		result, err := client.Upload(context.Background(), clientcli.UploadOptions{
			LocalPath:  writeTempFile(t, "image.png", "png"),
			SkipStatus: true,
		})
		require.NoError(t, err)
		assert.Empty(t, result.Status)
		assert.Equal(t, "image/png", gateway.types[result.ID])

		_, _, err = client.Download(context.Background(), clientcli.DownloadOptions{ID: result.ID, LocalPath: "-"})
		assert.ErrorIs(t, err, clientcli.ErrNotUploaded)
	})

	t.Run("empty path", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{})
		require.NoError(t, err)

		_, err = client.Upload(context.Background(), clientcli.UploadOptions{})
		assert.ErrorIs(t, err, clientcli.ErrEmptyPath)
	})

	t.Run("missing file", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{})
		require.NoError(t, err)

		_, err = client.Upload(context.Background(), clientcli.UploadOptions{LocalPath: filepath.Join(t.TempDir(), "missing")})
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("directory", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{})
		require.NoError(t, err)

		_, err = client.Upload(context.Background(), clientcli.UploadOptions{LocalPath: t.TempDir()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is a directory")
	})

	t.Run("gateway error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error":   "store_unavailable",
				"message": "Object store is unavailable",
			})
		}))
		defer server.Close()

		client, err := clientcli.New(&clientcli.Config{Endpoint: server.URL})
		require.NoError(t, err)

		_, err = client.Upload(context.Background(), clientcli.UploadOptions{LocalPath: writeTempFile(t, "a.txt", "a")})
		require.Error(t, err)
		assert.ErrorIs(t, err, clientcli.ErrStoreUnavailable)

		var apiErr *clientcli.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
		assert.Equal(t, "Object store is unavailable", apiErr.Message)
	})
}

func TestClient_UploadFiles(t *testing.T) {
	gateway := newFakeGateway(t)
	client := gateway.client(t)

	good := writeTempFile(t, "good.txt", "ok")
	missing := filepath.Join(t.TempDir(), "missing.txt")

	results, err := client.UploadFiles(context.Background(), []string{good, missing}, clientcli.UploadOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, good, results[0].LocalPath)
	require.Error(t, results[1].Err)
	assert.Equal(t, missing, results[1].LocalPath)
	assert.True(t, clientcli.HasUploadErrors(results))
	assert.False(t, clientcli.HasUploadErrors(results[:1]))

	_, err = client.UploadFiles(context.Background(), nil, clientcli.UploadOptions{})
	assert.ErrorIs(t, err, clientcli.ErrEmptyPath)
}

func TestClient_SetStatus(t *testing.T) {
	gateway := newFakeGateway(t)
	client := gateway.client(t)
	ctx := context.Background()

	t.Run("unknown asset", func(t *testing.T) {
		_, err := client.SetStatus(ctx, "0123456789abcdef0123456789abcdef", "uploaded")
		assert.ErrorIs(t, err, clientcli.ErrStoreRejected)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := client.SetStatus(ctx, "", "uploaded")
		assert.ErrorIs(t, err, clientcli.ErrEmptyID)
	})

	t.Run("records status", func(t *testing.T) {
		ticket, err := client.RequestUpload(ctx)
		require.NoError(t, err)
		_, err = client.PutContent(ctx, ticket.URL, strings.NewReader("x"), 1, "")
		require.NoError(t, err)

		result, err := client.SetStatus(ctx, ticket.ID, "quarantined")
		require.NoError(t, err)
		assert.Equal(t, &clientcli.StatusResult{ID: ticket.ID, Status: "quarantined"}, result)
		assert.Equal(t, "quarantined", gateway.status[ticket.ID])
	})
}

func TestClient_RequestDownload(t *testing.T) {
	ctx := context.Background()

	t.Run("timeout parameter", func(t *testing.T) {
		gateway := newFakeGateway(t)
		client := gateway.client(t)

		result, err := client.Upload(ctx, clientcli.UploadOptions{LocalPath: writeTempFile(t, "f", "x")})
		require.NoError(t, err)

		_, err = client.RequestDownload(ctx, result.ID, 0)
		require.NoError(t, err)
		assert.Empty(t, gateway.lastTimeout)

		ticket, err := client.RequestDownload(ctx, result.ID, 300)
		require.NoError(t, err)
		assert.Equal(t, "300", gateway.lastTimeout)
		assert.Equal(t, result.ID, ticket.ID)
		assert.Equal(t, gateway.server.URL+"/store/"+result.ID, ticket.URL)
		assert.True(t, ticket.ExpiresAt.IsZero())
	})

	t.Run("configured timeout", func(t *testing.T) {
		gateway := newFakeGateway(t)
		client, err := clientcli.New(&clientcli.Config{Endpoint: gateway.server.URL, DownloadTimeout: 900})
		require.NoError(t, err)

		result, err := client.Upload(ctx, clientcli.UploadOptions{LocalPath: writeTempFile(t, "f", "x")})
		require.NoError(t, err)

		_, err = client.RequestDownload(ctx, result.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, "900", gateway.lastTimeout)

		_, err = client.RequestDownload(ctx, result.ID, 30)
		require.NoError(t, err)
		assert.Equal(t, "30", gateway.lastTimeout)
	})

	t.Run("not uploaded", func(t *testing.T) {
		gateway := newFakeGateway(t)
		client := gateway.client(t)

		_, err := client.RequestDownload(ctx, "0123456789abcdef0123456789abcdef", 0)
		assert.ErrorIs(t, err, clientcli.ErrNotUploaded)
		assert.NotErrorIs(t, err, clientcli.ErrNotFound)
	})

	t.Run("empty id", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{})
		require.NoError(t, err)

		_, err = client.RequestDownload(ctx, "", 0)
		assert.ErrorIs(t, err, clientcli.ErrEmptyID)
	})

	t.Run("expiry read from presigned url", func(t *testing.T) {
		issued := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
		signed, err := assetgate.Signer{
			Region:    "us-east-1",
			Service:   "s3",
			AccessKey: "AKIDEXAMPLE",
			SecretKey: "secret",
		}.Presign(http.MethodGet, "http://store.example.com/assets/abc", issued, 2*time.Minute)
		require.NoError(t, err)

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"Download_url": signed})
		}))
		defer server.Close()

		client, err := clientcli.New(&clientcli.Config{Endpoint: server.URL})
		require.NoError(t, err)

		ticket, err := client.RequestDownload(ctx, "abc", 120)
		require.NoError(t, err)
		assert.Equal(t, issued.Add(2*time.Minute), ticket.ExpiresAt)
	})
}

func TestClient_PutContent(t *testing.T) {
	t.Run("store refusal", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("<Error><Code>SignatureDoesNotMatch</Code></Error>"))
		}))
		defer server.Close()

		client, err := clientcli.New(&clientcli.Config{})
		require.NoError(t, err)

		_, err = client.PutContent(context.Background(), server.URL+"/store/x", strings.NewReader("x"), 1, "text/plain")
		require.Error(t, err)
		assert.ErrorIs(t, err, clientcli.ErrForbidden)

		var apiErr *clientcli.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Empty(t, apiErr.Code)
		assert.Contains(t, apiErr.Error(), "SignatureDoesNotMatch")
	})
}

func TestClient_Inspect(t *testing.T) {
	issued := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	signed, err := assetgate.Signer{
		Region:    "us-east-1",
		Service:   "s3",
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "secret",
	}.Presign(http.MethodPut, "http://localhost:8080/store/assets/abc", issued, time.Hour)
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{}, clientcli.WithClock(func() time.Time {
			return issued.Add(30 * time.Minute)
		}))
		require.NoError(t, err)

		result, err := client.Inspect(signed)
		require.NoError(t, err)
		assert.Equal(t, "AKIDEXAMPLE", result.AccessKey)
		assert.Equal(t, issued, result.IssuedAt)
		assert.Equal(t, int64(3600), result.ValiditySeconds)
		assert.Equal(t, issued.Add(time.Hour), result.ExpiresAt)
		assert.False(t, result.Expired)
	})

	t.Run("expired", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{}, clientcli.WithClock(func() time.Time {
			return issued.Add(time.Hour)
		}))
		require.NoError(t, err)

		result, err := client.Inspect(signed)
		require.NoError(t, err)
		assert.True(t, result.Expired)
	})

	t.Run("not presigned", func(t *testing.T) {
		client, err := clientcli.New(&clientcli.Config{})
		require.NoError(t, err)

		_, err = client.Inspect("http://localhost:8080/store/assets/abc")
		assert.ErrorIs(t, err, assetgate.ErrInvalidCapability)
	})
}

func TestAPIError(t *testing.T) {
	t.Run("matches status code", func(t *testing.T) {
		err := &clientcli.APIError{StatusCode: http.StatusNotFound, Body: "missing"}
		assert.ErrorIs(t, err, clientcli.ErrNotFound)
		assert.NotErrorIs(t, err, clientcli.ErrForbidden)
		assert.True(t, err.IsNotFound())
		assert.Equal(t, "server error: 404 - missing", err.Error())
	})

	t.Run("matches code", func(t *testing.T) {
		err := &clientcli.APIError{StatusCode: http.StatusInternalServerError, Code: "invalid_asset_status", Message: "Asset is not uploaded"}
		assert.ErrorIs(t, err, clientcli.ErrNotUploaded)
		assert.NotErrorIs(t, err, clientcli.ErrStoreRejected)
		assert.Equal(t, "server error: 500 invalid_asset_status: Asset is not uploaded", err.Error())
	})

	t.Run("wrapped", func(t *testing.T) {
		err := errors.Join(errors.New("context"), &clientcli.APIError{StatusCode: http.StatusBadRequest})
		assert.ErrorIs(t, err, clientcli.ErrBadRequest)
	})
}
