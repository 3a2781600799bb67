package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/assetgate"
	"github.com/sagarc03/assetgate/clientcli"
)

func newClient(t *testing.T, baseURL string) *clientcli.Client {
	t.Helper()
	client, err := clientcli.New(&clientcli.Config{Endpoint: baseURL})
	require.NoError(t, err)
	return client
}

// TestE2E_AssetLifecycle walks one asset through upload, status and
// download against the local backend.
func TestE2E_AssetLifecycle(t *testing.T) {
	baseURL, cleanup := startServer(t, ServerConfig{})
	defer cleanup()

	client := newClient(t, baseURL)
	ctx := context.Background()
	content := []byte("Hello, World!")

	var ticket *clientcli.Ticket

	t.Run("POST /asset issues an upload capability", func(t *testing.T) {
		var err error
		ticket, err = client.RequestUpload(ctx)
		require.NoError(t, err)

		assert.True(t, assetgate.IsValidAssetID(ticket.ID))
		assert.True(t, strings.HasPrefix(ticket.URL, baseURL+"/store/assets/"+ticket.ID+"?"))

		info, err := assetgate.InspectCapability(ticket.URL)
		require.NoError(t, err)
		assert.Equal(t, time.Hour, info.Validity)
		assert.Equal(t, "AGE2ETESTKEY", info.AccessKey)
	})
	require.NotNil(t, ticket)

	t.Run("status of an empty asset is rejected", func(t *testing.T) {
		_, err := client.SetStatus(ctx, ticket.ID, assetgate.StatusUploaded)
		assert.ErrorIs(t, err, clientcli.ErrStoreRejected)
	})

	t.Run("PUT to the upload URL stores the bytes", func(t *testing.T) {
		etag, err := client.PutContent(ctx, ticket.URL, bytes.NewReader(content), int64(len(content)), "text/plain")
		require.NoError(t, err)
		assert.NotEmpty(t, etag)
	})

	t.Run("download before status is refused", func(t *testing.T) {
		_, err := client.RequestDownload(ctx, ticket.ID, 0)
		assert.ErrorIs(t, err, clientcli.ErrNotUploaded)
	})

	t.Run("PUT /asset/{id} records the status", func(t *testing.T) {
		_, err := client.SetStatus(ctx, ticket.ID, assetgate.StatusUploaded)
		require.NoError(t, err)
	})

	t.Run("GET /asset/{id} issues a download capability", func(t *testing.T) {
		download, err := client.RequestDownload(ctx, ticket.ID, 0)
		require.NoError(t, err)

		info, err := assetgate.InspectCapability(download.URL)
		require.NoError(t, err)
		assert.Equal(t, 60*time.Second, info.Validity)

		resp, err := http.Get(download.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, content, body)
	})

	t.Run("download URL does not authorize upload", func(t *testing.T) {
		download, err := client.RequestDownload(ctx, ticket.ID, 0)
		require.NoError(t, err)

		_, err = client.PutContent(ctx, download.URL, strings.NewReader("overwrite"), 9, "text/plain")
		assert.ErrorIs(t, err, clientcli.ErrForbidden)
	})

	t.Run("a later status revokes downloads", func(t *testing.T) {
		_, err := client.SetStatus(ctx, ticket.ID, "quarantined")
		require.NoError(t, err)

		_, err = client.RequestDownload(ctx, ticket.ID, 0)
		assert.ErrorIs(t, err, clientcli.ErrNotUploaded)
	})
}

func TestE2E_UploadAndDownloadFile(t *testing.T) {
	baseURL, cleanup := startServer(t, ServerConfig{})
	defer cleanup()

	client := newClient(t, baseURL)
	ctx := context.Background()

	localPath := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(localPath, []byte(`{"ok":true}`), 0o600))

	result, err := client.Upload(ctx, clientcli.UploadOptions{LocalPath: localPath})
	require.NoError(t, err)
	assert.Equal(t, assetgate.StatusUploaded, result.Status)

	dest := filepath.Join(t.TempDir(), "copy.json")
	download, _, err := client.Download(ctx, clientcli.DownloadOptions{ID: result.ID, LocalPath: dest})
	require.NoError(t, err)
	assert.Equal(t, int64(11), download.Size)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
}

func TestE2E_DownloadTimeout(t *testing.T) {
	baseURL, cleanup := startServer(t, ServerConfig{
		DefaultDownloadTimeout: 120,
		MaxDownloadTimeout:     3600,
	})
	defer cleanup()

	client := newClient(t, baseURL)
	ctx := context.Background()

	result, err := client.Upload(ctx, clientcli.UploadOptions{
		LocalPath: writeFile(t, "a.txt", "a"),
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		timeout  int
		validity time.Duration
	}{
		{name: "configured default", timeout: 0, validity: 120 * time.Second},
		{name: "explicit", timeout: 10, validity: 10 * time.Second},
		{name: "clamped to max", timeout: 86400, validity: time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket, err := client.RequestDownload(ctx, result.ID, tt.timeout)
			require.NoError(t, err)

			info, err := assetgate.InspectCapability(ticket.URL)
			require.NoError(t, err)
			assert.Equal(t, tt.validity, info.Validity)
		})
	}

	for _, raw := range []string{"abc", "0", "-5"} {
		t.Run("invalid "+raw, func(t *testing.T) {
			resp, err := http.Get(baseURL + "/asset/" + result.ID + "?" + url.Values{"timeout": {raw}}.Encode())
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "invalid_timeout", body["error"])
		})
	}
}

func TestE2E_TamperedCapability(t *testing.T) {
	baseURL, cleanup := startServer(t, ServerConfig{})
	defer cleanup()

	client := newClient(t, baseURL)
	ctx := context.Background()

	ticket, err := client.RequestUpload(ctx)
	require.NoError(t, err)

	u, err := url.Parse(ticket.URL)
	require.NoError(t, err)
	q := u.Query()
	q.Set("X-Amz-Expires", "604800")
	u.RawQuery = q.Encode()

	_, err = client.PutContent(ctx, u.String(), strings.NewReader("x"), 1, "")
	assert.ErrorIs(t, err, clientcli.ErrForbidden)
}

func TestE2E_Metrics(t *testing.T) {
	baseURL, cleanup := startServer(t, ServerConfig{Metrics: true})
	defer cleanup()

	client := newClient(t, baseURL)
	ctx := context.Background()

	_, err := client.RequestUpload(ctx)
	require.NoError(t, err)
	_, err = client.RequestDownload(ctx, "0123456789abcdef0123456789abcdef", 0)
	require.Error(t, err)

	resp, err := http.Get(baseURL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `assetgate_operations_total{operation="initiate_upload"} 1`)
	assert.Contains(t, string(body), `assetgate_operations_total{operation="initiate_download"} 1`)
	assert.Contains(t, string(body), `assetgate_operation_errors_total{kind="store_rejected",operation="initiate_download"} 1`)
}

func TestE2E_UnknownRoutes(t *testing.T) {
	baseURL, cleanup := startServer(t, ServerConfig{})
	defer cleanup()

	resp, err := http.Get(baseURL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, baseURL+"/asset/abc", http.NoBody)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(baseURL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "metrics are off by default")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
