package clientcli_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/assetgate/clientcli"
)

const testAssetID = "0123456789abcdef0123456789abcdef"

func TestNewFormatter(t *testing.T) {
	t.Run("json formatter", func(t *testing.T) {
		formatter := clientcli.NewFormatter(true, false)
		_, ok := formatter.(*clientcli.JSONFormatter)
		assert.True(t, ok)
	})

	t.Run("human formatter", func(t *testing.T) {
		formatter := clientcli.NewFormatter(false, false)
		_, ok := formatter.(*clientcli.HumanFormatter)
		assert.True(t, ok)
	})

	t.Run("human formatter quiet", func(t *testing.T) {
		formatter := clientcli.NewFormatter(false, true)
		hf, ok := formatter.(*clientcli.HumanFormatter)
		require.True(t, ok)
		assert.True(t, hf.Quiet)
	})
}

func TestHumanFormatter_FormatUpload(t *testing.T) {
	results := []clientcli.UploadResult{
		{
			LocalPath: "local.txt",
			ID:        testAssetID,
			Size:      1024,
			ETag:      "abc123",
			Status:    "uploaded",
		},
		{
			LocalPath: "raw.bin",
			ID:        "fedcba9876543210fedcba9876543210",
			Size:      10,
		},
		{
			LocalPath: "broken.txt",
			Err:       errors.New("upload failed"),
		},
	}

	t.Run("verbose", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatUpload(&buf, results))

		output := buf.String()
		assert.Contains(t, output, "Uploaded: local.txt -> "+testAssetID+" (1.0 KB)")
		assert.Contains(t, output, "ETag: abc123")
		assert.Contains(t, output, "Status: uploaded")
		assert.Contains(t, output, "Status: (not recorded)")
		assert.Contains(t, output, "Error: broken.txt - upload failed")
	})

	t.Run("quiet prints ids", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{Quiet: true}).FormatUpload(&buf, results[:2]))

		assert.Equal(t, testAssetID+"\nfedcba9876543210fedcba9876543210\n", buf.String())
	})
}

func TestHumanFormatter_FormatDownload(t *testing.T) {
	t.Run("to file", func(t *testing.T) {
		var buf bytes.Buffer
		err := (&clientcli.HumanFormatter{}).FormatDownload(&buf, &clientcli.DownloadResult{
			ID:        testAssetID,
			LocalPath: "local.txt",
			Size:      2048,
			ETag:      "etag123",
		})
		require.NoError(t, err)

		output := buf.String()
		assert.Contains(t, output, "Downloaded: "+testAssetID+" -> local.txt")
		assert.Contains(t, output, "2.0 KB")
		assert.Contains(t, output, "ETag: etag123")
	})

	t.Run("unknown size", func(t *testing.T) {
		var buf bytes.Buffer
		err := (&clientcli.HumanFormatter{}).FormatDownload(&buf, &clientcli.DownloadResult{
			ID:        testAssetID,
			LocalPath: "-",
			Size:      -1,
		})
		require.NoError(t, err)
		assert.Equal(t, "Downloaded: "+testAssetID+" (unknown size)\n", buf.String())
	})

	t.Run("quiet", func(t *testing.T) {
		var buf bytes.Buffer
		err := (&clientcli.HumanFormatter{Quiet: true}).FormatDownload(&buf, &clientcli.DownloadResult{ID: testAssetID})
		require.NoError(t, err)
		assert.Empty(t, buf.String())
	})
}

func TestHumanFormatter_FormatStatus(t *testing.T) {
	var buf bytes.Buffer
	err := (&clientcli.HumanFormatter{}).FormatStatus(&buf, &clientcli.StatusResult{ID: testAssetID, Status: "uploaded"})
	require.NoError(t, err)
	assert.Equal(t, "Status of "+testAssetID+" set to \"uploaded\"\n", buf.String())
}

func TestHumanFormatter_FormatTicket(t *testing.T) {
	ticket := &clientcli.Ticket{
		ID:        testAssetID,
		URL:       "http://localhost:8080/store/assets/" + testAssetID,
		ExpiresAt: time.Date(2025, 1, 15, 11, 0, 0, 0, time.UTC),
	}

	t.Run("verbose", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatTicket(&buf, ticket))

		output := buf.String()
		assert.Contains(t, output, "ID:      "+testAssetID)
		assert.Contains(t, output, "URL:     "+ticket.URL)
		assert.Contains(t, output, "Expires: 2025-01-15T11:00:00Z")
	})

	t.Run("quiet prints the url only", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{Quiet: true}).FormatTicket(&buf, ticket))
		assert.Equal(t, ticket.URL+"\n", buf.String())
	})
}

func TestHumanFormatter_FormatInspect(t *testing.T) {
	result := &clientcli.InspectResult{
		AccessKey:       "AKIDEXAMPLE1234",
		IssuedAt:        time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
		ValiditySeconds: 3600,
		ExpiresAt:       time.Date(2025, 1, 15, 11, 0, 0, 0, time.UTC),
		Expired:         true,
	}

	var buf bytes.Buffer
	require.NoError(t, (&clientcli.HumanFormatter{}).FormatInspect(&buf, result, false))

	output := buf.String()
	assert.Contains(t, output, "Access Key: AKID...1234")
	assert.Contains(t, output, "Issued:     2025-01-15T10:00:00Z")
	assert.Contains(t, output, "Validity:   1h0m0s")
	assert.Contains(t, output, "Expires:    2025-01-15T11:00:00Z (expired)")

	buf.Reset()
	require.NoError(t, (&clientcli.HumanFormatter{}).FormatInspect(&buf, result, true))
	assert.Contains(t, buf.String(), "Access Key: AKIDEXAMPLE1234")
}

func TestJSONFormatter_FormatUpload(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	results := []clientcli.UploadResult{
		{
			LocalPath:   "local.txt",
			ID:          testAssetID,
			ContentType: "text/plain",
			ETag:        "abc123",
			Size:        1024,
			Status:      "uploaded",
			UploadedAt:  now,
		},
		{
			LocalPath: "broken.txt",
			Err:       errors.New("upload failed"),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, (&clientcli.JSONFormatter{}).FormatUpload(&buf, results))

	var output []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &output))

	require.Len(t, output, 2)
	assert.Equal(t, "local.txt", output[0]["local_path"])
	assert.Equal(t, testAssetID, output[0]["id"])
	assert.Equal(t, "uploaded", output[0]["status"])
	assert.Equal(t, "2025-01-15T10:00:00Z", output[0]["uploaded_at"])
	assert.NotContains(t, output[0], "error")
	assert.Equal(t, "upload failed", output[1]["error"])
	assert.NotContains(t, output[1], "id")
}

func TestJSONFormatter_FormatTicket(t *testing.T) {
	var buf bytes.Buffer
	err := (&clientcli.JSONFormatter{}).FormatTicket(&buf, &clientcli.Ticket{ID: testAssetID, URL: "http://x/y"})
	require.NoError(t, err)

	var output map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &output))
	assert.Equal(t, map[string]any{"id": testAssetID, "url": "http://x/y"}, output)
}

func TestJSONFormatter_FormatInspect(t *testing.T) {
	result := &clientcli.InspectResult{
		URL:             "http://x/y",
		AccessKey:       "AKIDEXAMPLE1234",
		ValiditySeconds: 60,
	}

	var buf bytes.Buffer
	require.NoError(t, (&clientcli.JSONFormatter{}).FormatInspect(&buf, result, false))

	var output map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &output))
	assert.Equal(t, "AKID...1234", output["access_key"])
	assert.InDelta(t, 60, output["validity_seconds"], 0)
	assert.Equal(t, "AKIDEXAMPLE1234", result.AccessKey, "input is not mutated")
}

func TestJSONFormatter_FormatError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&clientcli.JSONFormatter{}).FormatError(&buf, errors.New("test error")))

	var output map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &output))
	assert.Equal(t, "test error", output["error"])
}

func TestFormatProfiles(t *testing.T) {
	profiles := []clientcli.Profile{
		{Name: "local", Endpoint: "http://localhost:8080"},
		{Name: "prod", Endpoint: "https://assets.example.com", DownloadTimeout: 600, Default: true},
	}

	t.Run("human list", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatProfileList(&buf, profiles, "prod"))

		output := buf.String()
		assert.Contains(t, output, "NAME")
		assert.Contains(t, output, "TIMEOUT")
		assert.Contains(t, output, "(server)")
		assert.Contains(t, output, "10m0s")
		assert.Contains(t, output, "* prod")
		assert.Contains(t, output, "  local")
	})

	t.Run("human show", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatProfileShow(&buf, profiles[1], true))

		output := buf.String()
		assert.Contains(t, output, "Name:     prod (default)")
		assert.Contains(t, output, "Endpoint: https://assets.example.com")
		assert.Contains(t, output, "Timeout:  10m0s")
	})

	t.Run("json list", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.JSONFormatter{}).FormatProfileList(&buf, profiles, "prod"))

		var output struct {
			Profiles []struct {
				Name            string `json:"name"`
				DownloadTimeout int    `json:"download_timeout"`
				Default         bool   `json:"default"`
			} `json:"profiles"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &output))
		require.Len(t, output.Profiles, 2)
		assert.False(t, output.Profiles[0].Default)
		assert.True(t, output.Profiles[1].Default)
		assert.Equal(t, 600, output.Profiles[1].DownloadTimeout)
	})

	t.Run("json show", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.JSONFormatter{}).FormatProfileShow(&buf, profiles[0], false))

		var output map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &output))
		assert.Equal(t, "local", output["name"])
		assert.Equal(t, false, output["default"])
	})
}
