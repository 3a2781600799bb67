package clientcli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sagarc03/assetgate"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 30 * time.Second

// Client performs operations against an asset gateway.
type Client struct {
	config     *Config
	httpClient *http.Client
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithClock overrides the time source used to stamp results.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a new Client with the given config and options.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config: &Config{
			Endpoint:        strings.TrimSuffix(cfg.Endpoint, "/"),
			DownloadTimeout: cfg.DownloadTimeout,
		},
		httpClient: &http.Client{Timeout: DefaultTimeout},
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Endpoint returns the normalized gateway URL.
func (c *Client) Endpoint() string {
	return c.config.Endpoint
}

// RequestUpload asks the gateway for a new asset id and upload URL.
func (c *Client) RequestUpload(ctx context.Context) (*Ticket, error) {
	body, err := c.do(ctx, http.MethodPost, c.config.Endpoint+"/asset", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("request upload: %w", err)
	}

	var capability assetgate.UploadCapability
	if err := json.Unmarshal(body, &capability); err != nil {
		return nil, fmt.Errorf("request upload: parse response: %w", err)
	}
	if capability.ID == "" || capability.UploadURL == "" {
		return nil, fmt.Errorf("request upload: incomplete response: %s", body)
	}

	return newTicket(capability.ID, capability.UploadURL), nil
}

// PutContent sends content to a presigned upload URL and returns the ETag
// reported by the store.
func (c *Client) PutContent(ctx context.Context, uploadURL string, content io.Reader, size int64, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, content)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.ContentLength = size

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", parseServerError(resp.StatusCode, body)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return strings.Trim(resp.Header.Get("ETag"), `"`), nil
}

// SetStatus records status against the asset. The gateway treats
// "uploaded" as the marker that makes an asset downloadable.
func (c *Client) SetStatus(ctx context.Context, id, status string) (*StatusResult, error) {
	if id == "" {
		return nil, fmt.Errorf("set status: %w", ErrEmptyID)
	}

	payload, err := json.Marshal(statusBody{Status: status})
	if err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}

	if _, err := c.do(ctx, http.MethodPut, c.assetURL(id), bytes.NewReader(payload)); err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}

	return &StatusResult{ID: id, Status: status}, nil
}

// RequestDownload asks the gateway for a download URL valid for timeout
// seconds. A zero timeout falls back to the configured one, and if that is
// zero too the parameter is omitted.
func (c *Client) RequestDownload(ctx context.Context, id string, timeout int) (*Ticket, error) {
	if id == "" {
		return nil, fmt.Errorf("request download: %w", ErrEmptyID)
	}
	if timeout == 0 {
		timeout = c.config.DownloadTimeout
	}

	target := c.assetURL(id)
	if timeout != 0 {
		target += "?" + url.Values{"timeout": {strconv.Itoa(timeout)}}.Encode()
	}

	body, err := c.do(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("request download: %w", err)
	}

	var capability assetgate.DownloadCapability
	if err := json.Unmarshal(body, &capability); err != nil {
		return nil, fmt.Errorf("request download: parse response: %w", err)
	}
	if capability.DownloadURL == "" {
		return nil, fmt.Errorf("request download: incomplete response: %s", body)
	}

	return newTicket(id, capability.DownloadURL), nil
}

// Upload runs the whole upload flow for one file: request a capability,
// send the bytes to the store, then record the status.
func (c *Client) Upload(ctx context.Context, opts UploadOptions) (UploadResult, error) {
	if opts.LocalPath == "" {
		return UploadResult{}, fmt.Errorf("upload: %w", ErrEmptyPath)
	}

	file, err := os.Open(opts.LocalPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return UploadResult{}, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return UploadResult{}, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return UploadResult{}, fmt.Errorf("upload: %s is a directory", opts.LocalPath)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = detectContentType(opts.LocalPath)
	}

	ticket, err := c.RequestUpload(ctx)
	if err != nil {
		return UploadResult{}, err
	}

	result := UploadResult{
		LocalPath:   opts.LocalPath,
		ID:          ticket.ID,
		ContentType: contentType,
		Size:        info.Size(),
	}

	result.ETag, err = c.PutContent(ctx, ticket.URL, file, info.Size(), contentType)
	if err != nil {
		return result, fmt.Errorf("upload content: %w", err)
	}
	result.UploadedAt = c.now().UTC()

	if opts.SkipStatus {
		return result, nil
	}

	status := opts.Status
	if status == "" {
		status = assetgate.StatusUploaded
	}
	if _, err := c.SetStatus(ctx, ticket.ID, status); err != nil {
		return result, err
	}
	result.Status = status

	return result, nil
}

// UploadFiles uploads each path in turn. It continues past failures and
// records them on the matching result.
func (c *Client) UploadFiles(ctx context.Context, paths []string, opts UploadOptions) ([]UploadResult, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("upload: %w", ErrEmptyPath)
	}

	results := make([]UploadResult, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		fileOpts := opts
		fileOpts.LocalPath = path
		result, err := c.Upload(ctx, fileOpts)
		if err != nil {
			result.LocalPath = path
			result.Err = err
		}
		results = append(results, result)
	}

	return results, nil
}

// HasUploadErrors returns true if any upload failed.
func HasUploadErrors(results []UploadResult) bool {
	for i := range results {
		if results[i].Err != nil {
			return true
		}
	}
	return false
}

// Download fetches an uploaded asset.
// If opts.LocalPath is "-", the content is returned via the io.ReadCloser and must be closed by the caller.
// Otherwise, the content is written to the file and the io.ReadCloser is nil.
func (c *Client) Download(ctx context.Context, opts DownloadOptions) (*DownloadResult, io.ReadCloser, error) {
	if opts.ID == "" {
		return nil, nil, fmt.Errorf("download: %w", ErrEmptyID)
	}

	ticket, err := c.RequestDownload(ctx, opts.ID, opts.Timeout)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ticket.URL, http.NoBody)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, nil, parseServerError(resp.StatusCode, body)
	}

	result := &DownloadResult{
		ID:          opts.ID,
		ETag:        strings.Trim(resp.Header.Get("ETag"), `"`),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}

	if opts.LocalPath == "-" {
		result.LocalPath = "-"
		return result, resp.Body, nil
	}

	localPath := opts.LocalPath
	if localPath == "" {
		localPath = opts.ID
	}
	result.LocalPath = localPath

	dir := filepath.Dir(localPath)
	if dir != "" && dir != "." {
		if mkdirErr := os.MkdirAll(dir, 0o750); mkdirErr != nil {
			_ = resp.Body.Close()
			return nil, nil, fmt.Errorf("create directory: %w", mkdirErr)
		}
	}

	file, createErr := os.Create(localPath) //#nosec G304 -- localPath is user-provided input
	if createErr != nil {
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("create file: %w", createErr)
	}

	written, copyErr := io.Copy(file, resp.Body)
	_ = resp.Body.Close()
	if copyErr != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("write file: %w", copyErr)
	}

	if closeErr := file.Close(); closeErr != nil {
		return nil, nil, fmt.Errorf("close file: %w", closeErr)
	}

	result.Size = written
	return result, nil, nil
}

// Inspect decodes the validity window of a presigned URL.
func (c *Client) Inspect(rawURL string) (*InspectResult, error) {
	info, err := assetgate.InspectCapability(rawURL)
	if err != nil {
		return nil, err
	}
	return &InspectResult{
		URL:             rawURL,
		AccessKey:       info.AccessKey,
		IssuedAt:        info.IssuedAt,
		ValiditySeconds: int64(info.Validity / time.Second),
		ExpiresAt:       info.ExpiresAt,
		Expired:         !c.now().Before(info.ExpiresAt),
	}, nil
}

// do sends a request to the gateway API and returns the body of a 200
// response.
func (c *Client) do(ctx context.Context, method, target string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if method == http.MethodPut {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseServerError(resp.StatusCode, respBody)
	}

	return respBody, nil
}

func (c *Client) assetURL(id string) string {
	return c.config.Endpoint + "/asset/" + url.PathEscape(id)
}

// newTicket builds a Ticket, reading the expiry from the URL when it is
// a SigV4 presigned URL.
func newTicket(id, rawURL string) *Ticket {
	ticket := &Ticket{ID: id, URL: rawURL}
	if info, err := assetgate.InspectCapability(rawURL); err == nil {
		ticket.ExpiresAt = info.ExpiresAt
	}
	return ticket
}

// detectContentType returns MIME type based on file extension.
func detectContentType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "application/octet-stream"
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "application/octet-stream"
	}

	return mimeType
}

// parseServerError builds an APIError, lifting the error code and message
// out of gateway JSON bodies.
func parseServerError(statusCode int, body []byte) error {
	apiErr := &APIError{
		StatusCode: statusCode,
		Body:       string(body),
	}
	var decoded serverError
	if json.Unmarshal(body, &decoded) == nil {
		apiErr.Code = decoded.Error
		apiErr.Message = decoded.Message
	}
	return apiErr
}

// APIError represents an error response from the gateway or the store.
type APIError struct {
	StatusCode int
	// Code and Message are set when the gateway sent a JSON error body.
	Code    string
	Message string
	Body    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return "server error: " + strconv.Itoa(e.StatusCode) + " " + e.Code + ": " + e.Message
	}
	return "server error: " + strconv.Itoa(e.StatusCode) + " - " + e.Body
}

// Is reports whether target matches this error.
// A target with a Code matches on Code; otherwise StatusCode is compared.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if !errors.As(target, &t) {
		return false
	}
	if t.Code != "" {
		return t.Code == e.Code
	}
	return t.StatusCode == e.StatusCode
}

// IsNotFound returns true if the error is a 404.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Sentinel errors for common API error conditions.
// Use errors.Is() to check for these conditions.
var (
	// ErrNotFound is returned when the requested resource does not exist (404).
	ErrNotFound = &APIError{StatusCode: http.StatusNotFound}

	// ErrBadRequest is returned when the gateway rejected the request input (400).
	ErrBadRequest = &APIError{StatusCode: http.StatusBadRequest}

	// ErrForbidden is returned when a presigned URL is rejected by the store (403).
	// This typically means the URL expired or was altered.
	ErrForbidden = &APIError{StatusCode: http.StatusForbidden}

	// ErrNotUploaded is returned when a download is requested for an asset
	// whose status is not "uploaded".
	ErrNotUploaded = &APIError{Code: "invalid_asset_status"}

	// ErrStoreRejected is returned when the store refused a tag or signing call,
	// for example because the asset does not exist.
	ErrStoreRejected = &APIError{Code: "store_rejected"}

	// ErrStoreUnavailable is returned when the gateway could not reach its store.
	ErrStoreUnavailable = &APIError{Code: "store_unavailable"}
)
