package clientcli

import "time"

// Ticket is a capability handed out by the gateway: an asset id and the
// presigned URL that may be used until ExpiresAt.
type Ticket struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// UploadOptions configures an upload operation.
type UploadOptions struct {
	LocalPath   string
	ContentType string // optional, auto-detect if empty
	// Status is recorded once the content is stored. Empty means "uploaded".
	Status string
	// SkipStatus leaves the asset untagged after the content is stored.
	SkipStatus bool
}

// UploadResult represents the result of uploading a single file.
type UploadResult struct {
	LocalPath   string    `json:"local_path"`
	ID          string    `json:"id"`
	ContentType string    `json:"content_type"`
	ETag        string    `json:"etag,omitempty"`
	Size        int64     `json:"size_bytes"`
	Status      string    `json:"status,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
	Err         error     `json:"-"` // nil on success
}

// DownloadOptions configures a download operation.
type DownloadOptions struct {
	ID        string
	LocalPath string // empty = the asset id, "-" = stdout
	// Timeout is the requested URL validity in seconds. Zero leaves the
	// choice to the server.
	Timeout int
}

// DownloadResult represents the result of downloading a file.
type DownloadResult struct {
	ID          string `json:"id"`
	LocalPath   string `json:"local_path"`
	ETag        string `json:"etag,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size_bytes"`
}

// StatusResult reports a status recorded against an asset.
type StatusResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// InspectResult describes a presigned URL without contacting any server.
type InspectResult struct {
	URL             string    `json:"url"`
	AccessKey       string    `json:"access_key"`
	IssuedAt        time.Time `json:"issued_at"`
	ValiditySeconds int64     `json:"validity_seconds"`
	ExpiresAt       time.Time `json:"expires_at"`
	Expired         bool      `json:"expired"`
}

// statusBody is the PUT /asset/{id} request body.
type statusBody struct {
	Status string `json:"Status"`
}

// serverError mirrors the JSON error body written by the gateway.
type serverError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
