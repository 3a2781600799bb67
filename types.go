package assetgate

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StatusTagKey is the object tag key that carries an asset's lifecycle status.
const StatusTagKey = "Status"

// StatusUploaded is the only status value that unlocks a download capability.
const StatusUploaded = "uploaded"

const (
	// UploadExpiry is the validity window of every upload capability.
	UploadExpiry = time.Hour
	// DefaultDownloadTimeout is the download validity, in seconds, used when the
	// caller does not supply one.
	DefaultDownloadTimeout = 60
	// MaxDownloadTimeout is the longest validity, in seconds, a SigV4 presigned
	// URL may carry.
	MaxDownloadTimeout = MaxExpiresSeconds
)

// Intent is the single action a capability URL authorizes.
type Intent string

const (
	IntentRead  Intent = "read"
	IntentWrite Intent = "write"
)

func (i Intent) IsValid() bool {
	switch i {
	case IntentRead, IntentWrite:
		return true
	default:
		return false
	}
}

// Method returns the HTTP method the capability is bound to.
func (i Intent) Method() string {
	if i == IntentWrite {
		return http.MethodPut
	}
	return http.MethodGet
}

// Tag is a key/value pair attached to an object in the store.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// StatusTags returns the tag set written by RecordStatus.
func StatusTags(status string) []Tag {
	return []Tag{{Key: StatusTagKey, Value: status}}
}

// IsUploaded reports whether the first tag keyed StatusTagKey carries exactly
// StatusUploaded. Keys and values are compared case-sensitively, untrimmed.
func IsUploaded(tags []Tag) bool {
	for _, t := range tags {
		if t.Key == StatusTagKey && t.Value == StatusUploaded {
			return true
		}
	}
	return false
}

// UploadCapability is returned by InitiateUpload.
type UploadCapability struct {
	ID        string    `json:"id"`
	UploadURL string    `json:"upload_url"`
	ExpiresAt time.Time `json:"-"`
}

// DownloadCapability is returned by InitiateDownload.
type DownloadCapability struct {
	DownloadURL string    `json:"Download_url"`
	ExpiresAt   time.Time `json:"-"`
}

var assetIDRegex = regexp.MustCompile(`^[0-9a-f]{32}$`)

// NewAssetID returns a random 128-bit identifier as 32 lowercase hex characters.
func NewAssetID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("new asset id: %w", err)
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}

// IsValidAssetID reports whether id has the shape produced by NewAssetID.
// The gateway itself never rejects ids; this is for clients and stores.
func IsValidAssetID(id string) bool {
	return assetIDRegex.MatchString(id)
}

// ValidityWindow converts an absolute expiry into the whole-second window a
// presigned URL carries, measured from now.
func ValidityWindow(expiresAt, now time.Time) time.Duration {
	return expiresAt.Sub(now).Round(time.Second)
}
