// Package miniostore implements assetgate.ObjectStore on MinIO using minio-go.
package miniostore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/tags"
	"github.com/sagarc03/assetgate"
)

// API is the subset of *minio.Client the store calls.
type API interface {
	PresignedPutObject(ctx context.Context, bucketName, objectName string, expires time.Duration) (*url.URL, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
	PutObjectTagging(ctx context.Context, bucketName, objectName string, otags *tags.Tags, opts minio.PutObjectTaggingOptions) error
	GetObjectTagging(ctx context.Context, bucketName, objectName string, opts minio.GetObjectTaggingOptions) (*tags.Tags, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// Config holds the configuration for connecting to MinIO.
type Config struct {
	// Endpoint is host:port, without scheme.
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// CreateBucket makes the bucket on first use if it does not exist.
	CreateBucket bool
}

// Store is an assetgate.ObjectStore backed by a MinIO bucket.
type Store struct {
	api    API
	bucket string
	region string
	now    func() time.Time
}

// NewStore wraps an existing client.
func NewStore(api API, bucket, region string) *Store {
	return &Store{api: api, bucket: bucket, region: region, now: time.Now}
}

// New connects to MinIO, checks the bucket and, when cfg.CreateBucket is
// set, creates it.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("new minio store: bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("new minio store: create client: %w", err)
	}

	store := NewStore(client, cfg.Bucket, cfg.Region)

	if cfg.CreateBucket {
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("new minio store: %w", err)
		}
	}

	return store, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return classify("bucket exists", err)
	}
	if exists {
		return nil
	}

	if err := s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return classify("make bucket", err)
	}
	return nil
}

// Ping checks that the bucket exists.
func (s *Store) Ping(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return classify("bucket exists", err)
	}
	if !exists {
		return fmt.Errorf("bucket exists: %w: bucket %s not found", assetgate.ErrStoreRejected, s.bucket)
	}
	return nil
}

func (s *Store) IssueCapability(ctx context.Context, id string, intent assetgate.Intent, expiresAt time.Time) (string, error) {
	expires := assetgate.ValidityWindow(expiresAt, s.now())

	var (
		u   *url.URL
		err error
	)
	switch intent {
	case assetgate.IntentWrite:
		u, err = s.api.PresignedPutObject(ctx, s.bucket, id, expires)
	case assetgate.IntentRead:
		u, err = s.api.PresignedGetObject(ctx, s.bucket, id, expires, nil)
	default:
		return "", fmt.Errorf("issue capability: %w: invalid intent %q", assetgate.ErrStoreRejected, intent)
	}
	if err != nil {
		return "", classify("issue capability", err)
	}

	return u.String(), nil
}

func (s *Store) SetTags(ctx context.Context, id string, tagSet []assetgate.Tag) error {
	m := make(map[string]string, len(tagSet))
	for _, t := range tagSet {
		m[t.Key] = t.Value
	}

	otags, err := tags.NewTags(m, true)
	if err != nil {
		return fmt.Errorf("put object tagging: %w: %w", assetgate.ErrStoreRejected, err)
	}

	if err := s.api.PutObjectTagging(ctx, s.bucket, id, otags, minio.PutObjectTaggingOptions{}); err != nil {
		return classify("put object tagging", err)
	}
	return nil
}

// GetTags returns the object's tags sorted by key. minio-go hands tags back
// as a map, so the order S3 reported is not available.
func (s *Store) GetTags(ctx context.Context, id string) ([]assetgate.Tag, error) {
	otags, err := s.api.GetObjectTagging(ctx, s.bucket, id, minio.GetObjectTaggingOptions{})
	if err != nil {
		return nil, classify("get object tagging", err)
	}

	m := otags.ToMap()
	result := make([]assetgate.Tag, 0, len(m))
	for k, v := range m {
		result = append(result, assetgate.Tag{Key: k, Value: v})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })

	return result, nil
}

// classify marks errors that carry a decoded S3 error response as rejections.
func classify(op string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code != "" || resp.StatusCode != 0 {
		return fmt.Errorf("%s: %w: %w", op, assetgate.ErrStoreRejected, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
