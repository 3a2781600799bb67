// Package s3store implements assetgate.ObjectStore on Amazon S3 (or any S3
// compatible endpoint) using the AWS SDK for Go v2.
//
// Capabilities are SigV4 presigned GetObject and PutObject URLs minted
// locally by the SDK presigner. Status tags are stored with PutObjectTagging,
// which replaces the object's full tag set, and read with GetObjectTagging.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/sagarc03/assetgate"
)

// API is the subset of *s3.Client the store calls.
type API interface {
	PutObjectTagging(ctx context.Context, params *s3.PutObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error)
	GetObjectTagging(ctx context.Context, params *s3.GetObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.GetObjectTaggingOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Presigner is the subset of *s3.PresignClient the store calls.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Config holds the configuration for connecting to S3.
type Config struct {
	Bucket string
	Region string
	// Endpoint overrides the S3 endpoint, e.g. for S3 compatible services.
	Endpoint string
	// AccessKey and SecretKey select static credentials. When empty the SDK's
	// default credential chain is used.
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// Store is an assetgate.ObjectStore backed by an S3 bucket.
type Store struct {
	api       API
	presigner Presigner
	bucket    string
	now       func() time.Time
}

// NewStore wraps an existing client and presigner.
func NewStore(api API, presigner Presigner, bucket string) *Store {
	return &Store{api: api, presigner: presigner, bucket: bucket, now: time.Now}
}

// New loads AWS configuration and builds a Store for cfg.Bucket.
// The SDK retryer is limited to a single attempt; callers retry.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("new s3 store: bucket is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRetryMaxAttempts(1),
	}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("new s3 store: load config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewStore(client, s3.NewPresignClient(client), cfg.Bucket), nil
}

// Ping checks that the bucket exists and is reachable with the configured credentials.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return classify("head bucket", err)
	}
	return nil
}

func (s *Store) IssueCapability(ctx context.Context, id string, intent assetgate.Intent, expiresAt time.Time) (string, error) {
	expires := s3.WithPresignExpires(assetgate.ValidityWindow(expiresAt, s.now()))

	var (
		req *v4.PresignedHTTPRequest
		err error
	)
	switch intent {
	case assetgate.IntentWrite:
		req, err = s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(id),
		}, expires)
	case assetgate.IntentRead:
		req, err = s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(id),
		}, expires)
	default:
		return "", fmt.Errorf("issue capability: %w: invalid intent %q", assetgate.ErrStoreRejected, intent)
	}
	if err != nil {
		return "", classify("issue capability", err)
	}

	return req.URL, nil
}

func (s *Store) SetTags(ctx context.Context, id string, tags []assetgate.Tag) error {
	tagSet := make([]types.Tag, 0, len(tags))
	for _, t := range tags {
		tagSet = append(tagSet, types.Tag{Key: aws.String(t.Key), Value: aws.String(t.Value)})
	}

	_, err := s.api.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket:  aws.String(s.bucket),
		Key:     aws.String(id),
		Tagging: &types.Tagging{TagSet: tagSet},
	})
	if err != nil {
		return classify("put object tagging", err)
	}
	return nil
}

func (s *Store) GetTags(ctx context.Context, id string) ([]assetgate.Tag, error) {
	out, err := s.api.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return nil, classify("get object tagging", err)
	}

	tags := make([]assetgate.Tag, 0, len(out.TagSet))
	for _, t := range out.TagSet {
		tags = append(tags, assetgate.Tag{Key: aws.ToString(t.Key), Value: aws.ToString(t.Value)})
	}
	return tags, nil
}

// classify marks errors carrying an S3 error response as rejections. Anything
// else (DNS, TLS, connection, context) is returned as is. The SDK wraps
// transport failures in a ResponseError too, without a status code.
func classify(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) || responseStatus(err) > 0 {
		return fmt.Errorf("%s: %w: %w", op, assetgate.ErrStoreRejected, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func responseStatus(err error) int {
	var respErr *smithyhttp.ResponseError
	if !errors.As(err, &respErr) || respErr.Response == nil || respErr.Response.Response == nil {
		return 0
	}
	return respErr.Response.StatusCode
}
