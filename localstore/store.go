// Package localstore provides a self-contained development object store for
// assetgate. Object bytes live on local disk under an os.Root sandbox, object
// tags live in SQLite, and access is granted through AWS Signature V4
// presigned URLs that the store both mints and verifies.
//
// The store has two faces: Store implements assetgate.ObjectStore for the
// gateway, and Handler serves the presigned PUT and GET requests clients make
// against the capability URLs.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sagarc03/assetgate"
	"github.com/sagarc03/assetgate/keybackend"
)

// ErrNoSuchKey is returned when the addressed object has never been written.
var ErrNoSuchKey = errors.New("no such key")

// Config holds the configuration for a local store.
type Config struct {
	// Path is the data directory. Objects are kept in Path/<Bucket>.
	Path string
	// DSN is the tag database: a postgres:// URL or a SQLite data source
	// (default: Path/tags.db).
	DSN string
	// Table is the tag table name (default: DefaultTagTable).
	Table string
	// Bucket names the single bucket served.
	Bucket string
	// BaseURL is the public URL the Handler is reachable at, e.g. http://localhost:8080/store.
	BaseURL string
	// Region and credentials used to sign and verify capability URLs.
	Region    string
	AccessKey string
	SecretKey string
	// PreviousKeys are accepted when verifying but never used to sign. URLs
	// issued before a key rotation stay valid until they expire.
	PreviousKeys *keybackend.Keyring
}

// Store is a filesystem and SQLite backed assetgate.ObjectStore.
type Store struct {
	bucket  string
	baseURL *url.URL
	files   *files
	tags    TagRepo
	signer  assetgate.Signer
	prev    *keybackend.Keyring
	now     func() time.Time
}

// Open creates the data directory if needed, opens the bucket root and tag
// database, and returns a ready Store. Call Close to release both.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" || !assetgate.IsValidObjectKey(cfg.Bucket) || strings.Contains(cfg.Bucket, "/") {
		return nil, fmt.Errorf("open local store: invalid bucket name %q", cfg.Bucket)
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("open local store: access key and secret key are required")
	}

	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("open local store: invalid base url %q", cfg.BaseURL)
	}

	bucketDir := filepath.Join(cfg.Path, cfg.Bucket)
	if err := os.MkdirAll(bucketDir, 0o755); err != nil {
		return nil, fmt.Errorf("open local store: create bucket directory: %w", err)
	}

	root, err := os.OpenRoot(bucketDir)
	if err != nil {
		return nil, fmt.Errorf("open local store: open bucket directory: %w", err)
	}

	dsn := cfg.DSN
	if dsn == "" {
		dsn = filepath.Join(cfg.Path, "tags.db")
	}

	tags, err := OpenTagRepo(ctx, dsn, cfg.Table)
	if err != nil {
		_ = root.Close()
		return nil, fmt.Errorf("open local store: %w", err)
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	return &Store{
		bucket:  cfg.Bucket,
		baseURL: base,
		files:   &files{root: root},
		tags:    tags,
		signer: assetgate.Signer{
			Region:    region,
			Service:   "s3",
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		},
		prev: cfg.PreviousKeys,
		now:  time.Now,
	}, nil
}

func (s *Store) Close() error {
	return errors.Join(s.tags.Close(), s.files.root.Close())
}

// Ping checks the tag database and the bucket directory.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.tags.Ping(ctx); err != nil {
		return err
	}
	if _, err := s.files.root.Stat("."); err != nil {
		return fmt.Errorf("ping local store: %w", err)
	}
	return nil
}

// Verifier returns a signature verifier accepting the URLs this store issues.
func (s *Store) Verifier() *assetgate.SignatureVerifier {
	v := assetgate.NewSignatureVerifier(s.signer.Region, s.signer.Service, s.lookupSecret)
	v.Now = s.now
	return v
}

// lookupSecret resolves the signing key first, then any previous keys.
func (s *Store) lookupSecret(accessKey string) (string, bool) {
	if accessKey == s.signer.AccessKey {
		return s.signer.SecretKey, true
	}
	return s.prev.Lookup(accessKey)
}

func (s *Store) objectURL(key string) string {
	u := *s.baseURL
	u.Path = u.Path + "/" + s.bucket + "/" + key
	u.RawPath = ""
	return u.String()
}

// IssueCapability presigns a GET or PUT of key against the Handler.
func (s *Store) IssueCapability(ctx context.Context, key string, intent assetgate.Intent, expiresAt time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !intent.IsValid() {
		return "", fmt.Errorf("issue capability: %w: invalid intent %q", assetgate.ErrStoreRejected, intent)
	}
	if !assetgate.IsValidObjectKey(key) {
		return "", fmt.Errorf("issue capability: %w: invalid key %q", assetgate.ErrStoreRejected, key)
	}

	now := s.now()
	signed, err := s.signer.Presign(intent.Method(), s.objectURL(key), now, assetgate.ValidityWindow(expiresAt, now))
	if err != nil {
		return "", fmt.Errorf("issue capability: %w: %w", assetgate.ErrStoreRejected, err)
	}
	return signed, nil
}

// SetTags replaces the tag set of an existing object.
func (s *Store) SetTags(ctx context.Context, key string, tags []assetgate.Tag) error {
	if err := s.requireObject(ctx, key); err != nil {
		return fmt.Errorf("set tags: %w", err)
	}

	if err := s.tags.Replace(ctx, key, tags); err != nil {
		return fmt.Errorf("set tags: %w", err)
	}
	return nil
}

// GetTags returns the tag set of an existing object in write order.
func (s *Store) GetTags(ctx context.Context, key string) ([]assetgate.Tag, error) {
	if err := s.requireObject(ctx, key); err != nil {
		return nil, fmt.Errorf("get tags: %w", err)
	}

	tags, err := s.tags.List(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get tags: %w", err)
	}
	return tags, nil
}

func (s *Store) requireObject(ctx context.Context, key string) error {
	if !assetgate.IsValidObjectKey(key) {
		return fmt.Errorf("%w: invalid key %q", assetgate.ErrStoreRejected, key)
	}

	ok, err := s.files.exists(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %w: %s", assetgate.ErrStoreRejected, ErrNoSuchKey, key)
	}
	return nil
}
