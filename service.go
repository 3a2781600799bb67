package assetgate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ObjectStore defines the operations the gateway needs from a backing object
// store. Implementations live in the s3store, miniostore and localstore packages.
//
// All methods accept a context for cancellation and timeout control.
// Implementations must not retry internally and must mark every refusal the
// store itself returned (auth, not found, quota, malformed request) by wrapping
// ErrStoreRejected. Any other error is treated as the store being unavailable.
type ObjectStore interface {
	// IssueCapability returns a presigned URL authorizing exactly one action
	// (read or write) on the object named id until expiresAt.
	//
	// Issuing a capability never touches the object and usually needs no
	// network round trip.
	IssueCapability(ctx context.Context, id string, intent Intent, expiresAt time.Time) (string, error)

	// SetTags replaces the object's complete tag set with tags. Tags not in
	// the new set are removed.
	//
	// Returns an error wrapping ErrStoreRejected if the object does not exist.
	SetTags(ctx context.Context, id string, tags []Tag) error

	// GetTags returns the object's current tag set in store order.
	//
	// Returns an error wrapping ErrStoreRejected if the object does not exist.
	GetTags(ctx context.Context, id string) ([]Tag, error)
}

// Observer receives the outcome of every gateway operation.
// See the metrics package for a Prometheus implementation.
type Observer interface {
	ObserveOperation(op string, duration time.Duration, err error)
}

const (
	OpInitiateUpload   = "initiate_upload"
	OpRecordStatus     = "record_status"
	OpInitiateDownload = "initiate_download"
)

const tracerName = "github.com/sagarc03/assetgate"

// Gateway implements the asset lifecycle: minting upload capabilities,
// recording caller-asserted status, and gating download capabilities on that
// status. It holds no state of its own and is safe for concurrent use.
type Gateway struct {
	store              ObjectStore
	maxDownloadTimeout int
	observer           Observer
	tracer             trace.Tracer
	now                func() time.Time
}

// GatewayConfig holds configuration options for Gateway.
type GatewayConfig struct {
	// MaxDownloadTimeout caps the download validity in seconds (default: MaxDownloadTimeout).
	MaxDownloadTimeout int
	// Observer is notified after every operation. Optional.
	Observer Observer
	// TracerProvider supplies the tracer for operation spans (default: otel global).
	TracerProvider trace.TracerProvider
	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time
}

func NewGateway(store ObjectStore, cfg GatewayConfig) (*Gateway, error) {
	if store == nil {
		return nil, fmt.Errorf("new gateway: object store is required")
	}

	maxTimeout := cfg.MaxDownloadTimeout
	if maxTimeout <= 0 {
		maxTimeout = MaxDownloadTimeout
	}
	if maxTimeout > MaxDownloadTimeout {
		return nil, fmt.Errorf("new gateway: max download timeout %d exceeds %d seconds", maxTimeout, MaxDownloadTimeout)
	}

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &Gateway{
		store:              store,
		maxDownloadTimeout: maxTimeout,
		observer:           cfg.Observer,
		tracer:             tp.Tracer(tracerName),
		now:                now,
	}, nil
}

// InitiateUpload mints a fresh asset id and a write capability valid for
// UploadExpiry. No object is created; the client PUTs bytes to the URL.
//
// Error types returned (as *ServiceError):
//   - ErrStoreUnavailable: store could not be contacted
//   - ErrStoreRejected: store refused to issue the capability
func (g *Gateway) InitiateUpload(ctx context.Context) (_ UploadCapability, err error) {
	ctx, done := g.begin(ctx, OpInitiateUpload)
	defer func() { done(err) }()

	id, err := NewAssetID()
	if err != nil {
		return UploadCapability{}, &ServiceError{Kind: KindStoreUnavailable, Op: OpInitiateUpload, Message: msgStoreUnavailable, Err: err}
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("asset.id", id))

	expiresAt := g.now().Add(UploadExpiry)

	url, issueErr := g.store.IssueCapability(ctx, id, IntentWrite, expiresAt)
	if issueErr != nil {
		return UploadCapability{}, storeError(OpInitiateUpload, issueErr)
	}

	slog.DebugContext(ctx, "upload capability issued", "id", id, "expires_at", expiresAt)

	return UploadCapability{ID: id, UploadURL: url, ExpiresAt: expiresAt}, nil
}

// RecordStatus overwrites the asset's tag set with exactly {Status: status}.
// The id is forwarded to the store unvalidated and status is stored verbatim.
//
// Error types returned (as *ServiceError):
//   - ErrStoreUnavailable: store could not be contacted
//   - ErrStoreRejected: store refused, including when the object does not exist
func (g *Gateway) RecordStatus(ctx context.Context, id, status string) (err error) {
	ctx, done := g.begin(ctx, OpRecordStatus, attribute.String("asset.id", id), attribute.String("asset.status", status))
	defer func() { done(err) }()

	if setErr := g.store.SetTags(ctx, id, StatusTags(status)); setErr != nil {
		return storeError(OpRecordStatus, setErr)
	}

	slog.DebugContext(ctx, "asset status recorded", "id", id, "status", status)

	return nil
}

// InitiateDownload issues a read capability valid for timeoutSeconds, but only
// when the asset's current status tag is exactly StatusUploaded. The timeout is
// clamped to [1, max download timeout].
//
// No capability is issued when the tag lookup fails or the status gate fails.
//
// Error types returned (as *ServiceError):
//   - ErrInvalidAssetStatus: status tag absent or not exactly "uploaded"
//   - ErrStoreUnavailable: store could not be contacted
//   - ErrStoreRejected: store refused, including when the object does not exist
func (g *Gateway) InitiateDownload(ctx context.Context, id string, timeoutSeconds int) (_ DownloadCapability, err error) {
	timeoutSeconds = g.clampTimeout(timeoutSeconds)

	ctx, done := g.begin(ctx, OpInitiateDownload, attribute.String("asset.id", id), attribute.Int("download.timeout", timeoutSeconds))
	defer func() { done(err) }()

	tags, getErr := g.store.GetTags(ctx, id)
	if getErr != nil {
		return DownloadCapability{}, storeError(OpInitiateDownload, getErr)
	}

	if !IsUploaded(tags) {
		return DownloadCapability{}, invalidStatusError(OpInitiateDownload)
	}

	expiresAt := g.now().Add(time.Duration(timeoutSeconds) * time.Second)

	url, issueErr := g.store.IssueCapability(ctx, id, IntentRead, expiresAt)
	if issueErr != nil {
		return DownloadCapability{}, storeError(OpInitiateDownload, issueErr)
	}

	slog.DebugContext(ctx, "download capability issued", "id", id, "expires_at", expiresAt)

	return DownloadCapability{DownloadURL: url, ExpiresAt: expiresAt}, nil
}

func (g *Gateway) clampTimeout(seconds int) int {
	if seconds < 1 {
		return 1
	}
	if seconds > g.maxDownloadTimeout {
		return g.maxDownloadTimeout
	}
	return seconds
}

// begin starts the span for op and returns a func that ends it and reports
// the outcome to the observer.
func (g *Gateway) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := g.tracer.Start(ctx, op, trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String("error.kind", KindOf(err).String()))
		}
		span.End()

		if g.observer != nil {
			g.observer.ObserveOperation(op, time.Since(start), err)
		}
	}
}
