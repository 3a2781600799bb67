// Package assetgate brokers access to a backing object store on behalf of
// untrusted clients without ever proxying asset bytes.
//
// Clients never hold store credentials. Instead they receive time-bounded,
// single-purpose capability URLs (presigned URLs) for upload and download, and
// declare an asset's lifecycle state through a status tag kept in the store's
// own object metadata.
//
// # Key Components
//
//   - Gateway: stateless service with the three asset operations
//   - ObjectStore: interface for capability issuance and object tagging
//     (see the s3store, miniostore and localstore packages)
//   - ServiceError: the single error type surfaced by the gateway, tagged with
//     an ErrorKind
//   - Signer / SignatureVerifier: AWS Signature V4 query-string signing, used by
//     the local development store
//
// # Lifecycle
//
//	[no object]          --InitiateUpload-->   [object may exist, status unset]
//	[any status]         --RecordStatus(s)-->  [status = s]
//	[status = uploaded]  --InitiateDownload--> download URL issued
//	[status != uploaded] --InitiateDownload--> ErrInvalidAssetStatus
//
// The gateway caches nothing. Every InitiateDownload re-reads the object's tags
// from the store, and the check-then-issue sequence is not atomic with respect
// to a concurrent RecordStatus.
//
// # Example Usage
//
//	gw, err := assetgate.NewGateway(store, assetgate.GatewayConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	up, err := gw.InitiateUpload(ctx)
//	// client PUTs bytes to up.UploadURL
//
//	err = gw.RecordStatus(ctx, up.ID, assetgate.StatusUploaded)
//
//	down, err := gw.InitiateDownload(ctx, up.ID, assetgate.DefaultDownloadTimeout)
//
// See the http package for the REST boundary.
package assetgate
