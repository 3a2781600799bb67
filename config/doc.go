// Package config provides configuration loading and validation for assetgate.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (ASSETGATE_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with ASSETGATE_ prefix:
//   - server.port → ASSETGATE_SERVER_PORT
//   - store.backend → ASSETGATE_STORE_BACKEND
//   - gateway.max_download_timeout → ASSETGATE_GATEWAY_MAX_DOWNLOAD_TIMEOUT
//
// The store bucket, region and credentials also accept AWS_S3_BUCKET_NAME,
// AWS_S3_REGION, AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY.
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: port, public URL and shutdown timeout
//   - Store: backend (s3/minio/local), bucket, endpoint and credentials
//   - Gateway: default and maximum download timeout in seconds
//   - CORS: cross-origin resource sharing settings
//   - Metrics: Prometheus endpoint toggle and path
//   - Tracing: OTLP/HTTP span export
//   - Log: logging level
//
// # Validation
//
// Configuration is validated using struct tags:
//   - Port must be 1-65535
//   - Backend must be s3, minio, or local; minio needs an endpoint
//   - Max download timeout must not exceed 604800 seconds (7 days)
//   - Default download timeout must not exceed the max
//   - Log level must be debug, info, warn, or error
package config
