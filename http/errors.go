package http

import "errors"

var (
	// ErrInvalidTimeout is returned when the timeout query parameter is not a
	// positive integer.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrMalformedBody is returned when a request body is not the expected JSON.
	ErrMalformedBody = errors.New("malformed request body")
)
