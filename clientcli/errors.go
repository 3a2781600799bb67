package clientcli

import "errors"

// Errors for profile operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoProfiles      = errors.New("no profiles configured")
	ErrProfileExists   = errors.New("profile already exists")
)

// Errors for configuration validation.
var (
	ErrConfigRequired  = errors.New("config is required")
	ErrInvalidEndpoint = errors.New("endpoint must be an http or https URL")
)

// Errors for input validation.
var (
	ErrEmptyPath = errors.New("path is required")
	ErrEmptyID   = errors.New("asset id is required")
)
