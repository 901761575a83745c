package domain

import (
	"errors"
	"fmt"
)

// Storage errors
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrPermissionDenied indicates insufficient permissions
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotDirectory indicates expected a directory but got a file
	ErrNotDirectory = errors.New("not a directory")

	// ErrNotFile indicates expected a file but got a directory
	ErrNotFile = errors.New("not a file")

	// ErrTimeout indicates a bounded network call ran out of time
	ErrTimeout = errors.New("operation timed out")

	// ErrRateLimited indicates the provider asked us to slow down
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Archive and thumbnail errors
var (
	// ErrNoImage indicates an archive has no recognizable image entry
	ErrNoImage = errors.New("no image found in archive")

	// ErrToolMissing indicates the external decompression tool is not installed
	ErrToolMissing = errors.New("external archive tool not found")

	// ErrUnsupportedArchive indicates the archive extension is not handled
	ErrUnsupportedArchive = errors.New("unsupported archive type")
)

// Sync errors
var (
	// ErrNotAuthenticated indicates no usable credential is available
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSyncInProgress indicates another sync is already writing the library
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrUnsafeName indicates a remote name that cannot be used as a flat library file name
	ErrUnsafeName = errors.New("unsafe file name")

	// ErrChecksumMismatch indicates downloaded bytes do not match the remote digest
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Config errors
var (
	// ErrConfigNotFound indicates config file not found
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigInvalid indicates config file is malformed
	ErrConfigInvalid = errors.New("invalid config")

	// ErrProviderNotConfigured indicates the requested provider has no config section
	ErrProviderNotConfigured = errors.New("provider not configured")
)

// ExtractionError reports an archive that could not be read or extracted.
// It is scoped to a single call and surfaces as "no thumbnail" or
// "cannot open archive".
type ExtractionError struct {
	Archive string
	Tool    string
	Stderr  string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("extract %s with %s: %v: %s", e.Archive, e.Tool, e.Err, e.Stderr)
	}
	return fmt.Sprintf("extract %s with %s: %v", e.Archive, e.Tool, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// AuthError reports that no usable bearer credential could be obtained.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication required: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError wraps a timeout, HTTP failure or malformed response from a provider.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError reports image bytes that could not be decoded.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode image from %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// CacheIOError reports a cache write or delete failure. It is logged,
// never propagated to the caller of the cache.
type CacheIOError struct {
	Path string
	Err  error
}

func (e *CacheIOError) Error() string {
	return fmt.Sprintf("cache io %s: %v", e.Path, e.Err)
}

func (e *CacheIOError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is, or wraps, an AuthError
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsExtractionError reports whether err is, or wraps, an ExtractionError
func IsExtractionError(err error) bool {
	var extErr *ExtractionError
	return errors.As(err, &extErr)
}
