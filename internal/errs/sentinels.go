// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates optimistic concurrency failure (stale updatedAt token).
	ErrConflict = errors.New("record has been changed, please refresh")

	// ErrUnauthenticated indicates a missing or invalid bearer credential.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden indicates a valid identity that may not write the target record.
	ErrForbidden = errors.New("forbidden")

	// ErrStorage wraps every failure of the underlying store. Not client-recoverable.
	ErrStorage = errors.New("storage failure")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")
)
