package shared

import "errors"

var (
	// ErrNotFound indicates the entity is missing or outside the caller's tenant.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a malformed request that must never be retried.
	ErrInvalidInput = errors.New("invalid input")
)
