package types

import "errors"

// Store operation errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidID     = errors.New("invalid ID")
	ErrSerialization = errors.New("malformed persisted record")
	ErrStoreClosed   = errors.New("store is closed")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ErrBackendUnavailable reports that the remote backend could not be
// initialized. The repository factory logs it and falls back to the local
// backend; callers never see it from Factory.Store.
var ErrBackendUnavailable = errors.New("backend unavailable")
