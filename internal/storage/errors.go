package storage

import "errors"

var (
	// ErrURLNotFound is returned when an operation references a short code
	// absent from storage.
	ErrURLNotFound = errors.New("url not found")
	// ErrCodeExists is returned when an attempt is made to create a URL with
	// a short code that already exists.
	ErrCodeExists = errors.New("short code exists")
	// ErrEntityNotFound is returned by an EntityStore point lookup that
	// matched nothing.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrUnavailable marks transient backend failures. The gateway propagates
	// it without retrying; retry policy belongs to the caller.
	ErrUnavailable = errors.New("storage unavailable")
)
