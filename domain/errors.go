package domain

import "errors"

// Shared by every repository so callers can test for these conditions
// without knowing which store answered.
var (
	ErrNotFound = errors.New("not found")

	// ErrConcurrentUpdate means a record left the status the caller read
	// before the write landed.
	ErrConcurrentUpdate = errors.New("record was changed concurrently")
)
