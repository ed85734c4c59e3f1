package guest

import "errors"

var (
	// ErrNotFound is returned for an unknown guest id.
	ErrNotFound = errors.New("guest not found")
	// ErrAccessDenied is returned when the caller is not the guest's embedder.
	ErrAccessDenied = errors.New("access denied to guest")
)
