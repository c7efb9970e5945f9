// Package blob provides path-addressed storage for submitted archives and
// build output assets.
package blob

import (
	"context"
)

// Store provides path-addressed storage for build artifacts. Paths use
// forward slashes regardless of platform.
type Store interface {
	// Put stores bytes under the given path, replacing any existing object.
	Put(ctx context.Context, path string, data []byte) error

	// Get retrieves the bytes stored under the given path.
	// Returns ErrNotFound if the object doesn't exist.
	Get(ctx context.Context, path string) ([]byte, error)

	// Exists checks if an object with the given path exists.
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes the object under the given path. Deleting a missing
	// object is a no-op.
	Delete(ctx context.Context, path string) error

	// DeletePrefix removes every object stored under the given path prefix.
	// A prefix with no objects is a no-op.
	DeletePrefix(ctx context.Context, prefix string) error
}

// ErrNotFound is returned when an object doesn't exist.
type ErrNotFound struct {
	Path string
}

func (e ErrNotFound) Error() string {
	return "object not found: " + e.Path
}

// IsNotFound returns true if the error is ErrNotFound.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}
