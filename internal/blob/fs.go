package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FSStore is a filesystem-based implementation of Store. Objects live under
// basePath with their logical path mapped directly onto the filesystem:
//
//	.updraft/
//	  blobs/
//	    archives/
//	      <build-id>.tar.gz
//	    builds/
//	      <build-id>/
//	        <asset-key>
type FSStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFSStore creates a new filesystem-based blob store.
func NewFSStore(basePath string) (*FSStore, error) {
	if err := os.MkdirAll(basePath, 0750); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", basePath, err)
	}
	return &FSStore{basePath: basePath}, nil
}

// Put stores bytes under the given path.
func (fs *FSStore) Put(ctx context.Context, path string, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	full, err := fs.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0600); err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	return nil
}

// Get retrieves the bytes stored under the given path.
func (fs *FSStore) Get(ctx context.Context, path string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	full, err := fs.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, ErrNotFound{Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

// Exists checks if an object with the given path exists.
func (fs *FSStore) Exists(ctx context.Context, path string) (bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	full, err := fs.resolve(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object: %w", err)
	}
	return true, nil
}

// Delete removes the object under the given path.
func (fs *FSStore) Delete(ctx context.Context, path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	full, err := fs.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// DeletePrefix removes every object under the given path prefix.
func (fs *FSStore) DeletePrefix(ctx context.Context, prefix string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	full, err := fs.resolve(prefix)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(full); err != nil {
		return fmt.Errorf("remove prefix: %w", err)
	}
	return nil
}

// resolve maps a logical path onto the filesystem and rejects traversal
// outside the store root.
func (fs *FSStore) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid object path %q", path)
	}
	return filepath.Join(fs.basePath, clean), nil
}
