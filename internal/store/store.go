// Package store provides the durable metadata store for build records and the
// single-flight build lock.
package store

import (
	"context"
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/updraft/internal/build"
)

// Resolution carries the terminal outcome applied to a build record. Manifest
// and Assets are set only for successful builds; Error only for failed ones.
type Resolution struct {
	Status      build.Status
	Error       string
	Manifest    json.RawMessage
	Assets      []build.Asset
	CompletedAt time.Time
}

// Store is the durable key→record mapping for build records plus the
// mutually-exclusive build lock.
type Store interface {
	// PutBuild inserts or replaces a build record.
	PutBuild(ctx context.Context, rec *build.Record) error

	// GetBuild retrieves a build record by id.
	// Returns ErrNotFound if the record doesn't exist.
	GetBuild(ctx context.Context, id string) (*build.Record, error)

	// ListBuilds returns records ordered newest-created-first, optionally
	// filtered by project key (empty string means no filter).
	ListBuilds(ctx context.Context, projectKey string) ([]*build.Record, error)

	// AdvanceStatus moves a record to a later non-terminal phase. Transitions
	// that would move backwards or leave a terminal state are ignored and
	// reported via the returned bool.
	AdvanceStatus(ctx context.Context, id string, status build.Status) (bool, error)

	// ResolveBuild applies a terminal resolution and releases the build lock
	// held for this build in a single transaction. It returns false without
	// error when the record is already terminal (idempotent replay), and
	// ErrNotFound when the record doesn't exist. No observer can see a
	// terminal status without the corresponding lock release.
	ResolveBuild(ctx context.Context, id string, res Resolution) (bool, error)

	// TryAcquireLock atomically acquires the build lock for the given build id.
	// Returns false when the lock is already held.
	TryAcquireLock(ctx context.Context, buildID string) (bool, error)

	// ReleaseLock releases the build lock. Releasing a lock that is not held
	// is a safe no-op.
	ReleaseLock(ctx context.Context) error

	// LockHolder reports whether the lock is held and by which build id.
	LockHolder(ctx context.Context) (buildID string, held bool, err error)

	// DeleteBuild removes a build record (retention sweep).
	DeleteBuild(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close() error
}

// ErrNotFound is returned when a build record doesn't exist.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	return "build not found: " + e.ID
}

// IsNotFound returns true if the error is ErrNotFound.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}
