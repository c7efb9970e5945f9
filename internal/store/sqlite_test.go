package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/updraft/internal/build"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func pendingRecord(id, project string) *build.Record {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &build.Record{
		ID:             id,
		ProjectKey:     project,
		Status:         build.StatusPending,
		Platform:       build.PlatformAll,
		RuntimeVersion: "1.0.0",
		CreatedAt:      now,
		UpdatedAt:      now,
		Source:         build.SourceConfig{Name: "Demo", Slug: "demo", Owner: "acme"},
	}
}

func TestPutGetBuild(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := pendingRecord("b1", "acme/demo")
	require.NoError(t, s.PutBuild(ctx, rec))

	got, err := s.GetBuild(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.ProjectKey, got.ProjectKey)
	assert.Equal(t, build.StatusPending, got.Status)
	assert.Equal(t, rec.Source, got.Source)
	assert.Nil(t, got.CompletedAt)
}

func TestGetBuildNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetBuild(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestListBuildsOrderAndFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := pendingRecord("b1", "acme/demo")
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	newer := pendingRecord("b2", "acme/demo")
	other := pendingRecord("b3", "acme/other")

	for _, rec := range []*build.Record{older, newer, other} {
		require.NoError(t, s.PutBuild(ctx, rec))
	}

	all, err := s.ListBuilds(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)

	filtered, err := s.ListBuilds(ctx, "acme/demo")
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, "b2", filtered[0].ID, "newest first")
	assert.Equal(t, "b1", filtered[1].ID)
}

func TestAdvanceStatusForwardOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutBuild(ctx, pendingRecord("b1", "p")))

	advanced, err := s.AdvanceStatus(ctx, "b1", build.StatusBuilding)
	require.NoError(t, err)
	assert.True(t, advanced)

	// Backward transitions are ignored, not errors.
	advanced, err = s.AdvanceStatus(ctx, "b1", build.StatusDownloading)
	require.NoError(t, err)
	assert.False(t, advanced)

	got, err := s.GetBuild(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, build.StatusBuilding, got.Status)
}

func TestAdvanceStatusRejectsTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutBuild(ctx, pendingRecord("b1", "p")))

	_, err := s.AdvanceStatus(ctx, "b1", build.StatusSuccess)
	require.Error(t, err)
}

func TestTryAcquireLockSingleFlight(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acquired, err := s.TryAcquireLock(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = s.TryAcquireLock(ctx, "b2")
	require.NoError(t, err)
	assert.False(t, acquired, "second acquire must fail while held")

	holder, held, err := s.LockHolder(ctx)
	require.NoError(t, err)
	assert.True(t, held)
	assert.Equal(t, "b1", holder)

	require.NoError(t, s.ReleaseLock(ctx))

	acquired, err = s.TryAcquireLock(ctx, "b2")
	require.NoError(t, err)
	assert.True(t, acquired, "acquire must succeed after release")
}

func TestResolveBuildReleasesLockOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutBuild(ctx, pendingRecord("b1", "p")))
	acquired, err := s.TryAcquireLock(ctx, "b1")
	require.NoError(t, err)
	require.True(t, acquired)

	resolved, err := s.ResolveBuild(ctx, "b1", Resolution{
		Status: build.StatusSuccess,
		Assets: []build.Asset{{Key: "bundle-ios", Hash: "h"}},
	})
	require.NoError(t, err)
	assert.True(t, resolved)

	_, held, err := s.LockHolder(ctx)
	require.NoError(t, err)
	assert.False(t, held, "terminal resolution must release the lock")

	got, err := s.GetBuild(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, build.StatusSuccess, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.Len(t, got.Assets, 1)

	// Replay is an idempotent no-op, not an error.
	resolved, err = s.ResolveBuild(ctx, "b1", Resolution{Status: build.StatusFailed, Error: "late"})
	require.NoError(t, err)
	assert.False(t, resolved)

	got, err = s.GetBuild(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, build.StatusSuccess, got.Status, "replay must not rewrite terminal state")
}

func TestResolveBuildKeepsUnrelatedLock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutBuild(ctx, pendingRecord("old", "p")))
	acquired, err := s.TryAcquireLock(ctx, "other")
	require.NoError(t, err)
	require.True(t, acquired)

	resolved, err := s.ResolveBuild(ctx, "old", Resolution{Status: build.StatusFailed, Error: "x"})
	require.NoError(t, err)
	assert.True(t, resolved)

	holder, held, err := s.LockHolder(ctx)
	require.NoError(t, err)
	assert.True(t, held, "a lock held for a different build stays put")
	assert.Equal(t, "other", holder)
}

func TestResolveBuildUnknown(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ResolveBuild(context.Background(), "missing", Resolution{Status: build.StatusFailed, Error: "x"})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestResolveBuildRejectsNonTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutBuild(ctx, pendingRecord("b1", "p")))

	_, err := s.ResolveBuild(ctx, "b1", Resolution{Status: build.StatusBuilding})
	require.Error(t, err)
}

func TestDeleteBuild(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutBuild(ctx, pendingRecord("b1", "p")))

	require.NoError(t, s.DeleteBuild(ctx, "b1"))
	_, err := s.GetBuild(ctx, "b1")
	assert.True(t, IsNotFound(err))

	// Deleting again is harmless.
	require.NoError(t, s.DeleteBuild(ctx, "b1"))
}
