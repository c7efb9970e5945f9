package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFSStore(t *testing.T) *FSStore {
	t.Helper()
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestFSStore(t)
	ctx := context.Background()

	data := []byte("archive bytes")
	require.NoError(t, s.Put(ctx, "archives/b1.tar.gz", data))

	got, err := s.Get(ctx, "archives/b1.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	exists, err := s.Exists(ctx, "archives/b1.tar.gz")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGetMissing(t *testing.T) {
	s := newTestFSStore(t)

	_, err := s.Get(context.Background(), "builds/b1/bundle-ios")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestPutOverwrites(t *testing.T) {
	s := newTestFSStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "builds/b1/bundle-ios", []byte("v1")))
	require.NoError(t, s.Put(ctx, "builds/b1/bundle-ios", []byte("v2")))

	got, err := s.Get(ctx, "builds/b1/bundle-ios")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newTestFSStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "archives/b1.tar.gz", []byte("x")))
	require.NoError(t, s.Delete(ctx, "archives/b1.tar.gz"))
	require.NoError(t, s.Delete(ctx, "archives/b1.tar.gz"))

	exists, err := s.Exists(ctx, "archives/b1.tar.gz")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRejectsTraversal(t *testing.T) {
	s := newTestFSStore(t)
	ctx := context.Background()

	for _, path := range []string{"../outside", "a/../../outside", "/etc/passwd", "."} {
		err := s.Put(ctx, path, []byte("x"))
		assert.Error(t, err, "path %q must be rejected", path)
	}
}

func TestFSStoreDeletePrefix(t *testing.T) {
	s := newTestFSStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "builds/b1/bundle-ios", []byte("a")))
	require.NoError(t, s.Put(ctx, "builds/b1/assets/logo.png", []byte("b")))
	require.NoError(t, s.Put(ctx, "builds/b2/bundle-ios", []byte("c")))

	require.NoError(t, s.DeletePrefix(ctx, "builds/b1"))

	for _, p := range []string{"builds/b1/bundle-ios", "builds/b1/assets/logo.png"} {
		ok, err := s.Exists(ctx, p)
		require.NoError(t, err)
		assert.False(t, ok, p)
	}
	ok, err := s.Exists(ctx, "builds/b2/bundle-ios")
	require.NoError(t, err)
	assert.True(t, ok, "sibling prefixes must be untouched")

	// Idempotent on an empty prefix.
	require.NoError(t, s.DeletePrefix(ctx, "builds/b1"))
}

func TestFSStoreDeletePrefixRejectsTraversal(t *testing.T) {
	s := newTestFSStore(t)

	for _, p := range []string{"..", "../outside", "/etc", "."} {
		assert.Error(t, s.DeletePrefix(context.Background(), p), p)
	}
}
