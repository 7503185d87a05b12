package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/ontoquery/core"
	"github.com/poiesic/ontoquery/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSnapshot(handle string, ids ...string) *core.Snapshot {
	return &core.Snapshot{
		Handle:      handle,
		Identifiers: ids,
		Digest:      core.DigestIdentifiers(ids),
		CreatedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSnapshotRepository_SaveLoad(t *testing.T) {
	_, snapshots, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	snap := newSnapshot("h1", "1.2.3", "1.2.4")
	require.NoError(t, snapshots.SaveSnapshot(ctx, snap))

	got, err := snapshots.LoadSnapshot(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, snap.Identifiers, got.Identifiers)
	assert.Equal(t, snap.Digest, got.Digest)
	assert.True(t, snap.CreatedAt.Equal(got.CreatedAt))
}

func TestSnapshotRepository_EmptySnapshot(t *testing.T) {
	_, snapshots, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	require.NoError(t, snapshots.SaveSnapshot(ctx, newSnapshot("empty")))

	got, err := snapshots.LoadSnapshot(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, got.Identifiers)
}

func TestSnapshotRepository_Immutable(t *testing.T) {
	_, snapshots, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	require.NoError(t, snapshots.SaveSnapshot(ctx, newSnapshot("h1", "a")))
	err = snapshots.SaveSnapshot(ctx, newSnapshot("h1", "b"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := snapshots.LoadSnapshot(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.Identifiers)
}

func TestSnapshotRepository_Delete(t *testing.T) {
	_, snapshots, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	require.NoError(t, snapshots.SaveSnapshot(ctx, newSnapshot("h1", "a")))
	require.NoError(t, snapshots.DeleteSnapshot(ctx, "h1"))

	_, err = snapshots.LoadSnapshot(ctx, "h1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, snapshots.DeleteSnapshot(ctx, "h1"), storage.ErrNotFound)
}

func TestSnapshotRepository_List(t *testing.T) {
	_, snapshots, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	for _, h := range []string{"b", "a", "c"} {
		require.NoError(t, snapshots.SaveSnapshot(ctx, newSnapshot(h)))
	}

	handles, err := snapshots.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, handles)
}

func TestSnapshotRepository_RejectsMissingHandle(t *testing.T) {
	_, snapshots, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	assert.ErrorIs(t, snapshots.SaveSnapshot(context.Background(), &core.Snapshot{}), storage.ErrInvalidQuery)
}
