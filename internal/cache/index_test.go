package cache

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivecache/drivecache/internal/account"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testIndex(t *testing.T) *Index {
	t.Helper()

	idx, err := OpenIndex(":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	return idx
}

var (
	alice = account.Account{Server: "https://drive.example.com", Username: "alice"}
	bob   = account.Account{Server: "https://drive.example.com", Username: "bob"}
)

func TestIndex_RecordAndList(t *testing.T) {
	t.Parallel()

	idx := testIndex(t)
	ctx := context.Background()

	e := Entry{
		AccountKey: alice.Key(),
		RepoID:     "repo-1",
		PathInRepo: "/docs/a.txt",
		LocalPath:  "/base/file-cache/repo-1/docs/a.txt",
		CachedAt:   time.Unix(1700000000, 0),
	}
	require.NoError(t, idx.Record(ctx, e))

	entries, err := idx.ListAccount(ctx, alice)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, e.RepoID, entries[0].RepoID)
	assert.Equal(t, e.PathInRepo, entries[0].PathInRepo)
	assert.Equal(t, e.LocalPath, entries[0].LocalPath)
	assert.True(t, e.CachedAt.Equal(entries[0].CachedAt))
}

func TestIndex_RecordUpserts(t *testing.T) {
	t.Parallel()

	idx := testIndex(t)
	ctx := context.Background()

	e := Entry{
		AccountKey: alice.Key(),
		RepoID:     "repo-1",
		PathInRepo: "/a.txt",
		LocalPath:  "/old",
		CachedAt:   time.Unix(1, 0),
	}
	require.NoError(t, idx.Record(ctx, e))

	e.LocalPath = "/new"
	e.CachedAt = time.Unix(2, 0)
	require.NoError(t, idx.Record(ctx, e))

	entries, err := idx.ListAccount(ctx, alice)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/new", entries[0].LocalPath)
}

func TestIndex_Remove(t *testing.T) {
	t.Parallel()

	idx := testIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Record(ctx, Entry{
		AccountKey: alice.Key(), RepoID: "r", PathInRepo: "/x", LocalPath: "/x", CachedAt: time.Now(),
	}))
	require.NoError(t, idx.Remove(ctx, "r", "/x"))

	// Removing a missing row is a no-op.
	require.NoError(t, idx.Remove(ctx, "r", "/x"))

	entries, err := idx.ListAccount(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIndex_ClearAccountOnlyTouchesThatAccount(t *testing.T) {
	t.Parallel()

	idx := testIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Record(ctx, Entry{
		AccountKey: alice.Key(), RepoID: "r1", PathInRepo: "/a", LocalPath: "/a", CachedAt: time.Now(),
	}))
	require.NoError(t, idx.Record(ctx, Entry{
		AccountKey: bob.Key(), RepoID: "r2", PathInRepo: "/b", LocalPath: "/b", CachedAt: time.Now(),
	}))

	require.NoError(t, idx.ClearAccount(ctx, alice))

	aliceEntries, err := idx.ListAccount(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, aliceEntries)

	bobEntries, err := idx.ListAccount(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, bobEntries, 1)
}

func TestOpenIndex_OnDiskFile(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "file-cache.db")

	idx, err := OpenIndex(dbPath, testLogger())
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	// Reopen: migrations must be idempotent.
	idx, err = OpenIndex(dbPath, testLogger())
	require.NoError(t, err)
	require.NoError(t, idx.Close())
}
