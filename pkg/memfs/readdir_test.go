package memfs

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryNames(entries []DirEntry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

func TestReaddir(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	d, err := fs.Mkdir(ctx, "/d", 0o755)
	require.NoError(t, err)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := fs.Create(ctx, "/d/"+name, 0o644)
		require.NoError(t, err)
	}
	sub, err := fs.Mkdir(ctx, "/d/sub", 0o755)
	require.NoError(t, err)
	_, err = fs.Symlink(ctx, "alpha", "/d/link")
	require.NoError(t, err)

	entries, err := fs.Readdir(ctx, "/d")
	require.NoError(t, err)
	assert.Equal(t, []string{".", "..", "alpha", "link", "mid", "sub", "zeta"}, entryNames(entries))

	assert.Equal(t, d.ID, entries[0].ID)
	assert.Equal(t, RootID, entries[1].ID)
	assert.Equal(t, KindSymlink, entries[3].Kind)
	assert.Equal(t, sub.ID, entries[5].ID)
	assert.Equal(t, KindDirectory, entries[5].Kind)
	assert.Equal(t, KindFile, entries[6].Kind)
}

func TestReaddirRoot(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	entries, err := fs.Readdir(ctx, "/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, RootID, entries[0].ID)
	assert.Equal(t, RootID, entries[1].ID)
}

func TestReaddirThroughSymlink(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Mkdir(ctx, "/d", 0o755)
	require.NoError(t, err)
	_, err = fs.Create(ctx, "/d/f", 0o644)
	require.NoError(t, err)
	_, err = fs.Symlink(ctx, "/d", "/ld")
	require.NoError(t, err)

	entries, err := fs.Readdir(ctx, "/ld")
	require.NoError(t, err)
	assert.Equal(t, []string{".", "..", "f"}, entryNames(entries))
}

func TestReaddirErrors(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Create(ctx, "/f", 0o644)
	require.NoError(t, err)

	_, err = fs.Readdir(ctx, "/f")
	requireCode(t, err, ErrNotADirectory)

	_, err = fs.Readdir(ctx, "/missing")
	requireCode(t, err, ErrNotFound)
}

func TestStatFS(t *testing.T) {
	fs := New(Options{BlockSize: testBlockSize, CapacityBytes: 100 * testBlockSize, MaxInodes: 10})
	ctx := context.Background()

	_, err := fs.Create(ctx, "/a", 0o644)
	require.NoError(t, err)
	_, err = fs.Write(ctx, "/a", make([]byte, 3*testBlockSize), 0)
	require.NoError(t, err)
	_, err = fs.Mkdir(ctx, "/d", 0o755)
	require.NoError(t, err)

	st, err := fs.StatFS(ctx, "/")
	require.NoError(t, err)

	assert.Equal(t, uint32(testBlockSize), st.BlockSize)
	assert.Equal(t, uint64(100), st.Blocks)
	assert.Equal(t, uint64(3), st.UsedBlocks)
	assert.Equal(t, uint64(97), st.BlocksFree)
	assert.Equal(t, uint64(10), st.Files)
	assert.Equal(t, uint64(7), st.FilesFree)
	assert.Equal(t, uint64(3), st.LiveInodes)
	assert.Equal(t, InodeID(3), st.LastInodeID)
	assert.Equal(t, uint32(NameMax), st.NameMax)
	assert.Equal(t, fs.ID(), st.FSID)

	_, err = fs.StatFS(ctx, "/missing")
	requireCode(t, err, ErrNotFound)
}

func TestStatFSDefaults(t *testing.T) {
	fs := New(Options{})
	st, err := fs.StatFS(context.Background(), "/")
	require.NoError(t, err)

	assert.Equal(t, uint64(DefaultCapacityBytes)/uint64(st.BlockSize), st.Blocks)
	assert.Equal(t, uint64(math.MaxInt32), st.Files)
}
