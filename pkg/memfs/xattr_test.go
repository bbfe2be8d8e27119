package memfs

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/memfs/pkg/xattr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXattrLifecycle(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Create(ctx, "/f", 0o644)
	require.NoError(t, err)

	old := time.Unix(1000, 0)
	require.NoError(t, fs.Utimes(ctx, "/f", old, old))
	before, err := fs.GetAttr(ctx, "/f")
	require.NoError(t, err)

	require.NoError(t, fs.SetXattr(ctx, "/f", "user.color", []byte("blue"), 0))

	after, err := fs.GetAttr(ctx, "/f")
	require.NoError(t, err)
	assert.False(t, after.Ctime.Before(before.Ctime))
	assert.True(t, after.Mtime.Equal(old), "xattr changes leave mtime alone")

	size, err := fs.GetXattr(ctx, "/f", "user.color", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, size)

	buf := make([]byte, 4)
	n, err := fs.GetXattr(ctx, "/f", "user.color", 0, buf)
	require.NoError(t, err)
	assert.Equal(t, "blue", string(buf[:n]))

	n, err = fs.GetXattr(ctx, "/f", "user.color", 2, buf)
	require.NoError(t, err)
	assert.Equal(t, "ue", string(buf[:n]))

	require.NoError(t, fs.RemoveXattr(ctx, "/f", "user.color"))
	_, err = fs.GetXattr(ctx, "/f", "user.color", 0, nil)
	requireCode(t, err, ErrAttributeNotFound)
}

func TestXattrFlags(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Mkdir(ctx, "/d", 0o755)
	require.NoError(t, err)

	requireCode(t, fs.SetXattr(ctx, "/d", "user.a", []byte("1"), xattr.FlagReplace), ErrAttributeNotFound)
	require.NoError(t, fs.SetXattr(ctx, "/d", "user.a", []byte("1"), xattr.FlagCreate))
	requireCode(t, fs.SetXattr(ctx, "/d", "user.a", []byte("2"), xattr.FlagCreate), ErrAlreadyExists)
	require.NoError(t, fs.SetXattr(ctx, "/d", "user.a", []byte("3"), xattr.FlagReplace))

	buf := make([]byte, 8)
	n, err := fs.GetXattr(ctx, "/d", "user.a", 0, buf)
	require.NoError(t, err)
	assert.Equal(t, "3", string(buf[:n]))
}

func TestXattrErrors(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Create(ctx, "/f", 0o644)
	require.NoError(t, err)
	require.NoError(t, fs.SetXattr(ctx, "/f", "user.long", []byte("0123456789"), 0))

	requireCode(t, fs.SetXattr(ctx, "/f", "", []byte("x"), 0), ErrInvalidArgument)
	requireCode(t, fs.SetXattr(ctx, "/f", "user.x", nil, 0), ErrInvalidArgument)
	requireCode(t, fs.SetXattr(ctx, "/missing", "user.x", []byte("x"), 0), ErrNotFound)

	_, err = fs.GetXattr(ctx, "/f", "user.long", 0, make([]byte, 4))
	requireCode(t, err, ErrRangeError)

	_, err = fs.GetXattr(ctx, "/f", "user.long", 11, nil)
	requireCode(t, err, ErrInvalidArgument)

	requireCode(t, fs.RemoveXattr(ctx, "/f", "user.none"), ErrAttributeNotFound)

	_, err = fs.Create(ctx, "/bare", 0o644)
	require.NoError(t, err)
	requireCode(t, fs.RemoveXattr(ctx, "/bare", "user.none"), ErrAttributeNotFound)
	_, err = fs.GetXattr(ctx, "/bare", "user.none", 0, nil)
	requireCode(t, err, ErrAttributeNotFound)
}

func TestListXattr(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Create(ctx, "/f", 0o644)
	require.NoError(t, err)

	size, err := fs.ListXattr(ctx, "/f", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, size)

	require.NoError(t, fs.SetXattr(ctx, "/f", "user.b", []byte("2"), 0))
	require.NoError(t, fs.SetXattr(ctx, "/f", "user.a", []byte("1"), 0))

	size, err = fs.ListXattr(ctx, "/f", nil)
	require.NoError(t, err)
	assert.Equal(t, len("user.a\x00user.b\x00"), size)

	buf := make([]byte, size)
	n, err := fs.ListXattr(ctx, "/f", buf)
	require.NoError(t, err)
	assert.Equal(t, "user.a\x00user.b\x00", string(buf[:n]))

	_, err = fs.ListXattr(ctx, "/f", make([]byte, 3))
	requireCode(t, err, ErrRangeError)

	names, err := fs.XattrNames(ctx, "/f")
	require.NoError(t, err)
	assert.Equal(t, []string{"user.a", "user.b"}, names)
}

func TestXattrNotFollowedThroughSymlink(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Create(ctx, "/f", 0o644)
	require.NoError(t, err)
	_, err = fs.Symlink(ctx, "/f", "/l")
	require.NoError(t, err)

	require.NoError(t, fs.SetXattr(ctx, "/l", "user.on-link", []byte("x"), 0))

	_, err = fs.GetXattr(ctx, "/f", "user.on-link", 0, nil)
	requireCode(t, err, ErrAttributeNotFound)

	size, err := fs.GetXattr(ctx, "/l", "user.on-link", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}
