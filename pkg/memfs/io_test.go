package memfs

import (
	"bytes"
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Create(ctx, "/f", 0o644)
	require.NoError(t, err)

	data := bytes.Repeat([]byte("0123456789abcdef"), (3*testBlockSize+17)/16+1)[:3*testBlockSize+17]
	n, err := fs.Write(ctx, "/f", data, 0)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	attr, err := fs.GetAttr(ctx, "/f")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), attr.Size)
	assert.Equal(t, int64(4), attr.Blocks)

	got := make([]byte, len(data)+100)
	n, err = fs.Read(ctx, "/f", got, 0)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, got[:n])

	// Unaligned read spanning a block boundary.
	got = make([]byte, 10)
	n, err = fs.Read(ctx, "/f", got, testBlockSize-5)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, data[testBlockSize-5:testBlockSize+5], got)
}

func TestWriteInsideDirectory(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Mkdir(ctx, "/d", 0o755)
	require.NoError(t, err)
	dir, err := fs.GetAttr(ctx, "/d")
	require.NoError(t, err)
	assert.Equal(t, uint32(0o755), dir.Perm())

	_, err = fs.Create(ctx, "/d/f", 0o644)
	require.NoError(t, err)

	n, err := fs.Write(ctx, "/d/f", []byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = fs.Read(ctx, "/d/f", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	require.NoError(t, fs.Unlink(ctx, "/d/f"))

	_, err = fs.Read(ctx, "/d/f", make([]byte, 1), 0)
	requireCode(t, err, ErrNotFound)
}

func TestSparseWriteReadsZeros(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Create(ctx, "/f", 0o644)
	require.NoError(t, err)

	off := int64(5 * testBlockSize)
	_, err = fs.Write(ctx, "/f", []byte("tail"), off)
	require.NoError(t, err)

	attr, err := fs.GetAttr(ctx, "/f")
	require.NoError(t, err)
	assert.Equal(t, off+4, attr.Size)
	assert.Equal(t, int64(2), attr.Blocks, "only the first and last block are materialized")

	buf := make([]byte, off+4)
	n, err := fs.Read(ctx, "/f", buf, 0)
	require.NoError(t, err)
	require.Equal(t, int(off+4), n)
	assert.Equal(t, make([]byte, off), buf[:off])
	assert.Equal(t, "tail", string(buf[off:]))
}

func TestReadPastEnd(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Create(ctx, "/f", 0o644)
	require.NoError(t, err)
	_, err = fs.Write(ctx, "/f", []byte("abc"), 0)
	require.NoError(t, err)

	buf := make([]byte, 8)
	n, err := fs.Read(ctx, "/f", buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = fs.Read(ctx, "/f", buf, 1000)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestOffsetBounds(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Create(ctx, "/f", 0o644)
	require.NoError(t, err)

	_, err = fs.Read(ctx, "/f", make([]byte, 1), -1)
	requireCode(t, err, ErrInvalidArgument)

	_, err = fs.Write(ctx, "/f", []byte("x"), -1)
	requireCode(t, err, ErrInvalidArgument)

	_, err = fs.Write(ctx, "/f", []byte("x"), math.MaxInt32)
	requireCode(t, err, ErrInvalidArgument)

	requireCode(t, fs.Truncate(ctx, "/f", -1), ErrInvalidArgument)
	requireCode(t, fs.Truncate(ctx, "/f", math.MaxInt32+1), ErrInvalidArgument)
}

func TestTruncate(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Create(ctx, "/f", 0o644)
	require.NoError(t, err)
	_, err = fs.Write(ctx, "/f", bytes.Repeat([]byte{0xff}, 2*testBlockSize), 0)
	require.NoError(t, err)

	t.Run("Shrink", func(t *testing.T) {
		require.NoError(t, fs.Truncate(ctx, "/f", 10))

		attr, err := fs.GetAttr(ctx, "/f")
		require.NoError(t, err)
		assert.Equal(t, int64(10), attr.Size)
		assert.Equal(t, int64(1), attr.Blocks)
	})

	t.Run("GrowReadsZeros", func(t *testing.T) {
		require.NoError(t, fs.Truncate(ctx, "/f", 3*testBlockSize))

		buf := make([]byte, 3*testBlockSize)
		n, err := fs.Read(ctx, "/f", buf, 0)
		require.NoError(t, err)
		require.Equal(t, 3*testBlockSize, n)
		assert.Equal(t, bytes.Repeat([]byte{0xff}, 10), buf[:10])
		assert.Equal(t, make([]byte, 3*testBlockSize-10), buf[10:])

		attr, err := fs.GetAttr(ctx, "/f")
		require.NoError(t, err)
		assert.Equal(t, int64(1), attr.Blocks, "growing adds holes only")
	})

	t.Run("Zero", func(t *testing.T) {
		require.NoError(t, fs.Truncate(ctx, "/f", 0))

		attr, err := fs.GetAttr(ctx, "/f")
		require.NoError(t, err)
		assert.Equal(t, int64(0), attr.Size)
		assert.Equal(t, int64(0), attr.Blocks)
	})
}

func TestDataOperationsOnWrongKinds(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Mkdir(ctx, "/d", 0o755)
	require.NoError(t, err)

	_, err = fs.Read(ctx, "/d", make([]byte, 1), 0)
	requireCode(t, err, ErrIsADirectory)
	_, err = fs.Write(ctx, "/d", []byte("x"), 0)
	requireCode(t, err, ErrIsADirectory)
	requireCode(t, fs.Truncate(ctx, "/d", 0), ErrIsADirectory)

	_, err = fs.Read(ctx, "/missing", make([]byte, 1), 0)
	requireCode(t, err, ErrNotFound)
}

func TestDataOperationsFollowSymlinks(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Create(ctx, "/target", 0o644)
	require.NoError(t, err)
	_, err = fs.Symlink(ctx, "target", "/link")
	require.NoError(t, err)
	_, err = fs.Symlink(ctx, "/link", "/chain")
	require.NoError(t, err)

	_, err = fs.Write(ctx, "/chain", []byte("through"), 0)
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := fs.Read(ctx, "/target", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "through", string(buf[:n]))

	require.NoError(t, fs.Truncate(ctx, "/link", 3))
	attr, err := fs.GetAttr(ctx, "/target")
	require.NoError(t, err)
	assert.Equal(t, int64(3), attr.Size)

	resolved, err := fs.ResolveSymlink(ctx, "/chain")
	require.NoError(t, err)
	assert.Equal(t, attr.ID, resolved.ID)

	t.Run("Dangling", func(t *testing.T) {
		_, err := fs.Symlink(ctx, "/gone", "/dangling")
		require.NoError(t, err)

		_, err = fs.Read(ctx, "/dangling", buf, 0)
		requireCode(t, err, ErrNotFound)
	})

	t.Run("Loop", func(t *testing.T) {
		_, err := fs.Symlink(ctx, "/b", "/a")
		require.NoError(t, err)
		_, err = fs.Symlink(ctx, "/a", "/b")
		require.NoError(t, err)

		_, err = fs.Read(ctx, "/a", buf, 0)
		requireCode(t, err, ErrSymlinkLoop)

		_, err = fs.Symlink(ctx, "/self", "/self")
		require.NoError(t, err)
		_, err = fs.ResolveSymlink(ctx, "/self")
		requireCode(t, err, ErrSymlinkLoop)
	})
}

func TestDataTimestamps(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Create(ctx, "/f", 0o644)
	require.NoError(t, err)

	old := time.Unix(1000, 0)
	require.NoError(t, fs.Utimes(ctx, "/f", old, old))
	before, err := fs.GetAttr(ctx, "/f")
	require.NoError(t, err)

	_, err = fs.Write(ctx, "/f", []byte("x"), 0)
	require.NoError(t, err)

	afterWrite, err := fs.GetAttr(ctx, "/f")
	require.NoError(t, err)
	assert.True(t, afterWrite.Mtime.After(old))
	assert.True(t, afterWrite.Atime.Equal(old), "write leaves atime alone")
	assert.Equal(t, before.Ctime, afterWrite.Ctime, "write leaves ctime alone")

	_, err = fs.Read(ctx, "/f", make([]byte, 1), 0)
	require.NoError(t, err)

	afterRead, err := fs.GetAttr(ctx, "/f")
	require.NoError(t, err)
	assert.True(t, afterRead.Atime.After(old))
	assert.Equal(t, afterWrite.Mtime, afterRead.Mtime)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *FileSystem {
		fs := newTestFS(t)
		_, err := fs.Mkdir(ctx, "/d", 0o755)
		require.NoError(t, err)
		_, err = fs.Create(ctx, "/f", 0o600)
		require.NoError(t, err)
		_, err = fs.Write(ctx, "/f", []byte("content"), 0)
		require.NoError(t, err)
		_, err = fs.Symlink(ctx, "/f", "/l")
		require.NoError(t, err)
		return fs
	}

	tests := []struct {
		name  string
		path  string
		flags OpenFlags
		want  *ErrorCode
	}{
		{"Plain", "/f", OpenFlags{}, nil},
		{"Directory", "/d", OpenFlags{}, codePtr(ErrIsADirectory)},
		{"Exclusive", "/f", OpenFlags{Create: true, Exclusive: true}, codePtr(ErrAlreadyExists)},
		{"ExclusiveWithoutCreate", "/f", OpenFlags{Exclusive: true}, nil},
		{"FollowsSymlink", "/l", OpenFlags{}, nil},
		{"NoFollowSymlink", "/l", OpenFlags{NoFollow: true}, codePtr(ErrSymlinkLoop)},
		{"NoFollowFile", "/f", OpenFlags{NoFollow: true}, nil},
		{"SymlinkOnly", "/l", OpenFlags{SymlinkOnly: true}, codePtr(ErrNotFound)},
		{"SharedLock", "/f", OpenFlags{SharedLock: true}, codePtr(ErrOperationNotSupported)},
		{"ExclusiveLock", "/f", OpenFlags{ExclusiveLock: true}, codePtr(ErrOperationNotSupported)},
		{"Missing", "/nope", OpenFlags{}, codePtr(ErrNotFound)},
		{"CreateMissingParent", "/nope/f", OpenFlags{Create: true}, codePtr(ErrNotFound)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := setup(t)
			attr, err := fs.Open(ctx, tt.path, tt.flags)
			if tt.want != nil {
				requireCode(t, err, *tt.want)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, KindFile, attr.Kind)
			assert.Equal(t, int64(7), attr.Size)
		})
	}

	t.Run("Truncate", func(t *testing.T) {
		fs := setup(t)
		attr, err := fs.Open(ctx, "/l", OpenFlags{Truncate: true})
		require.NoError(t, err)
		assert.Equal(t, int64(0), attr.Size)
		assert.Equal(t, int64(1), attr.Blocks)
	})

	t.Run("CreateMissing", func(t *testing.T) {
		fs := setup(t)
		attr, err := fs.Open(ctx, "/d/new", OpenFlags{Create: true, Exclusive: true})
		require.NoError(t, err)
		assert.Equal(t, KindFile, attr.Kind)
		assert.Equal(t, ModeRegular|0o755, attr.Mode)

		_, err = fs.Open(ctx, "/d/new", OpenFlags{Create: true, Exclusive: true})
		requireCode(t, err, ErrAlreadyExists)
	})
}

func codePtr(c ErrorCode) *ErrorCode {
	return &c
}

func TestConcurrentWriteAndTruncate(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Create(ctx, "/f", 0o644)
	require.NoError(t, err)

	chunk := bytes.Repeat([]byte{0xab}, testBlockSize)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_, err := fs.Write(ctx, "/f", chunk, int64((w*100+i)%16)*testBlockSize)
				assert.NoError(t, err)
			}
		}(w)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			assert.NoError(t, fs.Truncate(ctx, "/f", int64(i%8)*testBlockSize))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]byte, 4*testBlockSize)
		for i := 0; i < 100; i++ {
			n, err := fs.Read(ctx, "/f", buf, 0)
			assert.NoError(t, err)
			for _, b := range buf[:n] {
				if b != 0 && b != 0xab {
					t.Errorf("read unexpected byte %#x", b)
					return
				}
			}
		}
	}()

	wg.Wait()

	attr, err := fs.GetAttr(ctx, "/f")
	require.NoError(t, err)
	assert.LessOrEqual(t, attr.Size, int64(16*testBlockSize))
}
