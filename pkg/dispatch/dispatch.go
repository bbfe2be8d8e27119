// Package dispatch exposes the filesystem engine through raw, errno-returning
// calls in the shape a userspace filesystem callback table expects.
//
// Every call takes its path and name arguments as byte strings exactly as
// they arrive from the kernel. An argument that is nil or not valid UTF-8 is
// treated as an absent path and the call fails with -ENOENT before touching
// any state. Results follow the usual convention: a non-negative value is
// success (a byte count where the operation produces one) and a negative
// value is the negated errno.
package dispatch

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/marmos91/memfs/internal/logger"
	"github.com/marmos91/memfs/pkg/memfs"
	"golang.org/x/sys/unix"
)

// Dispatcher routes raw calls to a FileSystem.
type Dispatcher struct {
	fs *memfs.FileSystem
}

// New returns a dispatcher over fs.
func New(fs *memfs.FileSystem) *Dispatcher {
	return &Dispatcher{fs: fs}
}

// FileSystem returns the engine behind the dispatcher.
func (d *Dispatcher) FileSystem() *memfs.FileSystem {
	return d.fs
}

// decode turns a raw argument into a string. It reports false for nil or
// malformed input.
func decode(b []byte) (string, bool) {
	if b == nil || !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}

func decodeFailed(op string, raw []byte) int {
	logger.Warn("%s: received byte sequence that could not be decoded: %x", op, raw)
	return -int(unix.ENOENT)
}

// result converts an engine error into a call result and logs it.
func result(op, p string, err error) int {
	if err == nil {
		return 0
	}

	errno := memfs.ToErrno(err)
	if memfs.IsCode(err, memfs.ErrInternalConsistency) {
		logger.Error("%s %s: %v", op, p, err)
	} else {
		logger.Debug("%s %s: %v (errno=%d)", op, p, err, errno)
	}
	return -int(errno)
}

// ============================================================================
// Attribute Conversion
// ============================================================================

// FillAttr copies a to out in kernel attribute form. Blocks is reported in
// 512-byte units.
func FillAttr(a memfs.Attr, out *fuse.Attr) {
	out.Ino = uint64(a.ID)
	out.Mode = a.Mode
	out.Nlink = a.Nlink
	out.Uid = a.UID
	out.Gid = a.GID
	out.Size = uint64(a.Size)
	out.Blksize = uint32(a.BlockSize)
	out.Blocks = uint64(a.Blocks) * uint64(a.BlockSize) / 512

	atime, mtime, ctime := a.Atime, a.Mtime, a.Ctime
	out.SetTimes(&atime, &mtime, &ctime)
}

// FillStatfs copies st to out in kernel statfs form.
func FillStatfs(st memfs.StatFS, out *fuse.StatfsOut) {
	out.Bsize = st.BlockSize
	out.Frsize = st.BlockSize
	out.Blocks = st.Blocks
	out.Bfree = st.BlocksFree
	out.Bavail = st.BlocksFree
	out.Files = st.Files
	out.Ffree = st.FilesFree
	out.NameLen = st.NameMax
}

// ============================================================================
// Entries
// ============================================================================

// Getattr fills out with the attributes of path. A final symlink is not
// followed.
func (d *Dispatcher) Getattr(ctx context.Context, path []byte, out *fuse.Attr) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("getattr", path)
	}

	attr, err := d.fs.GetAttr(ctx, p)
	if err != nil {
		return result("getattr", p, err)
	}
	FillAttr(attr, out)
	return 0
}

// Mkdir creates a directory with the given permission bits.
func (d *Dispatcher) Mkdir(ctx context.Context, path []byte, mode uint32) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("mkdir", path)
	}

	_, err := d.fs.Mkdir(ctx, p, mode)
	return result("mkdir", p, err)
}

// Create creates a regular file with the given permission bits.
func (d *Dispatcher) Create(ctx context.Context, path []byte, mode uint32) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("create", path)
	}

	_, err := d.fs.Create(ctx, p, mode)
	return result("create", p, err)
}

// Unlink removes a non-directory entry. A directory is reported as -EISDIR.
func (d *Dispatcher) Unlink(ctx context.Context, path []byte) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("unlink", path)
	}

	return result("unlink", p, d.fs.Unlink(ctx, p))
}

// Rmdir removes an empty directory. A non-empty directory is reported as
// -ENOTEMPTY and any other kind of entry as -ENOENT.
func (d *Dispatcher) Rmdir(ctx context.Context, path []byte) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("rmdir", path)
	}

	return result("rmdir", p, d.fs.RmdirEmpty(ctx, p))
}

// Rename moves oldPath to newPath, replacing a compatible destination.
func (d *Dispatcher) Rename(ctx context.Context, oldPath, newPath []byte) int {
	src, ok := decode(oldPath)
	if !ok {
		return decodeFailed("rename", oldPath)
	}
	dst, ok := decode(newPath)
	if !ok {
		return decodeFailed("rename", newPath)
	}

	return result("rename", src, d.fs.Rename(ctx, src, dst))
}

// Symlink creates a symlink at link pointing to target.
func (d *Dispatcher) Symlink(ctx context.Context, target, link []byte) int {
	t, ok := decode(target)
	if !ok {
		return decodeFailed("symlink", target)
	}
	l, ok := decode(link)
	if !ok {
		return decodeFailed("symlink", link)
	}

	_, err := d.fs.Symlink(ctx, t, l)
	return result("symlink", l, err)
}

// Readlink copies the symlink target into buf, NUL-terminated and truncated
// to fit.
func (d *Dispatcher) Readlink(ctx context.Context, path, buf []byte) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("readlink", path)
	}

	_, err := d.fs.Readlink(ctx, p, buf)
	return result("readlink", p, err)
}

// FillDir receives one directory entry. Returning false stops the listing.
type FillDir func(name []byte, ino uint64, mode uint32) bool

// Readdir passes ".", ".." and every child of path, in name order, to fill.
func (d *Dispatcher) Readdir(ctx context.Context, path []byte, fill FillDir) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("readdir", path)
	}

	entries, err := d.fs.Readdir(ctx, p)
	if err != nil {
		return result("readdir", p, err)
	}

	for _, e := range entries {
		if !fill([]byte(e.Name), uint64(e.ID), entryMode(e.Kind)) {
			break
		}
	}
	return 0
}

func entryMode(k memfs.Kind) uint32 {
	switch k {
	case memfs.KindDirectory:
		return memfs.ModeDir
	case memfs.KindSymlink:
		return memfs.ModeSymlink
	case memfs.KindFile:
	}
	return memfs.ModeRegular
}

// Statfs fills out with capacity and usage. path must exist.
func (d *Dispatcher) Statfs(ctx context.Context, path []byte, out *fuse.StatfsOut) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("statfs", path)
	}

	st, err := d.fs.StatFS(ctx, p)
	if err != nil {
		return result("statfs", p, err)
	}
	FillStatfs(st, out)
	return 0
}

// ============================================================================
// Metadata
// ============================================================================

// Chmod replaces the permission bits of path.
func (d *Dispatcher) Chmod(ctx context.Context, path []byte, mode uint32) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("chmod", path)
	}
	return result("chmod", p, d.fs.Chmod(ctx, p, mode))
}

// Chown changes owner and group; -1 keeps the current value.
func (d *Dispatcher) Chown(ctx context.Context, path []byte, uid, gid int64) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("chown", path)
	}
	return result("chown", p, d.fs.Chown(ctx, p, uid, gid))
}

// Utimens sets the access and modification times of path.
func (d *Dispatcher) Utimens(ctx context.Context, path []byte, atime, mtime time.Time) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("utimens", path)
	}
	return result("utimens", p, d.fs.Utimes(ctx, p, atime, mtime))
}

// Chflags replaces the flags bitmask of path.
func (d *Dispatcher) Chflags(ctx context.Context, path []byte, flags uint32) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("chflags", path)
	}
	return result("chflags", p, d.fs.Chflags(ctx, p, flags))
}

// GetXTimes stores the backup and creation times of path.
func (d *Dispatcher) GetXTimes(ctx context.Context, path []byte, backup, creation *time.Time) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("getxtimes", path)
	}

	b, c, err := d.fs.GetXTimes(ctx, p)
	if err != nil {
		return result("getxtimes", p, err)
	}
	*backup, *creation = b, c
	return 0
}

// SetBackupTime sets the backup time of path.
func (d *Dispatcher) SetBackupTime(ctx context.Context, path []byte, t time.Time) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("setbkuptime", path)
	}
	return result("setbkuptime", p, d.fs.SetBackupTime(ctx, p, t))
}

// SetCreateTime sets the creation time of path.
func (d *Dispatcher) SetCreateTime(ctx context.Context, path []byte, t time.Time) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("setcrtime", path)
	}
	return result("setcrtime", p, d.fs.SetCreateTime(ctx, p, t))
}
