package fuse

import (
	"bytes"
	"context"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fuse"
	"github.com/marmos91/memfs/pkg/dispatch"
)

// maxLinkLen matches PATH_MAX; longer targets are truncated by readlink.
const maxLinkLen = 4096

// toErrno converts a dispatcher result into the errno go-fuse expects.
func toErrno(res int) syscall.Errno {
	if res >= 0 {
		return 0
	}
	return syscall.Errno(-res)
}

func childPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// setattr applies the fields present in in, in the order the kernel expects:
// mode, ownership, size, then times.
func setattr(ctx context.Context, d *dispatch.Dispatcher, p string, in *gofuse.SetAttrIn) syscall.Errno {
	raw := []byte(p)

	if mode, ok := in.GetMode(); ok {
		if errno := toErrno(d.Chmod(ctx, raw, mode&0o7777)); errno != 0 {
			return errno
		}
	}

	uid, uidOK := in.GetUID()
	gid, gidOK := in.GetGID()
	if uidOK || gidOK {
		u, g := int64(-1), int64(-1)
		if uidOK {
			u = int64(uid)
		}
		if gidOK {
			g = int64(gid)
		}
		if errno := toErrno(d.Chown(ctx, raw, u, g)); errno != 0 {
			return errno
		}
	}

	if size, ok := in.GetSize(); ok {
		if errno := toErrno(d.Truncate(ctx, raw, int64(size))); errno != 0 {
			return errno
		}
	}

	atime, atimeOK := in.GetATime()
	mtime, mtimeOK := in.GetMTime()
	if !atimeOK && !mtimeOK {
		return 0
	}
	if !atimeOK || !mtimeOK {
		var cur gofuse.Attr
		if errno := toErrno(d.Getattr(ctx, raw, &cur)); errno != 0 {
			return errno
		}
		if !atimeOK {
			atime = time.Unix(int64(cur.Atime), int64(cur.Atimensec))
		}
		if !mtimeOK {
			mtime = time.Unix(int64(cur.Mtime), int64(cur.Mtimensec))
		}
	}
	return toErrno(d.Utimens(ctx, raw, atime, mtime))
}

// readdir lists the children of p. The kernel synthesizes "." and "..".
func readdir(ctx context.Context, d *dispatch.Dispatcher, p string) ([]gofuse.DirEntry, syscall.Errno) {
	var entries []gofuse.DirEntry
	res := d.Readdir(ctx, []byte(p), func(name []byte, ino uint64, mode uint32) bool {
		n := string(name)
		if n == "." || n == ".." {
			return true
		}
		entries = append(entries, gofuse.DirEntry{Name: n, Ino: ino, Mode: mode})
		return true
	})
	if errno := toErrno(res); errno != 0 {
		return nil, errno
	}
	return entries, 0
}

func readlink(ctx context.Context, d *dispatch.Dispatcher, p string) ([]byte, syscall.Errno) {
	buf := make([]byte, maxLinkLen+1)
	if errno := toErrno(d.Readlink(ctx, []byte(p), buf)); errno != 0 {
		return nil, errno
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return buf, 0
}

// setxattr stores a value sent by the kernel. setxattr(2) always carries a
// value, possibly empty, so a nil slice is passed on as an empty one.
func setxattr(ctx context.Context, d *dispatch.Dispatcher, p, attr string, data []byte, flags uint32) syscall.Errno {
	if data == nil {
		data = []byte{}
	}
	return toErrno(d.Setxattr(ctx, []byte(p), []byte(attr), data, int(flags), 0))
}

// getxattr follows the getxattr(2) size protocol: an empty dest asks for the
// size, and a short dest fails with ERANGE while still reporting the size.
func getxattr(ctx context.Context, d *dispatch.Dispatcher, p, attr string, dest []byte) (uint32, syscall.Errno) {
	raw, name := []byte(p), []byte(attr)

	if len(dest) == 0 {
		dest = nil
	}
	res := d.Getxattr(ctx, raw, name, dest, 0)
	if res == -int(syscall.ERANGE) {
		size := d.Getxattr(ctx, raw, name, nil, 0)
		if size < 0 {
			return 0, toErrno(size)
		}
		return uint32(size), syscall.ERANGE
	}
	if res < 0 {
		return 0, toErrno(res)
	}
	return uint32(res), 0
}

// listxattr follows the listxattr(2) size protocol, like getxattr.
func listxattr(ctx context.Context, d *dispatch.Dispatcher, p string, dest []byte) (uint32, syscall.Errno) {
	raw := []byte(p)

	if len(dest) == 0 {
		dest = nil
	}
	res := d.Listxattr(ctx, raw, dest)
	if res == -int(syscall.ERANGE) {
		size := d.Listxattr(ctx, raw, nil)
		if size < 0 {
			return 0, toErrno(size)
		}
		return uint32(size), syscall.ERANGE
	}
	if res < 0 {
		return 0, toErrno(res)
	}
	return uint32(res), 0
}
