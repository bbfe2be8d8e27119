package dispatch

import (
	"context"

	"github.com/marmos91/memfs/pkg/memfs"
	"golang.org/x/sys/unix"
)

// Lock modes a caller may request together with Open.
const (
	LockNone      = 0
	LockShared    = unix.LOCK_SH
	LockExclusive = unix.LOCK_EX
)

// OpenFlags translates open(2) flags and a lock mode into engine flags.
func OpenFlags(flags, lock int) memfs.OpenFlags {
	return memfs.OpenFlags{
		Create:        flags&unix.O_CREAT != 0,
		Exclusive:     flags&unix.O_EXCL != 0,
		Truncate:      flags&unix.O_TRUNC != 0,
		NoFollow:      flags&unix.O_NOFOLLOW != 0,
		SymlinkOnly:   flags&oSymlinkOnly != 0,
		SharedLock:    lock&LockShared != 0 || flags&oSharedLock != 0,
		ExclusiveLock: lock&LockExclusive != 0 || flags&oExclusiveLock != 0,
	}
}

// Open validates an open request. With O_CREAT a missing file is created
// with the mode derived from its parent.
func (d *Dispatcher) Open(ctx context.Context, path []byte, flags, lock int) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("open", path)
	}

	_, err := d.fs.Open(ctx, p, OpenFlags(flags, lock))
	return result("open", p, err)
}

// Read copies file content at off into buf and returns the byte count.
func (d *Dispatcher) Read(ctx context.Context, path, buf []byte, off int64) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("read", path)
	}

	n, err := d.fs.Read(ctx, p, buf, off)
	if err != nil {
		return result("read", p, err)
	}
	return n
}

// Write stores data at off and returns the byte count.
func (d *Dispatcher) Write(ctx context.Context, path, data []byte, off int64) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("write", path)
	}

	n, err := d.fs.Write(ctx, p, data, off)
	if err != nil {
		return result("write", p, err)
	}
	return n
}

// Truncate sets the length of a file.
func (d *Dispatcher) Truncate(ctx context.Context, path []byte, size int64) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("truncate", path)
	}
	return result("truncate", p, d.fs.Truncate(ctx, p, size))
}
