package dispatch

import (
	"context"
	"math"

	"github.com/marmos91/memfs/pkg/xattr"
	"golang.org/x/sys/unix"
)

// XattrFlags translates setxattr(2) flags into store flags.
func XattrFlags(flags int) xattr.Flags {
	var f xattr.Flags
	if flags&unix.XATTR_CREATE != 0 {
		f |= xattr.FlagCreate
	}
	if flags&unix.XATTR_REPLACE != 0 {
		f |= xattr.FlagReplace
	}
	return f
}

func validPosition(position int64) bool {
	return position >= 0 && position <= math.MaxInt32
}

// Setxattr stores value under name on path. A nil value is an absent value
// and fails with -EINVAL; an empty slice stores an empty attribute. position
// is accepted for resource-fork style callers but must lie in the 32-bit
// range.
func (d *Dispatcher) Setxattr(ctx context.Context, path, name, value []byte, flags int, position int64) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("setxattr", path)
	}
	n, ok := decode(name)
	if !ok {
		return decodeFailed("setxattr", name)
	}
	if !validPosition(position) {
		return -int(unix.EINVAL)
	}

	return result("setxattr", p, d.fs.SetXattr(ctx, p, n, value, XattrFlags(flags)))
}

// Getxattr copies the value of name from position into dest and returns the
// number of bytes. A nil dest returns the size only.
func (d *Dispatcher) Getxattr(ctx context.Context, path, name, dest []byte, position int64) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("getxattr", path)
	}
	n, ok := decode(name)
	if !ok {
		return decodeFailed("getxattr", name)
	}
	if !validPosition(position) {
		return -int(unix.EINVAL)
	}

	size, err := d.fs.GetXattr(ctx, p, n, position, dest)
	if err != nil {
		return result("getxattr", p, err)
	}
	return size
}

// Listxattr writes the NUL-terminated attribute names of path into dest and
// returns the byte count. A nil dest returns the size only.
func (d *Dispatcher) Listxattr(ctx context.Context, path, dest []byte) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("listxattr", path)
	}

	size, err := d.fs.ListXattr(ctx, p, dest)
	if err != nil {
		return result("listxattr", p, err)
	}
	return size
}

// Removexattr deletes name from path.
func (d *Dispatcher) Removexattr(ctx context.Context, path, name []byte) int {
	p, ok := decode(path)
	if !ok {
		return decodeFailed("removexattr", path)
	}
	n, ok := decode(name)
	if !ok {
		return decodeFailed("removexattr", name)
	}

	return result("removexattr", p, d.fs.RemoveXattr(ctx, p, n))
}
