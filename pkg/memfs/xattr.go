package memfs

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/memfs/pkg/xattr"
)

// ============================================================================
// Extended Attributes
// ============================================================================
//
// Extended attributes are addressed on the entry itself; a final symlink is
// not followed.

// SetXattr stores value under name on the entry at p.
//
// Returns error if:
//   - name is empty or value is nil (ErrInvalidArgument)
//   - flags has xattr.FlagCreate and name exists (ErrAlreadyExists)
//   - flags has xattr.FlagReplace and name is absent (ErrAttributeNotFound)
func (fs *FileSystem) SetXattr(ctx context.Context, p, name string, value []byte, flags xattr.Flags) (err error) {
	defer fs.observe("SetXattr", time.Now(), &err)

	return fs.mutate(ctx, p, func(n *inode, now time.Time) error {
		if err := n.xattrStore().Set(name, value, flags); err != nil {
			return xattrError(err, p)
		}
		n.ctime = now
		return nil
	})
}

// GetXattr copies the value of name, starting at position, into dest and
// returns the number of bytes from position to the end of the value. A nil
// dest only queries that size.
//
// Returns error if:
//   - name is absent (ErrAttributeNotFound)
//   - position is negative or past the end of the value (ErrInvalidArgument)
//   - dest is non-nil and too small (ErrRangeError)
func (fs *FileSystem) GetXattr(ctx context.Context, p, name string, position int64, dest []byte) (n int, err error) {
	defer fs.observe("GetXattr", time.Now(), &err)

	err = fs.inspect(ctx, p, func(s *xattr.Store) error {
		var xerr error
		n, xerr = s.Read(name, position, dest)
		return xattrError(xerr, p)
	})
	return n, err
}

// ListXattr writes the attribute names of the entry at p into dest, each
// terminated by a NUL byte, and returns the number of bytes written. A nil
// dest returns the total size needed. If dest is too small, ErrRangeError is
// returned and the names that did fit stay in dest.
func (fs *FileSystem) ListXattr(ctx context.Context, p string, dest []byte) (n int, err error) {
	defer fs.observe("ListXattr", time.Now(), &err)

	err = fs.inspect(ctx, p, func(s *xattr.Store) error {
		var xerr error
		n, xerr = s.List(dest)
		return xattrError(xerr, p)
	})
	return n, err
}

// XattrNames returns the attribute names of the entry at p in sorted order.
func (fs *FileSystem) XattrNames(ctx context.Context, p string) (names []string, err error) {
	err = fs.inspect(ctx, p, func(s *xattr.Store) error {
		names = s.Names()
		return nil
	})
	return names, err
}

// RemoveXattr deletes name from the entry at p.
func (fs *FileSystem) RemoveXattr(ctx context.Context, p, name string) (err error) {
	defer fs.observe("RemoveXattr", time.Now(), &err)

	return fs.mutate(ctx, p, func(n *inode, now time.Time) error {
		if n.xattrs == nil {
			return newError(ErrAttributeNotFound, "no such attribute", p)
		}
		if err := n.xattrs.Remove(name); err != nil {
			return xattrError(err, p)
		}
		n.ctime = now
		return nil
	})
}

// inspect runs fn on the attribute store of the entry at p under the read
// lock. An entry that never had attributes is given an empty store.
func (fs *FileSystem) inspect(ctx context.Context, p string, fn func(s *xattr.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := cleanPath(p)
	if err != nil {
		return err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	n, err := fs.lookupLocked(p)
	if err != nil {
		return err
	}
	if n.xattrs == nil {
		return fn(&xattr.Store{})
	}
	return fn(n.xattrs)
}

func xattrError(err error, p string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, xattr.ErrNotFound):
		return newError(ErrAttributeNotFound, "no such attribute", p)
	case errors.Is(err, xattr.ErrExists):
		return newError(ErrAlreadyExists, "attribute exists", p)
	case errors.Is(err, xattr.ErrRange):
		return newError(ErrRangeError, "buffer too small", p)
	case errors.Is(err, xattr.ErrInvalid):
		return newError(ErrInvalidArgument, "invalid attribute argument", p)
	default:
		return err
	}
}
