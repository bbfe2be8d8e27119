package memfs

import (
	"context"
	"time"
)

// ============================================================================
// Attributes
// ============================================================================

// GetAttr returns the attributes of the entry at p. A final symlink is not
// followed.
func (fs *FileSystem) GetAttr(ctx context.Context, p string) (attr Attr, err error) {
	defer fs.observe("GetAttr", time.Now(), &err)

	if err = ctx.Err(); err != nil {
		return Attr{}, err
	}
	if p, err = cleanPath(p); err != nil {
		return Attr{}, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	n, err := fs.lookupLocked(p)
	if err != nil {
		return Attr{}, err
	}
	return n.attr(fs.opts.BlockSize), nil
}

// GetAttrByID returns the attributes of a live inode by identifier.
func (fs *FileSystem) GetAttrByID(ctx context.Context, id InodeID) (Attr, error) {
	if err := ctx.Err(); err != nil {
		return Attr{}, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	n, ok := fs.node(id)
	if !ok {
		return Attr{}, newError(ErrNotFound, "no such inode", "")
	}
	return n.attr(fs.opts.BlockSize), nil
}

// mutate runs fn on the inode at p under the write lock. fn receives the
// current time so every field it touches shares one instant.
func (fs *FileSystem) mutate(ctx context.Context, p string, fn func(n *inode, now time.Time) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := cleanPath(p)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.lookupLocked(p)
	if err != nil {
		return err
	}
	return fn(n, time.Now())
}

// Chmod replaces the permission bits of the entry at p, keeping its type
// bits, and updates its status-change time.
func (fs *FileSystem) Chmod(ctx context.Context, p string, mode uint32) (err error) {
	defer fs.observe("Chmod", time.Now(), &err)

	return fs.mutate(ctx, p, func(n *inode, now time.Time) error {
		n.mode = n.mode&ModeTypeMask | mode&ModePerm
		n.ctime = now
		return nil
	})
}

// Chown replaces the owner and group of the entry at p. A value of -1
// leaves the corresponding id unchanged.
func (fs *FileSystem) Chown(ctx context.Context, p string, uid, gid int64) (err error) {
	defer fs.observe("Chown", time.Now(), &err)

	return fs.mutate(ctx, p, func(n *inode, now time.Time) error {
		if uid >= 0 {
			n.uid = uint32(uid)
		}
		if gid >= 0 {
			n.gid = uint32(gid)
		}
		n.ctime = now
		return nil
	})
}

// Utimes sets the access and modification times of the entry at p exactly
// as given and sets its status-change time to now.
func (fs *FileSystem) Utimes(ctx context.Context, p string, atime, mtime time.Time) (err error) {
	defer fs.observe("Utimes", time.Now(), &err)

	return fs.mutate(ctx, p, func(n *inode, now time.Time) error {
		n.atime = atime
		n.mtime = mtime
		n.ctime = now
		return nil
	})
}

// Chflags replaces the flags bitmask of the entry at p. No timestamp
// changes.
func (fs *FileSystem) Chflags(ctx context.Context, p string, flags uint32) (err error) {
	defer fs.observe("Chflags", time.Now(), &err)

	return fs.mutate(ctx, p, func(n *inode, _ time.Time) error {
		n.flags = flags
		return nil
	})
}

// GetXTimes returns the backup and creation times of the entry at p.
func (fs *FileSystem) GetXTimes(ctx context.Context, p string) (backup, creation time.Time, err error) {
	attr, err := fs.GetAttr(ctx, p)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return attr.Btime, attr.Crtime, nil
}

// SetBackupTime sets the backup time of the entry at p. Other timestamps
// are left alone.
func (fs *FileSystem) SetBackupTime(ctx context.Context, p string, t time.Time) (err error) {
	defer fs.observe("SetBackupTime", time.Now(), &err)

	return fs.mutate(ctx, p, func(n *inode, _ time.Time) error {
		n.btime = t
		return nil
	})
}

// SetCreateTime sets the creation time of the entry at p. Other timestamps
// are left alone.
func (fs *FileSystem) SetCreateTime(ctx context.Context, p string, t time.Time) (err error) {
	defer fs.observe("SetCreateTime", time.Now(), &err)

	return fs.mutate(ctx, p, func(n *inode, _ time.Time) error {
		n.crtime = t
		return nil
	})
}

// ============================================================================
// Symlinks
// ============================================================================

// Readlink copies the target of the symlink at p into buf, truncated to
// len(buf)-1 bytes, followed by a NUL byte. It returns the number of target
// bytes copied. An empty buf receives nothing.
func (fs *FileSystem) Readlink(ctx context.Context, p string, buf []byte) (int, error) {
	target, err := fs.ReadlinkString(ctx, p)
	if err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		return 0, nil
	}

	n := copy(buf[:len(buf)-1], target)
	buf[n] = 0
	return n, nil
}

// ReadlinkString returns the target of the symlink at p.
func (fs *FileSystem) ReadlinkString(ctx context.Context, p string) (target string, err error) {
	defer fs.observe("Readlink", time.Now(), &err)

	if err = ctx.Err(); err != nil {
		return "", err
	}
	if p, err = cleanPath(p); err != nil {
		return "", err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	n, err := fs.lookupLocked(p)
	if err != nil {
		return "", err
	}

	switch n.kind {
	case KindSymlink:
		return n.target, nil
	case KindDirectory, KindFile:
	}
	return "", newError(ErrInvalidArgument, "not a symbolic link", p)
}
