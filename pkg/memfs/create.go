package memfs

import (
	"context"
	"time"

	"github.com/marmos91/memfs/internal/logger"
	"github.com/marmos91/memfs/pkg/blocks"
)

// ============================================================================
// Entry Creation
// ============================================================================

// Create creates an empty regular file at p with permission bits mode.
func (fs *FileSystem) Create(ctx context.Context, p string, mode uint32) (attr Attr, err error) {
	defer fs.observe("Create", time.Now(), &err)
	return fs.create(ctx, p, KindFile, &mode, "")
}

// Mkdir creates an empty directory at p with permission bits mode.
func (fs *FileSystem) Mkdir(ctx context.Context, p string, mode uint32) (attr Attr, err error) {
	defer fs.observe("Mkdir", time.Now(), &err)
	return fs.create(ctx, p, KindDirectory, &mode, "")
}

// Symlink creates a symbolic link at linkPath pointing to target. The target
// is stored verbatim and need not exist.
func (fs *FileSystem) Symlink(ctx context.Context, target, linkPath string) (attr Attr, err error) {
	defer fs.observe("Symlink", time.Now(), &err)
	return fs.create(ctx, linkPath, KindSymlink, nil, target)
}

func (fs *FileSystem) create(ctx context.Context, p string, kind Kind, mode *uint32, target string) (Attr, error) {
	if err := ctx.Err(); err != nil {
		return Attr{}, err
	}
	p, err := cleanPath(p)
	if err != nil {
		return Attr{}, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.createEntryLocked(p, kind, mode, target)
	if err != nil {
		return Attr{}, err
	}
	return n.attr(fs.opts.BlockSize), nil
}

// createEntryLocked creates a new inode of the given kind at p.
//
// The parent is resolved (following a symlinked parent) and must be a
// directory. The new inode inherits owner and group from the parent. Its
// permission bits are mode when given, otherwise the parent's permission
// bits masked to 0777. All timestamps are set to now except the backup
// time, which is the Unix epoch.
//
// The entry is added to the parent's children and to the path index in one
// step under the write lock, then verified.
//
// Returns error if:
//   - The final name is empty (ErrInvalidName)
//   - A path component is missing (ErrNotFound)
//   - The parent is not a directory (ErrNotADirectory)
//   - The name is already taken (ErrAlreadyExists)
func (fs *FileSystem) createEntryLocked(p string, kind Kind, mode *uint32, target string) (*inode, error) {
	parent, parentPath, name, err := fs.parentLocked(p, true)
	if err != nil {
		return nil, err
	}

	if _, exists := parent.children[name]; exists {
		return nil, newError(ErrAlreadyExists, "file exists", p)
	}

	perm := parent.mode & 0o777
	if mode != nil {
		perm = *mode & ModePerm
	}

	now := time.Now()
	n := &inode{
		id:     fs.allocID(),
		kind:   kind,
		uid:    parent.uid,
		gid:    parent.gid,
		mode:   kind.typeBits() | perm,
		nlink:  1,
		atime:  now,
		mtime:  now,
		ctime:  now,
		crtime: now,
		btime:  time.Unix(0, 0),
	}

	switch kind {
	case KindDirectory:
		n.children = make(map[string]InodeID)
	case KindFile:
		n.data = blocks.New(fs.opts.BlockSize, fs.opts.MaxFileSize)
	case KindSymlink:
		n.target = target
	}

	fs.insertLocked(parent, parentPath, name, n)
	parent.mtime = now
	parent.ctime = now

	if err := fs.verifyEntryLocked(parent, parentPath, name); err != nil {
		return nil, err
	}
	if err := fs.afterMutationLocked(); err != nil {
		return nil, err
	}

	logger.Debug("memfs: created %s %s (id=%d mode=%o)", kind, joinPath(parentPath, name), n.id, n.mode)
	return n, nil
}
