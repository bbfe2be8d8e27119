package memfs

import (
	"context"
	"time"

	"github.com/marmos91/memfs/internal/logger"
)

// ============================================================================
// Entry Removal
// ============================================================================

// removeFilter restricts which kinds of entry a removal accepts.
type removeFilter int

const (
	// removeNonDirectory accepts files and symlinks; a directory fails with
	// ErrIsADirectory.
	removeNonDirectory removeFilter = iota
	// removeDirectory accepts directories, empty or not. Anything else is
	// reported as ErrNotFound.
	removeDirectory
	// removeEmptyDirectory is removeDirectory that also fails with
	// ErrNotEmpty while the directory has children.
	removeEmptyDirectory
)

// Unlink removes the file or symlink at p. A directory fails with
// ErrIsADirectory.
func (fs *FileSystem) Unlink(ctx context.Context, p string) (err error) {
	defer fs.observe("Unlink", time.Now(), &err)
	return fs.remove(ctx, p, removeNonDirectory)
}

// Rmdir removes the directory at p. An entry of any other kind is reported
// as ErrNotFound. Emptiness is not checked: a non-empty directory is
// removed with its whole subtree. See RmdirEmpty.
func (fs *FileSystem) Rmdir(ctx context.Context, p string) (err error) {
	defer fs.observe("Rmdir", time.Now(), &err)
	return fs.remove(ctx, p, removeDirectory)
}

// RmdirEmpty is Rmdir that fails with ErrNotEmpty if the directory still
// has children. The check and the removal happen under one lock.
func (fs *FileSystem) RmdirEmpty(ctx context.Context, p string) (err error) {
	defer fs.observe("Rmdir", time.Now(), &err)
	return fs.remove(ctx, p, removeEmptyDirectory)
}

func (fs *FileSystem) remove(ctx context.Context, p string, filter removeFilter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := cleanPath(p)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, err = fs.removeEntryLocked(p, filter)
	return err
}

// removeEntryLocked detaches the entry at p from its parent and the path
// index, decrements its link count and updates its status-change time.
//
// Returns error if:
//   - The final name is empty (ErrInvalidName)
//   - The parent is missing (ErrNotFound) or not a directory, a symlinked
//     parent included (ErrNotADirectory)
//   - The entry is missing (ErrNotFound) or rejected by filter
//     (ErrIsADirectory, ErrNotFound, ErrNotEmpty)
//   - The tree and index disagree on the entry (ErrInternalConsistency)
func (fs *FileSystem) removeEntryLocked(p string, filter removeFilter) (*inode, error) {
	parent, parentPath, name, err := fs.parentLocked(p, false)
	if err != nil {
		return nil, err
	}

	id, ok := parent.children[name]
	if !ok {
		if _, indexed := fs.index[joinPath(parentPath, name)]; indexed {
			return nil, fs.consistencyError("indexed entry missing from tree", p)
		}
		return nil, newError(ErrNotFound, "no such file or directory", p)
	}
	target, ok := fs.node(id)
	if !ok {
		return nil, fs.consistencyError("tree references missing inode", p)
	}
	switch filter {
	case removeNonDirectory:
		if target.kind == KindDirectory {
			return nil, newError(ErrIsADirectory, "is a directory", p)
		}
	case removeDirectory, removeEmptyDirectory:
		if target.kind != KindDirectory {
			return nil, newError(ErrNotFound, "no such directory", p)
		}
		if filter == removeEmptyDirectory && len(target.children) > 0 {
			return nil, newError(ErrNotEmpty, "directory not empty", p)
		}
	}

	n, err := fs.detachLocked(parent, parentPath, name)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if n.nlink > 0 {
		n.nlink--
	}
	n.ctime = now
	parent.mtime = now
	parent.ctime = now

	if err := fs.verifyEntryLocked(parent, parentPath, name); err != nil {
		return nil, err
	}
	if err := fs.afterMutationLocked(); err != nil {
		return nil, err
	}

	logger.Debug("memfs: removed %s %s (id=%d nlink=%d)", n.kind, joinPath(parentPath, name), n.id, n.nlink)
	return n, nil
}

// ChildCount returns the number of entries in the directory at p, not
// counting "." and "..". A symlink to a directory is followed.
func (fs *FileSystem) ChildCount(ctx context.Context, p string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p, err := cleanPath(p)
	if err != nil {
		return 0, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	n, _, err := fs.followLocked(p)
	if err != nil {
		return 0, err
	}
	switch n.kind {
	case KindDirectory:
		return len(n.children), nil
	case KindFile, KindSymlink:
	}
	return 0, newError(ErrNotADirectory, "not a directory", p)
}
