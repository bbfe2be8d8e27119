package memfs

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/memfs/internal/logger"
)

// ============================================================================
// Rename
// ============================================================================

// Rename moves the entry at src to dst, keeping its identity.
//
// Replacement Semantics:
// When dst already exists it is replaced atomically, with the same cleanup
// as a removal (index entries dropped, link count decremented):
//   - Non-directory over non-directory: allowed
//   - Directory over empty directory: allowed
//   - Directory over non-empty directory: ErrNotEmpty
//   - Directory over non-directory: ErrNotADirectory
//   - Non-directory over directory: ErrIsADirectory
//
// Special Cases:
//   - src and dst name the same entry: success, nothing changes
//   - Moving a directory below itself: ErrInvalidArgument
//
// The index keys of a moved directory's whole subtree are rewritten.
func (fs *FileSystem) Rename(ctx context.Context, src, dst string) (err error) {
	defer fs.observe("Rename", time.Now(), &err)

	if err = ctx.Err(); err != nil {
		return err
	}
	if src, err = cleanPath(src); err != nil {
		return err
	}
	if dst, err = cleanPath(dst); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.renameEntryLocked(src, dst)
}

func (fs *FileSystem) renameEntryLocked(src, dst string) error {
	// ========================================================================
	// Step 1: Resolve both parents
	// ========================================================================

	srcParent, srcParentPath, srcName, err := fs.parentLocked(src, false)
	if err != nil {
		return err
	}
	dstParent, dstParentPath, dstName, err := fs.parentLocked(dst, false)
	if err != nil {
		return err
	}

	srcPath := joinPath(srcParentPath, srcName)
	dstPath := joinPath(dstParentPath, dstName)

	// ========================================================================
	// Step 2: Resolve the source entry
	// ========================================================================

	srcID, ok := srcParent.children[srcName]
	if !ok {
		return newError(ErrNotFound, "no such file or directory", src)
	}
	if indexed, ok := fs.index[srcPath]; !ok || indexed != srcID {
		return fs.consistencyError(fmt.Sprintf("tree entry %d not indexed", srcID), srcPath)
	}
	n, ok := fs.node(srcID)
	if !ok {
		return fs.consistencyError(fmt.Sprintf("tree references missing inode %d", srcID), srcPath)
	}

	if srcPath == dstPath {
		return nil
	}
	if n.kind == KindDirectory && isWithin(dstPath, srcPath) {
		return newError(ErrInvalidArgument, "cannot move a directory below itself", dst)
	}

	now := time.Now()

	// ========================================================================
	// Step 3: Replace an existing destination
	// ========================================================================

	if dstID, exists := dstParent.children[dstName]; exists {
		if dstID == srcID {
			return nil
		}
		old, ok := fs.node(dstID)
		if !ok {
			return fs.consistencyError(fmt.Sprintf("tree references missing inode %d", dstID), dstPath)
		}

		switch {
		case n.kind == KindDirectory && old.kind != KindDirectory:
			return newError(ErrNotADirectory, "cannot replace a non-directory with a directory", dst)
		case n.kind != KindDirectory && old.kind == KindDirectory:
			return newError(ErrIsADirectory, "cannot replace a directory with a non-directory", dst)
		case old.kind == KindDirectory && len(old.children) > 0:
			return newError(ErrNotEmpty, "directory not empty", dst)
		}

		if _, err := fs.detachLocked(dstParent, dstParentPath, dstName); err != nil {
			return err
		}
		if old.nlink > 0 {
			old.nlink--
		}
		old.ctime = now

		logger.Debug("memfs: rename replaced %s (id=%d)", dstPath, dstID)
	}

	// ========================================================================
	// Step 4: Move the entry and rewrite its index keys
	// ========================================================================

	delete(srcParent.children, srcName)
	delete(fs.index, srcPath)
	dstParent.children[dstName] = srcID
	fs.index[dstPath] = srcID
	if n.kind == KindDirectory {
		fs.reindexLocked(srcPath, dstPath, n)
	}

	n.ctime = now
	srcParent.mtime = now
	srcParent.ctime = now
	dstParent.mtime = now
	dstParent.ctime = now

	if err := fs.verifyEntryLocked(srcParent, srcParentPath, srcName); err != nil {
		return err
	}
	if err := fs.verifyEntryLocked(dstParent, dstParentPath, dstName); err != nil {
		return err
	}
	if err := fs.afterMutationLocked(); err != nil {
		return err
	}

	logger.Debug("memfs: renamed %s -> %s (id=%d)", srcPath, dstPath, srcID)
	return nil
}
