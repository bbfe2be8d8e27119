package memfs

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/memfs/internal/logger"
	"github.com/marmos91/memfs/pkg/blocks"
)

// ============================================================================
// File Content
// ============================================================================

// Read copies up to len(buf) bytes of the file at p, starting at off, into
// buf and returns the number of bytes read. Reading at or past the end of
// the file returns 0 with no error. A final symlink is followed.
//
// Returns error if:
//   - off is negative or beyond the maximum file size (ErrInvalidArgument)
//   - p is missing (ErrNotFound) or a dangling or looping link
//   - p is a directory (ErrIsADirectory)
func (fs *FileSystem) Read(ctx context.Context, p string, buf []byte, off int64) (n int, err error) {
	defer fs.observe("Read", time.Now(), &err)

	if err = ctx.Err(); err != nil {
		return 0, err
	}
	if p, err = cleanPath(p); err != nil {
		return 0, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	f, err := fs.fileLocked(p)
	if err != nil {
		return 0, err
	}

	n, err = f.data.ReadAt(buf, off)
	if err != nil {
		return 0, blocksError(err, p)
	}

	f.touchAccess(time.Now())
	fs.metrics.RecordBytes("read", n)
	return n, nil
}

// Write copies data into the file at p starting at off and returns the
// number of bytes written. The file grows as needed; skipped ranges become
// holes. A final symlink is followed.
//
// Returns error if:
//   - off or off+len(data) is out of range (ErrInvalidArgument)
//   - p is missing (ErrNotFound) or a dangling or looping link
//   - p is a directory (ErrIsADirectory)
func (fs *FileSystem) Write(ctx context.Context, p string, data []byte, off int64) (n int, err error) {
	defer fs.observe("Write", time.Now(), &err)

	if err = ctx.Err(); err != nil {
		return 0, err
	}
	if p, err = cleanPath(p); err != nil {
		return 0, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	f, err := fs.fileLocked(p)
	if err != nil {
		return 0, err
	}

	n, err = f.data.WriteAt(data, off)
	if err != nil {
		return 0, blocksError(err, p)
	}

	f.touchModify(time.Now())
	fs.metrics.RecordBytes("write", n)
	return n, nil
}

// Truncate sets the length of the file at p to size. Growing only adds
// holes; shrinking drops blocks past the new end and zeroes the tail of the
// last retained block. Only the modification time changes.
func (fs *FileSystem) Truncate(ctx context.Context, p string, size int64) (err error) {
	defer fs.observe("Truncate", time.Now(), &err)

	if err = ctx.Err(); err != nil {
		return err
	}
	if p, err = cleanPath(p); err != nil {
		return err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	f, err := fs.fileLocked(p)
	if err != nil {
		return err
	}

	if err := f.data.Truncate(size); err != nil {
		return blocksError(err, p)
	}

	f.touchModify(time.Now())
	return nil
}

// fileLocked resolves p, following a final symlink, and returns it if it is
// a regular file. Callers hold mu.
func (fs *FileSystem) fileLocked(p string) (*inode, error) {
	n, _, err := fs.followLocked(p)
	if err != nil {
		return nil, err
	}

	switch n.kind {
	case KindFile:
		return n, nil
	case KindDirectory:
		return nil, newError(ErrIsADirectory, "is a directory", p)
	case KindSymlink:
	}
	return nil, newError(ErrInvalidArgument, "not a regular file", p)
}

func blocksError(err error, p string) error {
	if errors.Is(err, blocks.ErrInvalidOffset) {
		return newError(ErrInvalidArgument, "offset out of range", p)
	}
	return err
}

// ============================================================================
// Open
// ============================================================================

// OpenFlags carries the open(2) flags the engine interprets.
type OpenFlags struct {
	Create    bool // O_CREAT
	Exclusive bool // O_EXCL
	Truncate  bool // O_TRUNC
	NoFollow  bool // O_NOFOLLOW

	// SymlinkOnly asks to open the link itself rather than its target
	// (O_SYMLINK on BSD-derived systems). It is not supported.
	SymlinkOnly bool

	// SharedLock and ExclusiveLock request advisory locks at open time
	// (O_SHLOCK, O_EXLOCK). They are not supported.
	SharedLock    bool
	ExclusiveLock bool
}

// Open validates an open request for p and returns the attributes of the
// file it resolves to.
//
// For an existing entry:
//   - A directory fails with ErrIsADirectory
//   - Create together with Exclusive fails with ErrAlreadyExists
//   - A symlink with NoFollow fails with ErrSymlinkLoop
//   - A symlink with SymlinkOnly fails with ErrNotFound
//   - Lock flags fail with ErrOperationNotSupported
//   - Truncate resets the file to zero length
//
// A missing entry is created with the default mode when Create is set and
// fails with ErrNotFound otherwise.
func (fs *FileSystem) Open(ctx context.Context, p string, flags OpenFlags) (attr Attr, err error) {
	defer fs.observe("Open", time.Now(), &err)

	if err = ctx.Err(); err != nil {
		return Attr{}, err
	}
	if p, err = cleanPath(p); err != nil {
		return Attr{}, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.lookupLocked(p)
	if IsNotFound(err) {
		if !flags.Create {
			return Attr{}, err
		}
		created, err := fs.createEntryLocked(p, KindFile, nil, "")
		if err != nil {
			return Attr{}, err
		}
		return created.attr(fs.opts.BlockSize), nil
	}
	if err != nil {
		return Attr{}, err
	}

	switch n.kind {
	case KindDirectory:
		return Attr{}, newError(ErrIsADirectory, "is a directory", p)
	case KindSymlink, KindFile:
	}

	switch {
	case flags.Create && flags.Exclusive:
		return Attr{}, newError(ErrAlreadyExists, "file exists", p)
	case flags.NoFollow && n.kind == KindSymlink:
		return Attr{}, newError(ErrSymlinkLoop, "refusing to follow symbolic link", p)
	case flags.SymlinkOnly && n.kind == KindSymlink:
		return Attr{}, newError(ErrNotFound, "opening a symbolic link itself is not supported", p)
	case flags.SharedLock || flags.ExclusiveLock:
		return Attr{}, newError(ErrOperationNotSupported, "lock flags are not supported", p)
	}

	f, err := fs.fileLocked(p)
	if err != nil {
		return Attr{}, err
	}

	if flags.Truncate {
		f.data.Reset()
		f.mtime = time.Now()
		logger.Debug("memfs: open truncated %s (id=%d)", p, f.id)
	}

	return f.attr(fs.opts.BlockSize), nil
}
