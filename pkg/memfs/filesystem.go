// Package memfs implements an in-memory hierarchical filesystem: a tree of
// directories, regular files and symbolic links with sparse block storage
// and per-entry extended attributes.
//
// Storage Model:
//   - Every live inode is owned by one arena keyed by InodeID
//   - Directories store the IDs of their children, keyed by name
//   - A flat path index maps absolute paths to IDs and is derived from the tree
//   - File content lives in a blocks.File, attributes in an xattr.Store
//
// Thread Safety:
// A single sync.RWMutex guards the tree, the path index and the inode
// headers. Operations that change the shape of the tree or an inode's
// attributes take it exclusively; lookups and data I/O share it. File
// content is additionally guarded by the per-file lock in pkg/blocks, so
// reads and writes of one file never observe a half-applied truncate.
//
// Lock order: FileSystem.mu, then inode.mu, then the blocks.File lock.
package memfs

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/marmos91/memfs/internal/logger"
	"github.com/marmos91/memfs/pkg/blocks"
	"github.com/marmos91/memfs/pkg/metrics"
)

// Options configures a FileSystem.
type Options struct {
	// BlockSize is the size of one block slot in bytes.
	// Default: blocks.DefaultBlockSize (64 KiB)
	BlockSize int

	// MaxFileSize bounds the logical length of a file and the offsets
	// accepted by Read, Write and Truncate.
	// Default: blocks.DefaultMaxSize (2^31-1)
	MaxFileSize int64

	// CapacityBytes is the capacity reported by StatFS.
	// Default: 1 GiB
	CapacityBytes uint64

	// MaxInodes is the inode capacity reported by StatFS.
	// Default: math.MaxInt32
	MaxInodes uint64

	// UID and GID stamp the root directory. They are normally the identity
	// of the mounting process.
	UID uint32
	GID uint32

	// VerifyConsistency runs a full tree/index check after every mutating
	// operation. Intended for tests and debugging.
	VerifyConsistency bool

	// Metrics receives per-operation measurements. nil disables collection.
	Metrics metrics.FilesystemMetrics
}

// DefaultCapacityBytes is the capacity StatFS reports when none is configured.
const DefaultCapacityBytes uint64 = 1 << 30

func (o *Options) applyDefaults() {
	if o.BlockSize <= 0 {
		o.BlockSize = blocks.DefaultBlockSize
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = blocks.DefaultMaxSize
	}
	if o.CapacityBytes == 0 {
		o.CapacityBytes = DefaultCapacityBytes
	}
	if o.MaxInodes == 0 {
		o.MaxInodes = math.MaxInt32
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewNoopFilesystemMetrics()
	}
}

// FileSystem is the operation engine. All exported methods are safe for
// concurrent use.
type FileSystem struct {
	mu sync.RWMutex

	// nodes is the arena of live inodes.
	nodes *xsync.MapOf[InodeID, *inode]

	// index maps cleaned absolute paths to inode IDs.
	index map[string]InodeID

	lastID atomic.Uint64

	opts    Options
	fsid    uuid.UUID
	metrics metrics.FilesystemMetrics
}

// New creates a filesystem holding only the root directory.
//
// The root is stamped with opts.UID/opts.GID, permission 0777 and a link
// count of 2, and is registered under "/".
func New(opts Options) *FileSystem {
	opts.applyDefaults()

	fs := &FileSystem{
		nodes:   xsync.NewMapOf[InodeID, *inode](),
		index:   make(map[string]InodeID),
		opts:    opts,
		fsid:    uuid.New(),
		metrics: opts.Metrics,
	}

	now := time.Now()
	root := &inode{
		id:       fs.allocID(),
		kind:     KindDirectory,
		uid:      opts.UID,
		gid:      opts.GID,
		mode:     ModeDir | 0o777,
		nlink:    2,
		atime:    now,
		mtime:    now,
		ctime:    now,
		crtime:   now,
		btime:    time.Unix(0, 0),
		children: make(map[string]InodeID),
	}
	fs.nodes.Store(root.id, root)
	fs.index["/"] = root.id
	fs.metrics.SetInodes(1)

	logger.Debug("memfs: created filesystem %s (block size %d, root uid=%d gid=%d)",
		fs.fsid, opts.BlockSize, opts.UID, opts.GID)

	return fs
}

// ID returns the identifier of this filesystem instance.
func (fs *FileSystem) ID() uuid.UUID {
	return fs.fsid
}

// BlockSize returns the configured block size.
func (fs *FileSystem) BlockSize() int {
	return fs.opts.BlockSize
}

// InodeCount returns the number of live inodes, the root included.
func (fs *FileSystem) InodeCount() int {
	return fs.nodes.Size()
}

// allocID returns the next identifier. Safe without holding mu.
func (fs *FileSystem) allocID() InodeID {
	return InodeID(fs.lastID.Add(1))
}

// observe records an operation's outcome. It is deferred with a pointer to
// the named error result so it sees the final value.
func (fs *FileSystem) observe(op string, start time.Time, err *error) {
	fs.metrics.RecordOperation(op, time.Since(start), *err)
}

// node returns the inode with the given id from the arena.
func (fs *FileSystem) node(id InodeID) (*inode, bool) {
	return fs.nodes.Load(id)
}

// lookupLocked resolves a cleaned path through the index without following
// a final symlink. Callers hold mu.
func (fs *FileSystem) lookupLocked(p string) (*inode, error) {
	id, ok := fs.index[p]
	if !ok {
		return nil, newError(ErrNotFound, "no such file or directory", p)
	}
	n, ok := fs.node(id)
	if !ok {
		return nil, fs.consistencyError(fmt.Sprintf("path index references missing inode %d", id), p)
	}
	return n, nil
}

// parentLocked resolves the directory that contains p and returns it with
// the final path component. A symlinked parent is followed only when
// followSymlink is set; otherwise it fails with ErrNotADirectory. Callers
// hold mu.
func (fs *FileSystem) parentLocked(p string, followSymlink bool) (dir *inode, dirPath, name string, err error) {
	dirPath, name = splitPath(p)
	if name == "" {
		return nil, "", "", newError(ErrInvalidName, "empty name", p)
	}

	dir, err = fs.lookupLocked(dirPath)
	if err != nil {
		return nil, "", "", err
	}

	switch dir.kind {
	case KindDirectory:
	case KindSymlink:
		if !followSymlink {
			return nil, "", "", newError(ErrNotADirectory, "parent is not a directory", dirPath)
		}
		var target string
		dir, target, err = fs.resolveSymlinkLocked(dirPath, dir)
		if err != nil {
			return nil, "", "", err
		}
		if dir.kind != KindDirectory {
			return nil, "", "", newError(ErrNotADirectory, "parent is not a directory", dirPath)
		}
		dirPath = target
	case KindFile:
		return nil, "", "", newError(ErrNotADirectory, "parent is not a directory", dirPath)
	}

	return dir, dirPath, name, nil
}

// consistencyError logs and returns an ErrInternalConsistency error.
func (fs *FileSystem) consistencyError(message, p string) error {
	logger.Error("memfs: internal consistency violation: %s: %s", message, p)
	return newError(ErrInternalConsistency, message, p)
}

// insertLocked links child under parent and registers it in the index and
// arena. Callers hold mu exclusively.
func (fs *FileSystem) insertLocked(parent *inode, parentPath, name string, child *inode) {
	parent.children[name] = child.id
	fs.index[joinPath(parentPath, name)] = child.id
	fs.nodes.Store(child.id, child)
}

// detachLocked removes the entry name from parent and from the index and
// returns the detached inode. The tree and index must agree on its identity.
// Descendants of a detached directory are dropped from the index and arena.
// Callers hold mu exclusively.
func (fs *FileSystem) detachLocked(parent *inode, parentPath, name string) (*inode, error) {
	p := joinPath(parentPath, name)

	treeID, inTree := parent.children[name]
	indexID, inIndex := fs.index[p]
	switch {
	case !inTree && !inIndex:
		return nil, newError(ErrNotFound, "no such file or directory", p)
	case inTree != inIndex || treeID != indexID:
		return nil, fs.consistencyError(
			fmt.Sprintf("tree entry %d and index entry %d disagree", treeID, indexID), p)
	}

	n, ok := fs.node(treeID)
	if !ok {
		return nil, fs.consistencyError(fmt.Sprintf("tree references missing inode %d", treeID), p)
	}

	delete(parent.children, name)
	delete(fs.index, p)
	if n.kind == KindDirectory {
		fs.dropDescendantsLocked(p, n)
	}
	fs.nodes.Delete(n.id)

	return n, nil
}

// dropDescendantsLocked removes everything below dir from the index and arena.
func (fs *FileSystem) dropDescendantsLocked(dirPath string, dir *inode) {
	for name, id := range dir.children {
		p := joinPath(dirPath, name)
		delete(fs.index, p)
		if child, ok := fs.node(id); ok {
			if child.kind == KindDirectory {
				fs.dropDescendantsLocked(p, child)
			}
			fs.nodes.Delete(id)
		}
	}
}

// reindexLocked moves the index entries of dir's subtree from oldPath to
// newPath. The entry for the subtree root itself is handled by the caller.
func (fs *FileSystem) reindexLocked(oldPath, newPath string, dir *inode) {
	for name, id := range dir.children {
		oldChild := joinPath(oldPath, name)
		newChild := joinPath(newPath, name)
		delete(fs.index, oldChild)
		fs.index[newChild] = id
		if child, ok := fs.node(id); ok && child.kind == KindDirectory {
			fs.reindexLocked(oldChild, newChild, child)
		}
	}
}

// verifyEntryLocked checks that the tree and index agree on the entry
// name under parent, in both directions. Called at the end of every
// mutation for the entries it touched.
func (fs *FileSystem) verifyEntryLocked(parent *inode, parentPath, name string) error {
	p := joinPath(parentPath, name)
	treeID, inTree := parent.children[name]
	indexID, inIndex := fs.index[p]
	if inTree != inIndex || treeID != indexID {
		return fs.consistencyError(
			fmt.Sprintf("tree entry %d and index entry %d disagree", treeID, indexID), p)
	}
	if inTree {
		if _, ok := fs.node(treeID); !ok {
			return fs.consistencyError(fmt.Sprintf("entry references missing inode %d", treeID), p)
		}
	}
	return nil
}

// afterMutationLocked runs the configured post-mutation checks and refreshes
// the inode gauge.
func (fs *FileSystem) afterMutationLocked() error {
	fs.metrics.SetInodes(int64(fs.nodes.Size()))
	if fs.opts.VerifyConsistency {
		return fs.checkConsistencyLocked()
	}
	return nil
}

// CheckConsistency walks the whole tree and index and returns an
// ErrInternalConsistency error describing the first divergence found.
func (fs *FileSystem) CheckConsistency(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return fs.checkConsistencyLocked()
}

func (fs *FileSystem) checkConsistencyLocked() error {
	if id, ok := fs.index["/"]; !ok || id != RootID {
		return fs.consistencyError("root is not indexed", "/")
	}
	root, ok := fs.node(RootID)
	if !ok {
		return fs.consistencyError("root inode missing from arena", "/")
	}

	// Every tree-reachable inode must be indexed under its path.
	reachable := 1
	var walk func(dirPath string, dir *inode) error
	walk = func(dirPath string, dir *inode) error {
		for name, id := range dir.children {
			p := joinPath(dirPath, name)
			if indexed, ok := fs.index[p]; !ok || indexed != id {
				return fs.consistencyError(fmt.Sprintf("tree entry %d not indexed", id), p)
			}
			child, ok := fs.node(id)
			if !ok {
				return fs.consistencyError(fmt.Sprintf("tree references missing inode %d", id), p)
			}
			reachable++
			if child.kind == KindDirectory {
				if err := walk(p, child); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk("/", root); err != nil {
		return err
	}

	// Every index entry must be reachable from the root by name.
	if len(fs.index) != reachable {
		for p, id := range fs.index {
			if !fs.reachableLocked(p, id) {
				return fs.consistencyError(fmt.Sprintf("index entry %d unreachable from root", id), p)
			}
		}
		return fs.consistencyError(
			fmt.Sprintf("index holds %d entries, tree reaches %d", len(fs.index), reachable), "/")
	}
	if arena := fs.nodes.Size(); arena != reachable {
		return fs.consistencyError(
			fmt.Sprintf("arena holds %d inodes, tree reaches %d", arena, reachable), "/")
	}

	return nil
}

// reachableLocked walks the tree from the root by name and reports whether
// it arrives at id.
func (fs *FileSystem) reachableLocked(p string, id InodeID) bool {
	cur, ok := fs.node(RootID)
	if !ok {
		return false
	}
	if p == "/" {
		return id == RootID
	}

	rest := p[1:]
	for rest != "" {
		var name string
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			name, rest = rest[:i], rest[i+1:]
		} else {
			name, rest = rest, ""
		}
		if cur.kind != KindDirectory {
			return false
		}
		childID, ok := cur.children[name]
		if !ok {
			return false
		}
		if cur, ok = fs.node(childID); !ok {
			return false
		}
	}
	return cur.id == id
}
