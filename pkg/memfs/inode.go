package memfs

import (
	"sync"
	"time"

	"github.com/marmos91/memfs/pkg/blocks"
	"github.com/marmos91/memfs/pkg/xattr"
)

// InodeID identifies an inode for the lifetime of the process. IDs are
// allocated from one monotonic counter and never reused.
type InodeID uint64

// RootID is the identifier of the root directory.
const RootID InodeID = 1

// Kind is the variant tag of an inode.
type Kind int

const (
	KindDirectory Kind = iota
	KindFile
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Mode type bits, using the traditional Unix st_mode encoding.
const (
	ModeTypeMask uint32 = 0o170000
	ModeDir      uint32 = 0o040000
	ModeRegular  uint32 = 0o100000
	ModeSymlink  uint32 = 0o120000

	// ModePerm covers the permission, setuid, setgid and sticky bits.
	ModePerm uint32 = 0o7777
)

// typeBits returns the st_mode type bits for a kind.
func (k Kind) typeBits() uint32 {
	switch k {
	case KindDirectory:
		return ModeDir
	case KindFile:
		return ModeRegular
	case KindSymlink:
		return ModeSymlink
	default:
		return 0
	}
}

// inode is the in-memory record of one filesystem entry.
//
// Exactly one of the variant payloads is meaningful, selected by kind:
// children for directories, data for files, target for symlinks.
//
// Locking: the header fields are written under the filesystem write lock, or
// under mu while only the filesystem read lock is held (timestamp updates
// during data I/O). Readers that hold only the read lock take mu.
type inode struct {
	id   InodeID
	kind Kind

	mu     sync.Mutex
	uid    uint32
	gid    uint32
	mode   uint32
	nlink  uint32
	flags  uint32
	atime  time.Time
	mtime  time.Time
	ctime  time.Time
	crtime time.Time
	btime  time.Time

	xattrs *xattr.Store

	children map[string]InodeID
	data     *blocks.File
	target   string
}

// Attr is a point-in-time snapshot of an inode's attributes.
type Attr struct {
	ID    InodeID
	Kind  Kind
	Mode  uint32
	UID   uint32
	GID   uint32
	Nlink uint32
	Flags uint32

	// Size is the logical length for files and zero for other kinds.
	Size int64

	// Blocks is the number of materialized block slots; BlockSize their size.
	Blocks    int64
	BlockSize int

	Atime  time.Time
	Mtime  time.Time
	Ctime  time.Time
	Crtime time.Time
	Btime  time.Time
}

// IsDir reports whether the attributes describe a directory.
func (a *Attr) IsDir() bool {
	return a.Kind == KindDirectory
}

// Perm returns the permission bits of the mode.
func (a *Attr) Perm() uint32 {
	return a.Mode & ModePerm
}

// attr snapshots the inode. Callers hold the filesystem lock (read or write).
func (n *inode) attr(blockSize int) Attr {
	n.mu.Lock()
	a := Attr{
		ID:        n.id,
		Kind:      n.kind,
		Mode:      n.mode,
		UID:       n.uid,
		GID:       n.gid,
		Nlink:     n.nlink,
		Flags:     n.flags,
		BlockSize: blockSize,
		Atime:     n.atime,
		Mtime:     n.mtime,
		Ctime:     n.ctime,
		Crtime:    n.crtime,
		Btime:     n.btime,
	}
	n.mu.Unlock()

	switch n.kind {
	case KindFile:
		a.Size = n.data.Size()
		a.Blocks = int64(n.data.AllocatedBlocks())
	case KindDirectory, KindSymlink:
	}
	return a
}

func (n *inode) touchAccess(now time.Time) {
	n.mu.Lock()
	n.atime = now
	n.mu.Unlock()
}

func (n *inode) touchModify(now time.Time) {
	n.mu.Lock()
	n.mtime = now
	n.mu.Unlock()
}

// xattrStore returns the inode's attribute store, creating it on first use.
// Callers hold the filesystem write lock.
func (n *inode) xattrStore() *xattr.Store {
	if n.xattrs == nil {
		n.xattrs = &xattr.Store{}
	}
	return n.xattrs
}
