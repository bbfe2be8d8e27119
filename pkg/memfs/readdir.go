package memfs

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
)

// DirEntry is one entry returned by Readdir.
type DirEntry struct {
	Name string
	ID   InodeID
	Kind Kind
}

// Readdir lists the directory at p: "." and ".." first, then the children
// in name order. A symlink to a directory is followed.
func (fs *FileSystem) Readdir(ctx context.Context, p string) (entries []DirEntry, err error) {
	defer fs.observe("Readdir", time.Now(), &err)

	if err = ctx.Err(); err != nil {
		return nil, err
	}
	if p, err = cleanPath(p); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	dir, dirPath, err := fs.followLocked(p)
	if err != nil {
		return nil, err
	}
	switch dir.kind {
	case KindDirectory:
	case KindFile, KindSymlink:
		return nil, newError(ErrNotADirectory, "not a directory", p)
	}

	parentID := dir.id
	if dirPath != "/" {
		parentPath, _ := splitPath(dirPath)
		if id, ok := fs.index[parentPath]; ok {
			parentID = id
		}
	}

	names := make([]string, 0, len(dir.children))
	for name := range dir.children {
		names = append(names, name)
	}
	slices.Sort(names)

	entries = make([]DirEntry, 0, len(names)+2)
	entries = append(entries,
		DirEntry{Name: ".", ID: dir.id, Kind: KindDirectory},
		DirEntry{Name: "..", ID: parentID, Kind: KindDirectory},
	)
	for _, name := range names {
		id := dir.children[name]
		child, ok := fs.node(id)
		if !ok {
			return nil, fs.consistencyError("tree references missing inode", joinPath(dirPath, name))
		}
		entries = append(entries, DirEntry{Name: name, ID: id, Kind: child.kind})
	}

	dir.touchAccess(time.Now())
	return entries, nil
}

// StatFS describes filesystem capacity and usage.
type StatFS struct {
	BlockSize   uint32
	Blocks      uint64
	BlocksFree  uint64
	Files       uint64
	FilesFree   uint64
	NameMax     uint32
	FSID        uuid.UUID
	LiveInodes  uint64
	UsedBlocks  uint64
	LastInodeID InodeID
}

// NameMax is the longest name reported by StatFS.
const NameMax = 255

// StatFS reports capacity and usage. p must name an existing entry.
func (fs *FileSystem) StatFS(ctx context.Context, p string) (st StatFS, err error) {
	defer fs.observe("StatFS", time.Now(), &err)

	if err = ctx.Err(); err != nil {
		return StatFS{}, err
	}
	if p, err = cleanPath(p); err != nil {
		return StatFS{}, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if _, err := fs.lookupLocked(p); err != nil {
		return StatFS{}, err
	}

	var used uint64
	fs.nodes.Range(func(_ InodeID, n *inode) bool {
		switch n.kind {
		case KindFile:
			used += uint64(n.data.AllocatedBlocks())
		case KindDirectory, KindSymlink:
		}
		return true
	})

	bs := uint64(fs.opts.BlockSize)
	total := fs.opts.CapacityBytes / bs
	free := uint64(0)
	if total > used {
		free = total - used
	}

	lastID := InodeID(fs.lastID.Load())
	filesFree := uint64(0)
	if fs.opts.MaxInodes > uint64(lastID) {
		filesFree = fs.opts.MaxInodes - uint64(lastID)
	}

	return StatFS{
		BlockSize:   uint32(bs),
		Blocks:      total,
		BlocksFree:  free,
		Files:       fs.opts.MaxInodes,
		FilesFree:   filesFree,
		NameMax:     NameMax,
		FSID:        fs.fsid,
		LiveInodes:  uint64(fs.nodes.Size()),
		UsedBlocks:  used,
		LastInodeID: lastID,
	}, nil
}
