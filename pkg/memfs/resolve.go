package memfs

import (
	"context"
	"path"
	"time"
)

// MaxSymlinkHops bounds the number of links followed while resolving one
// path, matching the usual MAXSYMLINKS.
const MaxSymlinkHops = 40

// resolveSymlinkLocked follows link until it reaches an inode that is not a
// symlink and returns that inode together with its path. Relative targets
// are taken relative to the directory holding the link. Revisiting an inode
// or exceeding MaxSymlinkHops fails with ErrSymlinkLoop; a missing target
// fails with ErrNotFound. Callers hold mu.
func (fs *FileSystem) resolveSymlinkLocked(linkPath string, link *inode) (*inode, string, error) {
	visited := map[InodeID]struct{}{link.id: {}}
	cur, curPath := link, linkPath

	for hops := 0; cur.kind == KindSymlink; hops++ {
		if hops >= MaxSymlinkHops {
			return nil, "", newError(ErrSymlinkLoop, "too many levels of symbolic links", linkPath)
		}

		target := cur.target
		if !path.IsAbs(target) {
			dir, _ := splitPath(curPath)
			target = joinPath(dir, target)
		}
		target = path.Clean(target)

		next, err := fs.lookupLocked(target)
		if err != nil {
			return nil, "", err
		}
		if _, seen := visited[next.id]; seen {
			return nil, "", newError(ErrSymlinkLoop, "too many levels of symbolic links", linkPath)
		}
		visited[next.id] = struct{}{}

		cur, curPath = next, target
	}

	return cur, curPath, nil
}

// followLocked resolves p and, if it names a symlink, follows it.
func (fs *FileSystem) followLocked(p string) (*inode, string, error) {
	n, err := fs.lookupLocked(p)
	if err != nil {
		return nil, "", err
	}
	switch n.kind {
	case KindSymlink:
		return fs.resolveSymlinkLocked(p, n)
	case KindDirectory, KindFile:
	}
	return n, p, nil
}

// Lookup returns the attributes of the entry at p without following a final
// symlink.
func (fs *FileSystem) Lookup(ctx context.Context, p string) (Attr, error) {
	return fs.GetAttr(ctx, p)
}

// ResolveSymlink returns the attributes of the first non-symlink entry
// reached by following the link at p. If p is not a symlink its own
// attributes are returned.
func (fs *FileSystem) ResolveSymlink(ctx context.Context, p string) (attr Attr, err error) {
	defer fs.observe("ResolveSymlink", time.Now(), &err)

	if err = ctx.Err(); err != nil {
		return Attr{}, err
	}
	if p, err = cleanPath(p); err != nil {
		return Attr{}, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	n, _, err := fs.followLocked(p)
	if err != nil {
		return Attr{}, err
	}
	return n.attr(fs.opts.BlockSize), nil
}
