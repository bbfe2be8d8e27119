package fuse

import (
	"context"
	"syscall"

	gofs "github.com/hanwen/go-fuse/v2/fs"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"
	"github.com/marmos91/memfs/pkg/dispatch"
)

// node is one entry of the mounted tree. It carries no state of its own:
// every call rebuilds the absolute path from the go-fuse inode tree and
// forwards it to the dispatcher.
type node struct {
	gofs.Inode

	d *dispatch.Dispatcher
}

var (
	_ gofs.NodeGetattrer     = (*node)(nil)
	_ gofs.NodeSetattrer     = (*node)(nil)
	_ gofs.NodeLookuper      = (*node)(nil)
	_ gofs.NodeReaddirer     = (*node)(nil)
	_ gofs.NodeMkdirer       = (*node)(nil)
	_ gofs.NodeCreater       = (*node)(nil)
	_ gofs.NodeOpener        = (*node)(nil)
	_ gofs.NodeReader        = (*node)(nil)
	_ gofs.NodeWriter        = (*node)(nil)
	_ gofs.NodeUnlinker      = (*node)(nil)
	_ gofs.NodeRmdirer       = (*node)(nil)
	_ gofs.NodeRenamer       = (*node)(nil)
	_ gofs.NodeSymlinker     = (*node)(nil)
	_ gofs.NodeReadlinker    = (*node)(nil)
	_ gofs.NodeGetxattrer    = (*node)(nil)
	_ gofs.NodeSetxattrer    = (*node)(nil)
	_ gofs.NodeListxattrer   = (*node)(nil)
	_ gofs.NodeRemovexattrer = (*node)(nil)
	_ gofs.NodeStatfser      = (*node)(nil)
)

func (n *node) path() string {
	return "/" + n.Path(nil)
}

// entry looks up p, fills out and returns the kernel inode for it.
func (n *node) entry(ctx context.Context, p string, out *gofuse.EntryOut) (*gofs.Inode, syscall.Errno) {
	if errno := toErrno(n.d.Getattr(ctx, []byte(p), &out.Attr)); errno != 0 {
		return nil, errno
	}

	child := &node{d: n.d}
	stable := gofs.StableAttr{
		Mode: out.Attr.Mode & syscall.S_IFMT,
		Ino:  out.Attr.Ino,
	}
	return n.NewInode(ctx, child, stable), 0
}

func (n *node) Getattr(ctx context.Context, f gofs.FileHandle, out *gofuse.AttrOut) syscall.Errno {
	return toErrno(n.d.Getattr(ctx, []byte(n.path()), &out.Attr))
}

func (n *node) Setattr(ctx context.Context, f gofs.FileHandle, in *gofuse.SetAttrIn, out *gofuse.AttrOut) syscall.Errno {
	p := n.path()
	if errno := setattr(ctx, n.d, p, in); errno != 0 {
		return errno
	}
	return toErrno(n.d.Getattr(ctx, []byte(p), &out.Attr))
}

func (n *node) Lookup(ctx context.Context, name string, out *gofuse.EntryOut) (*gofs.Inode, syscall.Errno) {
	return n.entry(ctx, childPath(n.path(), name), out)
}

func (n *node) Readdir(ctx context.Context) (gofs.DirStream, syscall.Errno) {
	entries, errno := readdir(ctx, n.d, n.path())
	if errno != 0 {
		return nil, errno
	}
	return gofs.NewListDirStream(entries), 0
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *gofuse.EntryOut) (*gofs.Inode, syscall.Errno) {
	p := childPath(n.path(), name)
	if errno := toErrno(n.d.Mkdir(ctx, []byte(p), mode&0o7777)); errno != 0 {
		return nil, errno
	}
	return n.entry(ctx, p, out)
}

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *gofuse.EntryOut) (*gofs.Inode, gofs.FileHandle, uint32, syscall.Errno) {
	p := childPath(n.path(), name)
	if errno := toErrno(n.d.Create(ctx, []byte(p), mode&0o7777)); errno != 0 {
		return nil, nil, 0, errno
	}
	inode, errno := n.entry(ctx, p, out)
	return inode, nil, 0, errno
}

// Open validates the request. No file handle is returned, so reads and
// writes arrive at the node.
func (n *node) Open(ctx context.Context, flags uint32) (gofs.FileHandle, uint32, syscall.Errno) {
	return nil, 0, toErrno(n.d.Open(ctx, []byte(n.path()), int(flags), dispatch.LockNone))
}

func (n *node) Read(ctx context.Context, f gofs.FileHandle, dest []byte, off int64) (gofuse.ReadResult, syscall.Errno) {
	res := n.d.Read(ctx, []byte(n.path()), dest, off)
	if res < 0 {
		return nil, toErrno(res)
	}
	return gofuse.ReadResultData(dest[:res]), 0
}

func (n *node) Write(ctx context.Context, f gofs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	res := n.d.Write(ctx, []byte(n.path()), data, off)
	if res < 0 {
		return 0, toErrno(res)
	}
	return uint32(res), 0
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	return toErrno(n.d.Unlink(ctx, []byte(childPath(n.path(), name))))
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return toErrno(n.d.Rmdir(ctx, []byte(childPath(n.path(), name))))
}

// Rename supports plain renames only; RENAME_EXCHANGE and RENAME_NOREPLACE
// are rejected.
func (n *node) Rename(ctx context.Context, name string, newParent gofs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	if flags != 0 {
		return syscall.EINVAL
	}
	src := childPath(n.path(), name)
	dst := childPath("/"+newParent.EmbeddedInode().Path(nil), newName)
	return toErrno(n.d.Rename(ctx, []byte(src), []byte(dst)))
}

func (n *node) Symlink(ctx context.Context, target, name string, out *gofuse.EntryOut) (*gofs.Inode, syscall.Errno) {
	p := childPath(n.path(), name)
	if errno := toErrno(n.d.Symlink(ctx, []byte(target), []byte(p))); errno != 0 {
		return nil, errno
	}
	return n.entry(ctx, p, out)
}

func (n *node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	return readlink(ctx, n.d, n.path())
}

func (n *node) Getxattr(ctx context.Context, attr string, dest []byte) (uint32, syscall.Errno) {
	return getxattr(ctx, n.d, n.path(), attr, dest)
}

func (n *node) Setxattr(ctx context.Context, attr string, data []byte, flags uint32) syscall.Errno {
	return setxattr(ctx, n.d, n.path(), attr, data, flags)
}

func (n *node) Listxattr(ctx context.Context, dest []byte) (uint32, syscall.Errno) {
	return listxattr(ctx, n.d, n.path(), dest)
}

func (n *node) Removexattr(ctx context.Context, attr string) syscall.Errno {
	return toErrno(n.d.Removexattr(ctx, []byte(n.path()), []byte(attr)))
}

func (n *node) Statfs(ctx context.Context, out *gofuse.StatfsOut) syscall.Errno {
	return toErrno(n.d.Statfs(ctx, []byte(n.path()), out))
}
