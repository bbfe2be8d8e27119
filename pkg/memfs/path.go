package memfs

import (
	"path"
	"strings"
)

// cleanPath validates an absolute path and returns its canonical form.
func cleanPath(p string) (string, error) {
	if p == "" {
		return "", newError(ErrNotFound, "empty path", p)
	}
	if !strings.HasPrefix(p, "/") {
		return "", newError(ErrInvalidArgument, "path is not absolute", p)
	}
	return path.Clean(p), nil
}

// splitPath returns the parent directory and final component of a cleaned
// absolute path. The root has an empty name.
func splitPath(p string) (dir, name string) {
	if p == "/" {
		return "/", ""
	}
	dir, name = path.Split(p)
	if len(dir) > 1 {
		dir = strings.TrimSuffix(dir, "/")
	}
	return dir, name
}

func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// isWithin reports whether p equals root or lies below it.
func isWithin(p, root string) bool {
	if p == root || root == "/" {
		return true
	}
	return strings.HasPrefix(p, root+"/")
}
