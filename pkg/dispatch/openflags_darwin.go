package dispatch

import "golang.org/x/sys/unix"

const (
	oSymlinkOnly   = unix.O_SYMLINK
	oSharedLock    = unix.O_SHLOCK
	oExclusiveLock = unix.O_EXLOCK
)
