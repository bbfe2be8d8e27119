package dispatch

import "golang.org/x/sys/unix"

// O_PATH is the closest Linux equivalent of opening the link itself. Linux
// has no open-time lock flags; callers pass a lock mode instead.
const (
	oSymlinkOnly   = unix.O_PATH
	oSharedLock    = 0
	oExclusiveLock = 0
)
