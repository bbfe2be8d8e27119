package memfs

import (
	"context"
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// FSError represents a domain error from a filesystem operation.
//
// These are caller-visible conditions (entry not found, wrong kind, name
// taken, ...) and are deterministic for a given state and input. The one
// exception is ErrInternalConsistency, which signals a defect in the engine.
//
// Dispatchers translate FSError codes to transport-level codes with ToErrno.
type FSError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the filesystem path related to the error (if applicable)
	Path string
}

// Error implements the error interface.
func (e *FSError) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode represents the category of a filesystem error.
type ErrorCode int

const (
	// ErrNotFound indicates a path component or the target entry is missing
	ErrNotFound ErrorCode = iota

	// ErrNotADirectory indicates a directory was expected
	ErrNotADirectory

	// ErrIsADirectory indicates the operation cannot act on a directory
	ErrIsADirectory

	// ErrInvalidName indicates an empty final path component
	ErrInvalidName

	// ErrAlreadyExists indicates the name is already taken
	ErrAlreadyExists

	// ErrOperationNotSupported indicates an unsupported flag combination,
	// e.g. advisory locks requested on open
	ErrOperationNotSupported

	// ErrSymlinkLoop indicates symlink resolution revisited an inode or ran
	// out of hops, or a symlink was opened with no-follow
	ErrSymlinkLoop

	// ErrAttributeNotFound indicates a missing extended attribute
	ErrAttributeNotFound

	// ErrRangeError indicates the destination buffer is too small
	ErrRangeError

	// ErrInvalidArgument indicates an out-of-range numeric parameter or an
	// operation applied to the wrong kind of entry
	ErrInvalidArgument

	// ErrNotEmpty indicates a directory still has children
	ErrNotEmpty

	// ErrInternalConsistency indicates the path index and the tree disagree.
	// This is always an engine defect.
	ErrInternalConsistency
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "NotFound"
	case ErrNotADirectory:
		return "NotADirectory"
	case ErrIsADirectory:
		return "IsADirectory"
	case ErrInvalidName:
		return "InvalidName"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrOperationNotSupported:
		return "OperationNotSupported"
	case ErrSymlinkLoop:
		return "SymlinkLoop"
	case ErrAttributeNotFound:
		return "AttributeNotFound"
	case ErrRangeError:
		return "RangeError"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrNotEmpty:
		return "NotEmpty"
	case ErrInternalConsistency:
		return "InternalConsistency"
	default:
		return "Unknown"
	}
}

// Errno returns the errno a transport reports for this code.
func (c ErrorCode) Errno() syscall.Errno {
	switch c {
	case ErrNotFound, ErrInvalidName:
		return unix.ENOENT
	case ErrNotADirectory:
		return unix.ENOTDIR
	case ErrIsADirectory:
		return unix.EISDIR
	case ErrAlreadyExists:
		return unix.EEXIST
	case ErrOperationNotSupported:
		return unix.EOPNOTSUPP
	case ErrSymlinkLoop:
		return unix.ELOOP
	case ErrAttributeNotFound:
		return unix.ENODATA
	case ErrRangeError:
		return unix.ERANGE
	case ErrInvalidArgument:
		return unix.EINVAL
	case ErrNotEmpty:
		return unix.ENOTEMPTY
	default:
		return unix.EIO
	}
}

func newError(code ErrorCode, message, path string) *FSError {
	return &FSError{Code: code, Message: message, Path: path}
}

// CodeOf extracts the ErrorCode of err, if it wraps an *FSError.
func CodeOf(err error) (ErrorCode, bool) {
	var fsErr *FSError
	if errors.As(err, &fsErr) {
		return fsErr.Code, true
	}
	return 0, false
}

// IsCode reports whether err wraps an *FSError with the given code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

func IsNotFound(err error) bool {
	return IsCode(err, ErrNotFound)
}

func IsAlreadyExists(err error) bool {
	return IsCode(err, ErrAlreadyExists)
}

// ToErrno maps an operation result to an errno. nil maps to 0, context
// cancellation to EINTR and anything that is not an *FSError to EIO.
func ToErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	if code, ok := CodeOf(err); ok {
		return code.Errno()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return unix.EINTR
	}
	return unix.EIO
}
