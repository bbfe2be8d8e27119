package adapter

import (
	"context"

	"github.com/marmos91/memfs/pkg/memfs"
)

// Adapter exposes the shared filesystem engine through a specific transport
// (a FUSE mount, for instance) and is managed by the server.
//
// Lifecycle:
//  1. Creation: Adapter is created with transport-specific configuration
//  2. Engine injection: SetFileSystem() provides the shared filesystem
//  3. Startup: Serve() starts the transport and blocks until shutdown
//  4. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. SetFileSystem() is called
// once before Serve(), but Stop() may be called concurrently with Serve().
type Adapter interface {
	// Serve starts the transport and blocks until the context is cancelled
	// or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must release the transport
	// (unmount, close listeners) and return nil or context.Canceled.
	//
	// If Serve returns before context cancellation, the server treats it as
	// a fatal error and stops all other adapters.
	Serve(ctx context.Context) error

	// SetFileSystem injects the shared filesystem engine.
	//
	// Called exactly once by the server before Serve().
	SetFileSystem(fs *memfs.FileSystem)

	// Stop initiates graceful shutdown.
	//
	// Implementations must be idempotent, safe to call concurrently with
	// Serve(), and respect the context deadline.
	Stop(ctx context.Context) error

	// Protocol returns the human-readable transport name for logging.
	Protocol() string

	// Mountpoint returns where the adapter exposes the filesystem: a
	// directory for mount-based adapters or an address for network ones.
	Mountpoint() string
}
