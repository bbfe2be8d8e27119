// Package fuse mounts the filesystem engine through the kernel FUSE driver.
package fuse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	gofs "github.com/hanwen/go-fuse/v2/fs"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"
	"github.com/marmos91/memfs/internal/logger"
	"github.com/marmos91/memfs/pkg/dispatch"
	"github.com/marmos91/memfs/pkg/memfs"
)

// FUSEAdapter exposes a memfs.FileSystem as a kernel mount.
//
// Architecture:
// Kernel requests arrive through go-fuse, which calls the node methods in
// node.go. Each node rebuilds its absolute path and forwards the call to a
// dispatch.Dispatcher, which applies errno conventions on top of the engine.
// The adapter itself owns only the mount lifecycle.
//
// Graceful shutdown:
//  1. Context cancelled or Stop() called
//  2. The mount is released with fusermount, retrying while the kernel
//     reports it busy, for at most UnmountTimeout
//  3. Serve() returns once the go-fuse server loop exits
//
// Thread safety:
// All methods are safe for concurrent use. The shutdown channel is closed
// exactly once.
type FUSEAdapter struct {
	config     FUSEConfig
	dispatcher *dispatch.Dispatcher

	// mu guards server.
	mu     sync.Mutex
	server *gofuse.Server

	shutdownOnce sync.Once
	shutdown     chan struct{}
	unmountOnce  sync.Once

	// done is closed when Serve returns after a successful mount.
	done chan struct{}
}

// FUSEConfig holds configuration for the FUSE mount.
//
// All timeout values are durations. Zero values for timeouts mean the
// kernel should not cache the corresponding answers.
type FUSEConfig struct {
	// Enabled controls whether the FUSE adapter is started.
	// Default: true
	Enabled bool `mapstructure:"enabled"`

	// Mountpoint is the directory the filesystem is mounted on. It is
	// created if missing.
	Mountpoint string `mapstructure:"mountpoint" validate:"required"`

	// FsName is the source shown in /proc/mounts.
	// Default: "memfs"
	FsName string `mapstructure:"fs_name"`

	// Name is the filesystem type suffix shown as fuse.<Name>.
	// Default: "memfs"
	Name string `mapstructure:"name"`

	// AllowOther lets users other than the mounting one access the mount.
	// Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool `mapstructure:"allow_other"`

	// Debug logs every kernel request and reply.
	Debug bool `mapstructure:"debug"`

	// EntryTimeout is how long the kernel caches name lookups.
	// Default: 1s
	EntryTimeout time.Duration `mapstructure:"entry_timeout" validate:"min=0"`

	// AttrTimeout is how long the kernel caches attributes.
	// Default: 1s
	AttrTimeout time.Duration `mapstructure:"attr_timeout" validate:"min=0"`

	// NegativeTimeout is how long the kernel caches failed lookups.
	// 0 disables negative caching.
	NegativeTimeout time.Duration `mapstructure:"negative_timeout" validate:"min=0"`

	// UnmountTimeout bounds how long shutdown retries a busy unmount.
	// Default: 10s
	UnmountTimeout time.Duration `mapstructure:"unmount_timeout" validate:"required,gt=0"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *FUSEConfig) applyDefaults() {
	// Note: Enabled field defaults are handled in pkg/config/defaults.go
	// to allow explicit false values from configuration files.

	if c.FsName == "" {
		c.FsName = "memfs"
	}
	if c.Name == "" {
		c.Name = "memfs"
	}
	if c.EntryTimeout == 0 {
		c.EntryTimeout = time.Second
	}
	if c.AttrTimeout == 0 {
		c.AttrTimeout = time.Second
	}
	if c.UnmountTimeout == 0 {
		c.UnmountTimeout = 10 * time.Second
	}
}

// validate checks that the configuration can be mounted.
func (c *FUSEConfig) validate() error {
	if c.Mountpoint == "" {
		return errors.New("mountpoint is required")
	}
	if c.EntryTimeout < 0 {
		return fmt.Errorf("invalid EntryTimeout %v: must be >= 0", c.EntryTimeout)
	}
	if c.AttrTimeout < 0 {
		return fmt.Errorf("invalid AttrTimeout %v: must be >= 0", c.AttrTimeout)
	}
	if c.NegativeTimeout < 0 {
		return fmt.Errorf("invalid NegativeTimeout %v: must be >= 0", c.NegativeTimeout)
	}
	if c.UnmountTimeout <= 0 {
		return fmt.Errorf("invalid UnmountTimeout %v: must be > 0", c.UnmountTimeout)
	}
	return nil
}

// New creates a FUSE adapter with the specified configuration.
//
// Zero-valued fields are replaced with defaults. New panics if the resulting
// configuration is invalid.
func New(config FUSEConfig) *FUSEAdapter {
	config.applyDefaults()

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid FUSE config: %v", err))
	}

	return &FUSEAdapter{
		config:   config,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// SetFileSystem injects the engine served by the mount.
func (a *FUSEAdapter) SetFileSystem(fs *memfs.FileSystem) {
	a.dispatcher = dispatch.New(fs)
	logger.Debug("FUSE adapter configured with filesystem %s", fs.ID())
}

func (a *FUSEAdapter) mountOptions() *gofs.Options {
	entry, attr, negative := a.config.EntryTimeout, a.config.AttrTimeout, a.config.NegativeTimeout

	opts := &gofs.Options{
		EntryTimeout:    &entry,
		AttrTimeout:     &attr,
		NegativeTimeout: &negative,
		MountOptions: gofuse.MountOptions{
			FsName:     a.config.FsName,
			Name:       a.config.Name,
			AllowOther: a.config.AllowOther,
			Debug:      a.config.Debug,
			Logger:     logger.StdLogger("fuse"),
		},
	}
	return opts
}

// Serve mounts the filesystem and blocks until it is unmounted.
//
// Returns:
//   - nil after Stop()
//   - ctx.Err() after context cancellation
//   - an error if mounting fails or the mount disappears externally
func (a *FUSEAdapter) Serve(ctx context.Context) error {
	if a.dispatcher == nil {
		return errors.New("FUSE adapter: filesystem not set")
	}
	if a.isShuttingDown() {
		return nil
	}

	if err := os.MkdirAll(a.config.Mountpoint, 0o755); err != nil {
		return fmt.Errorf("failed to create mountpoint %s: %w", a.config.Mountpoint, err)
	}

	root := &node{d: a.dispatcher}
	server, err := gofs.Mount(a.config.Mountpoint, root, a.mountOptions())
	if err != nil {
		return fmt.Errorf("failed to mount %s: %w", a.config.Mountpoint, err)
	}
	defer close(a.done)

	a.mu.Lock()
	a.server = server
	a.mu.Unlock()

	// Stop may have raced with the mount.
	if a.isShuttingDown() {
		a.unmount(server)
	}

	logger.Info("FUSE filesystem mounted at %s", a.config.Mountpoint)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("FUSE shutdown signal received: %v", ctx.Err())
			a.initiateShutdown()
		case <-a.shutdown:
		case <-a.done:
		}
	}()

	server.Wait()
	logger.Info("FUSE filesystem unmounted from %s", a.config.Mountpoint)

	if err := ctx.Err(); err != nil {
		return err
	}
	if a.isShuttingDown() {
		return nil
	}
	return fmt.Errorf("FUSE mount at %s was released externally", a.config.Mountpoint)
}

func (a *FUSEAdapter) isShuttingDown() bool {
	select {
	case <-a.shutdown:
		return true
	default:
		return false
	}
}

// initiateShutdown closes the shutdown channel and releases the mount.
// Safe to call multiple times.
func (a *FUSEAdapter) initiateShutdown() {
	a.shutdownOnce.Do(func() {
		logger.Debug("FUSE shutdown initiated")
		close(a.shutdown)

		a.mu.Lock()
		server := a.server
		a.mu.Unlock()

		if server != nil {
			a.unmount(server)
		}
	})
}

// unmount retries while the kernel reports the mount busy. Only the first
// call has any effect.
func (a *FUSEAdapter) unmount(server *gofuse.Server) {
	a.unmountOnce.Do(func() {
		deadline := time.Now().Add(a.config.UnmountTimeout)
		for {
			err := server.Unmount()
			if err == nil {
				return
			}
			if time.Now().After(deadline) {
				logger.Error("FUSE unmount of %s failed: %v", a.config.Mountpoint, err)
				return
			}
			logger.Debug("FUSE unmount of %s failed, retrying: %v", a.config.Mountpoint, err)
			time.Sleep(100 * time.Millisecond)
		}
	})
}

// Stop releases the mount and waits for Serve to return or ctx to expire.
// Safe to call multiple times and before Serve.
func (a *FUSEAdapter) Stop(ctx context.Context) error {
	a.initiateShutdown()

	a.mu.Lock()
	mounted := a.server != nil
	a.mu.Unlock()

	if !mounted {
		return nil
	}

	select {
	case <-a.done:
		logger.Info("FUSE adapter stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("FUSE shutdown timeout: %w", ctx.Err())
	}
}

// Protocol returns "FUSE" for logging and identification.
func (a *FUSEAdapter) Protocol() string {
	return "FUSE"
}

// Mountpoint returns the directory the filesystem is mounted on.
func (a *FUSEAdapter) Mountpoint() string {
	return a.config.Mountpoint
}
