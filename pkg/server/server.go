package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/memfs/internal/logger"
	"github.com/marmos91/memfs/pkg/adapter"
	"github.com/marmos91/memfs/pkg/memfs"
	"github.com/marmos91/memfs/pkg/metrics"
)

// DefaultShutdownTimeout bounds how long Serve waits for adapters to stop.
const DefaultShutdownTimeout = 30 * time.Second

// Server manages the lifecycle of the adapters that expose one shared
// filesystem engine.
//
// Architecture:
// Every adapter (a FUSE mount, for instance) receives the same
// *memfs.FileSystem, so all of them observe a single tree. An optional
// metrics server runs next to the adapters for the lifetime of Serve.
//
// Lifecycle:
//  1. Creation: New() with the engine
//  2. Registration: AddAdapter() for each transport
//  3. Startup: Serve() starts all adapters concurrently
//  4. Shutdown: Context cancellation or an adapter failure stops every
//     adapter in reverse registration order
//
// Thread safety:
// Server is safe for concurrent use. Serve() may be called once.
//
// Example usage:
//
//	srv := server.New(fs, server.Config{})
//	if err := srv.AddAdapter(fuse.New(fuseConfig)); err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
//	    log.Fatal(err)
//	}
type Server struct {
	fs     *memfs.FileSystem
	config Config

	// mu protects adapters.
	mu       sync.RWMutex
	adapters []adapter.Adapter

	served atomic.Bool
}

// Config controls server behavior.
type Config struct {
	// ShutdownTimeout bounds the Stop() calls issued during shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration

	// Metrics, when set, is served for the lifetime of Serve. A metrics
	// failure is logged and does not stop the adapters.
	Metrics *metrics.Server
}

// New creates a server for fs.
//
// Panics if fs is nil (indicates programmer error).
func New(fs *memfs.FileSystem, config Config) *Server {
	if fs == nil {
		panic("filesystem cannot be nil")
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}

	return &Server{
		fs:       fs,
		config:   config,
		adapters: make([]adapter.Adapter, 0, 2),
	}
}

// FileSystem returns the shared engine.
func (s *Server) FileSystem() *memfs.FileSystem {
	return s.fs
}

// AddAdapter injects the shared engine into a and registers it.
//
// Returns an error if another adapter already serves the same mountpoint,
// or if Serve() has been called.
//
// Panics if a is nil (programmer error).
func (s *Server) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served.Load() {
		return errors.New("cannot add adapter after Serve() has been called")
	}

	protocol := a.Protocol()
	mountpoint := a.Mountpoint()

	for _, existing := range s.adapters {
		if existing.Mountpoint() == mountpoint {
			return fmt.Errorf("%s already served by %s adapter", mountpoint, existing.Protocol())
		}
	}

	a.SetFileSystem(s.fs)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter at %s", protocol, mountpoint)
	return nil
}

// Serve starts all registered adapters and blocks until the context is
// cancelled or an adapter fails.
//
// Returns:
//   - ctx.Err() if shutdown was triggered by context cancellation
//   - the adapter error if an adapter stopped on its own
//   - an error if no adapter is registered or Serve() was already called
func (s *Server) Serve(ctx context.Context) error {
	if !s.served.CompareAndSwap(false, true) {
		return errors.New("Serve() has already been called on this server instance")
	}

	adapters := s.Adapters()
	if len(adapters) == 0 {
		return errors.New("no adapters registered; call AddAdapter() before Serve()")
	}

	logger.Info("Starting memfs server %s with %d adapter(s)", s.fs.ID(), len(adapters))

	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	metricsDone := s.startMetrics(metricsCtx)

	errChan := make(chan adapterError, len(adapters))
	var wg sync.WaitGroup

	for _, a := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter at %s", protocol, a.Mountpoint())

			err := a.Serve(ctx)
			switch {
			case err == nil:
				logger.Info("%s adapter stopped", protocol)
			case errors.Is(err, context.Canceled) || ctx.Err() != nil:
				logger.Debug("%s adapter stopped gracefully", protocol)
			default:
				logger.Error("%s adapter failed: %v", protocol, err)
				errChan <- adapterError{protocol: protocol, err: err}
			}
		}(a)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()
	case ae := <-errChan:
		logger.Error("Adapter %s failed: %v - initiating shutdown of all adapters", ae.protocol, ae.err)
		shutdownErr = fmt.Errorf("%s adapter error: %w", ae.protocol, ae.err)
	}

	s.stopAllAdapters(adapters)

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	stopMetrics()
	<-metricsDone

	if err := s.fs.CheckConsistency(context.Background()); err != nil {
		logger.Error("Filesystem inconsistent at shutdown: %v", err)
	}
	logger.Info("memfs server stopped (%d live inodes)", s.fs.InodeCount())

	return shutdownErr
}

// startMetrics runs the metrics server until ctx is cancelled. The returned
// channel is closed once it has stopped.
func (s *Server) startMetrics(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if s.config.Metrics == nil {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		if err := s.config.Metrics.Start(ctx); err != nil {
			logger.Error("Metrics server error: %v", err)
		}
	}()
	return done
}

type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters calls Stop() on each adapter in reverse registration order,
// sharing one ShutdownTimeout deadline.
func (s *Server) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		a := adapters[i]
		protocol := a.Protocol()

		logger.Debug("Stopping %s adapter at %s", protocol, a.Mountpoint())

		if err := a.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", protocol, err)
		}
	}
}

// Adapters returns a snapshot of the registered adapters.
func (s *Server) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
