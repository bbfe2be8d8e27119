package config

import (
	"math"
	"strings"
	"time"

	"github.com/marmos91/memfs/pkg/adapter/fuse"
	"github.com/marmos91/memfs/pkg/blocks"
	"github.com/marmos91/memfs/pkg/memfs"
)

// DefaultMountpoint is where the filesystem is mounted when none is configured.
const DefaultMountpoint = "/tmp/memfs"

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Root ownership stays unset and resolves to the mounting process
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyFileSystemDefaults(&cfg.FileSystem)
	applyAdaptersDefaults(&cfg.Adapters)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

// applyFileSystemDefaults sets engine defaults. They match the engine's own
// so that an empty section behaves like memfs.Options{}.
func applyFileSystemDefaults(cfg *FileSystemConfig) {
	if cfg.BlockSize == 0 {
		cfg.BlockSize = blocks.DefaultBlockSize
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = blocks.DefaultMaxSize
	}
	if cfg.CapacityBytes == 0 {
		cfg.CapacityBytes = memfs.DefaultCapacityBytes
	}
	if cfg.MaxInodes == 0 {
		cfg.MaxInodes = math.MaxInt32
	}
}

// applyAdaptersDefaults sets adapter defaults.
func applyAdaptersDefaults(cfg *AdaptersConfig) {
	// Enable the FUSE adapter when nothing about it was configured, so a
	// config loaded without a file still passes validation. An explicit
	// enabled: false together with a mountpoint keeps it disabled.
	if !cfg.FUSE.Enabled && cfg.FUSE.Mountpoint == "" {
		cfg.FUSE.Enabled = true
	}

	applyFUSEDefaults(&cfg.FUSE)
}

// applyFUSEDefaults sets FUSE adapter defaults.
func applyFUSEDefaults(cfg *fuse.FUSEConfig) {
	if cfg.Mountpoint == "" {
		cfg.Mountpoint = DefaultMountpoint
	}
	if cfg.FsName == "" {
		cfg.FsName = "memfs"
	}
	if cfg.Name == "" {
		cfg.Name = "memfs"
	}
	if cfg.EntryTimeout == 0 {
		cfg.EntryTimeout = time.Second
	}
	if cfg.AttrTimeout == 0 {
		cfg.AttrTimeout = time.Second
	}
	if cfg.UnmountTimeout == 0 {
		cfg.UnmountTimeout = 10 * time.Second
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Adapters: AdaptersConfig{
			FUSE: fuse.FUSEConfig{
				Enabled: true,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
