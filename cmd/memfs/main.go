package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/memfs/internal/logger"
	"github.com/marmos91/memfs/pkg/adapter/fuse"
	"github.com/marmos91/memfs/pkg/config"
	"github.com/marmos91/memfs/pkg/memfs"
	"github.com/marmos91/memfs/pkg/server"
	"github.com/spf13/pflag"
)

const usage = `memfs - in-memory filesystem served over FUSE

Usage:
  memfs init [--config PATH] [--force]   Write a sample configuration file
  memfs start [flags]                    Mount the filesystem and serve until interrupted

Run "memfs start --help" for the list of flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(os.Args[2:])
	case "start":
		err = runStart(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInit(args []string) error {
	flags := pflag.NewFlagSet("init", pflag.ContinueOnError)
	configPath := flags.String("config", "", "Where to write the config file (default: $XDG_CONFIG_HOME/memfs/config.yaml)")
	force := flags.Bool("force", false, "Overwrite an existing config file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	path := *configPath
	if path == "" {
		var err error
		if path, err = config.InitConfig(*force); err != nil {
			return err
		}
	} else if err := config.InitConfigToPath(path, *force); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", path)
	return nil
}

func startFlags() (*pflag.FlagSet, *string, *bool) {
	flags := pflag.NewFlagSet("start", pflag.ContinueOnError)
	configPath := flags.String("config", "", "Path to the config file (default: $XDG_CONFIG_HOME/memfs/config.yaml)")
	seed := flags.Bool("seed", false, "Populate the filesystem with a small sample tree")

	flags.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	flags.String("log-format", "text", "Log format (text, json)")
	flags.String("mountpoint", config.DefaultMountpoint, "Directory to mount the filesystem on")
	flags.Bool("allow-other", false, "Allow other users to access the mount")
	flags.Bool("fuse-debug", false, "Log every FUSE request")
	flags.Bool("metrics", false, "Serve Prometheus metrics")
	flags.Int("metrics-port", 9090, "Port of the metrics server")
	flags.Uint64("capacity", memfs.DefaultCapacityBytes, "Capacity in bytes reported by statfs")
	flags.Bool("verify-consistency", false, "Check the whole tree after every mutation")

	return flags, configPath, seed
}

func runStart(args []string) error {
	flags, configPath, seed := startFlags()
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadWithFlags(*configPath, flags)
	if err != nil {
		return err
	}

	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return err
	}

	m := config.InitializeMetrics(cfg)

	uid, gid := cfg.FileSystem.Owner()
	fs := memfs.New(memfs.Options{
		BlockSize:         cfg.FileSystem.BlockSize,
		MaxFileSize:       cfg.FileSystem.MaxFileSize,
		CapacityBytes:     cfg.FileSystem.CapacityBytes,
		MaxInodes:         cfg.FileSystem.MaxInodes,
		UID:               uid,
		GID:               gid,
		VerifyConsistency: cfg.FileSystem.VerifyConsistency,
		Metrics:           m.FilesystemMetrics,
	})

	logger.Info("Filesystem %s created (block size %d, capacity %d bytes, root owner %d:%d)",
		fs.ID(), cfg.FileSystem.BlockSize, cfg.FileSystem.CapacityBytes, uid, gid)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *seed {
		if err := seedSampleTree(ctx, fs); err != nil {
			return fmt.Errorf("failed to create sample tree: %w", err)
		}
		logger.Info("Sample file tree created")
	}

	srv := server.New(fs, server.Config{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Metrics:         m.Server,
	})

	if err := srv.AddAdapter(fuse.New(cfg.Adapters.FUSE)); err != nil {
		return err
	}

	logger.Info("memfs is running at %s. Press Ctrl+C to stop.", cfg.Adapters.FUSE.Mountpoint)

	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
