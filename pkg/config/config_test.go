package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

adapters:
  fuse:
    enabled: true
    mountpoint: "/mnt/memfs"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Adapters.FUSE.Mountpoint != "/mnt/memfs" {
		t.Errorf("Expected mountpoint '/mnt/memfs', got %q", cfg.Adapters.FUSE.Mountpoint)
	}
	if cfg.Adapters.FUSE.AttrTimeout != time.Second {
		t.Errorf("Expected default attr_timeout 1s, got %v", cfg.Adapters.FUSE.AttrTimeout)
	}
	if cfg.FileSystem.BlockSize != 64*1024 {
		t.Errorf("Expected default block size 65536, got %d", cfg.FileSystem.BlockSize)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// A path inside a fresh temp dir keeps the user's own config out of the test.
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if !cfg.Adapters.FUSE.Enabled {
		t.Error("Expected FUSE adapter enabled by default")
	}
	if cfg.Adapters.FUSE.Mountpoint != DefaultMountpoint {
		t.Errorf("Expected default mountpoint %q, got %q", DefaultMountpoint, cfg.Adapters.FUSE.Mountpoint)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
adapters:
  fuse:
    mountpoint: "relative/dir"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected validation error for relative mountpoint")
	}
}

func TestLoad_TOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[logging]
level = "WARN"
format = "json"

[filesystem]
block_size = 4096

[adapters.fuse]
enabled = true
mountpoint = "/mnt/memfs"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.FileSystem.BlockSize != 4096 {
		t.Errorf("Expected block size 4096, got %d", cfg.FileSystem.BlockSize)
	}
}

func TestLoad_DurationsAndOwner(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  shutdown_timeout: 5s

filesystem:
  uid: 0
  gid: 20

adapters:
  fuse:
    negative_timeout: 250ms
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected shutdown_timeout 5s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Adapters.FUSE.NegativeTimeout != 250*time.Millisecond {
		t.Errorf("Expected negative_timeout 250ms, got %v", cfg.Adapters.FUSE.NegativeTimeout)
	}

	uid, gid := cfg.FileSystem.Owner()
	if uid != 0 || gid != 20 {
		t.Errorf("Expected owner 0:20, got %d:%d", uid, gid)
	}
}

func TestFileSystemOwnerDefaultsToProcess(t *testing.T) {
	cfg := GetDefaultConfig()

	uid, gid := cfg.FileSystem.Owner()
	if uid != uint32(os.Getuid()) || gid != uint32(os.Getgid()) {
		t.Errorf("Expected process owner %d:%d, got %d:%d", os.Getuid(), os.Getgid(), uid, gid)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
	if cfg.FileSystem.CapacityBytes != 1<<30 {
		t.Errorf("Expected default capacity 1GiB, got %d", cfg.FileSystem.CapacityBytes)
	}
	if cfg.FileSystem.UID != nil || cfg.FileSystem.GID != nil {
		t.Error("Expected root owner unset by default")
	}
	if !cfg.Adapters.FUSE.Enabled {
		t.Error("Expected FUSE adapter enabled by default")
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")

	if dir := GetConfigDir(); dir != filepath.Join("/xdg", "memfs") {
		t.Errorf("Expected '/xdg/memfs', got %q", dir)
	}
}

func TestConfigExists(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	if ConfigExists() {
		t.Fatal("Expected no config in a fresh directory")
	}

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if !ConfigExists() {
		t.Error("Expected config to exist after InitConfig")
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("MEMFS_LOGGING_LEVEL", "ERROR")
	t.Setenv("MEMFS_ADAPTERS_FUSE_MOUNTPOINT", "/mnt/from-env")
	t.Setenv("MEMFS_FILESYSTEM_BLOCK_SIZE", "8192")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

adapters:
  fuse:
    enabled: true
    mountpoint: "/mnt/memfs"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Adapters.FUSE.Mountpoint != "/mnt/from-env" {
		t.Errorf("Expected mountpoint from env var, got %q", cfg.Adapters.FUSE.Mountpoint)
	}
	// Keys absent from the file resolve through the registered defaults.
	if cfg.FileSystem.BlockSize != 8192 {
		t.Errorf("Expected block size 8192 from env var, got %d", cfg.FileSystem.BlockSize)
	}
}

func TestLoadWithFlags(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"
adapters:
  fuse:
    mountpoint: "/mnt/memfs"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "INFO", "")
	flags.String("mountpoint", "", "")
	flags.Bool("metrics", false, "")
	flags.Int("metrics-port", 9090, "")
	if err := flags.Parse([]string{"--log-level=debug", "--mountpoint=/mnt/flag", "--metrics"}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	cfg, err := LoadWithFlags(configPath, flags)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level 'DEBUG' from flag, got %q", cfg.Logging.Level)
	}
	if cfg.Adapters.FUSE.Mountpoint != "/mnt/flag" {
		t.Errorf("Expected mountpoint from flag, got %q", cfg.Adapters.FUSE.Mountpoint)
	}
	if !cfg.Server.Metrics.Enabled {
		t.Error("Expected metrics enabled from flag")
	}
	// Unset flags leave the file and defaults alone.
	if cfg.Server.Metrics.Port != 9090 {
		t.Errorf("Expected metrics port 9090, got %d", cfg.Server.Metrics.Port)
	}
}

func TestFlagKey(t *testing.T) {
	if key, ok := FlagKey("mountpoint"); !ok || key != "adapters.fuse.mountpoint" {
		t.Errorf("Expected mountpoint to map to adapters.fuse.mountpoint, got %q", key)
	}
	if _, ok := FlagKey("unknown"); ok {
		t.Error("Expected unknown flag to have no key")
	}
}
