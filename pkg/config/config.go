package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/memfs/pkg/adapter/fuse"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the complete memfs configuration.
//
// This structure captures all configurable aspects of memfs including:
//   - Logging configuration
//   - Server-wide settings (shutdown, metrics)
//   - Filesystem engine limits and ownership
//   - Adapter configurations
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (MEMFS_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server"`

	// FileSystem configures the in-memory engine
	FileSystem FileSystemConfig `mapstructure:"filesystem"`

	// Adapters contains adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig controls the metrics HTTP server.
type MetricsConfig struct {
	// Enabled starts the metrics server and registers engine collectors
	Enabled bool `mapstructure:"enabled"`

	// Port is the TCP port of the metrics server
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
}

// FileSystemConfig configures the in-memory engine.
type FileSystemConfig struct {
	// BlockSize is the size in bytes of one content block
	BlockSize int `mapstructure:"block_size" validate:"required,gt=0"`

	// MaxFileSize bounds file length and I/O offsets
	MaxFileSize int64 `mapstructure:"max_file_size" validate:"required,gt=0"`

	// CapacityBytes is the capacity reported by statfs
	CapacityBytes uint64 `mapstructure:"capacity_bytes" validate:"required,gt=0"`

	// MaxInodes is the inode capacity reported by statfs
	MaxInodes uint64 `mapstructure:"max_inodes" validate:"required,gt=0"`

	// UID and GID own the root directory. Unset means the identity of the
	// mounting process.
	UID *uint32 `mapstructure:"uid"`
	GID *uint32 `mapstructure:"gid"`

	// VerifyConsistency checks the whole tree after every mutation
	VerifyConsistency bool `mapstructure:"verify_consistency"`
}

// Owner returns the configured root owner, falling back to the current
// process identity.
func (c *FileSystemConfig) Owner() (uid, gid uint32) {
	uid, gid = uint32(os.Getuid()), uint32(os.Getgid())
	if c.UID != nil {
		uid = *c.UID
	}
	if c.GID != nil {
		gid = *c.GID
	}
	return uid, gid
}

// AdaptersConfig contains all adapter configurations.
type AdaptersConfig struct {
	// FUSE contains the kernel mount configuration.
	// Uses the fuse.FUSEConfig type directly to avoid duplication.
	FUSE fuse.FUSEConfig `mapstructure:"fuse"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"log-level":          "logging.level",
	"log-format":         "logging.format",
	"mountpoint":         "adapters.fuse.mountpoint",
	"allow-other":        "adapters.fuse.allow_other",
	"fuse-debug":         "adapters.fuse.debug",
	"metrics":            "server.metrics.enabled",
	"metrics-port":       "server.metrics.port",
	"capacity":           "filesystem.capacity_bytes",
	"verify-consistency": "filesystem.verify_consistency",
}

// FlagKey returns the configuration key a command-line flag overrides.
func FlagKey(flag string) (string, bool) {
	key, ok := flagKeys[flag]
	return key, ok
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (MEMFS_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	return LoadWithFlags(configPath, nil)
}

// LoadWithFlags is Load with command-line overrides. Only flags that were
// set explicitly and appear in the flag key table take effect.
func LoadWithFlags(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if err := setupViper(v, configPath); err != nil {
		return nil, err
	}

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	if flags != nil {
		flags.Visit(func(f *pflag.Flag) {
			if key, ok := flagKeys[f.Name]; ok {
				v.Set(key, f.Value.String())
			}
		})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with defaults, environment variables and
// config file settings.
func setupViper(v *viper.Viper, configPath string) error {
	// Registering every key as a default lets AutomaticEnv resolve nested
	// keys that the config file does not mention.
	defaults, err := toMap(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to build default config: %w", err)
	}
	setDefaults(v, "", defaults)

	// Example: MEMFS_ADAPTERS_FUSE_MOUNTPOINT=/mnt/memfs
	v.SetEnvPrefix("MEMFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/memfs/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	return nil
}

// toMap converts cfg into nested maps keyed by mapstructure tags.
func toMap(cfg *Config) (map[string]any, error) {
	out := make(map[string]any)
	if err := mapstructure.Decode(cfg, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func setDefaults(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			setDefaults(v, key, nested)
			continue
		}
		v.SetDefault(key, val)
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// An explicit path that does not exist is also acceptable.
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "memfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "memfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
