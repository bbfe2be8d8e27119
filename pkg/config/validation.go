package config

import (
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if !cfg.Adapters.FUSE.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	if !filepath.IsAbs(cfg.Adapters.FUSE.Mountpoint) {
		return fmt.Errorf("adapters.fuse.mountpoint: %q must be an absolute path", cfg.Adapters.FUSE.Mountpoint)
	}

	fs := cfg.FileSystem
	if int64(fs.BlockSize) > fs.MaxFileSize {
		return fmt.Errorf("filesystem.block_size: %d exceeds max_file_size %d", fs.BlockSize, fs.MaxFileSize)
	}
	if fs.CapacityBytes < uint64(fs.BlockSize) {
		return fmt.Errorf("filesystem.capacity_bytes: %d is smaller than one block (%d)", fs.CapacityBytes, fs.BlockSize)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
