package main

import (
	"context"
	"fmt"

	"github.com/marmos91/memfs/pkg/memfs"
	"github.com/marmos91/memfs/pkg/xattr"
)

// seedSampleTree creates a few directories, files and a symlink so a fresh
// mount has something to look at.
func seedSampleTree(ctx context.Context, fs *memfs.FileSystem) error {
	if _, err := fs.Mkdir(ctx, "/images", 0o755); err != nil {
		return fmt.Errorf("failed to create images directory: %w", err)
	}

	files := []struct {
		path    string
		content string
	}{
		{"/images/background1.png", "PNG image content for background1"},
		{"/images/wallpaper.png", "PNG image content for wallpaper"},
		{"/readme.txt", "This is a README file.\nWelcome to memfs!\n"},
		{"/notes.txt", "Everything here lives in memory.\nIt is gone after unmount.\n"},
	}

	for _, f := range files {
		if _, err := fs.Create(ctx, f.path, 0o644); err != nil {
			return fmt.Errorf("failed to create %s: %w", f.path, err)
		}
		if _, err := fs.Write(ctx, f.path, []byte(f.content), 0); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.path, err)
		}
	}

	if _, err := fs.Symlink(ctx, "images/wallpaper.png", "/wallpaper.png"); err != nil {
		return fmt.Errorf("failed to create symlink: %w", err)
	}

	if err := fs.SetXattr(ctx, "/readme.txt", "user.mime_type", []byte("text/plain"), xattr.Flags(0)); err != nil {
		return fmt.Errorf("failed to tag readme: %w", err)
	}

	return nil
}
