// Package blob stores raw artifact payloads under slash-separated paths.
package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Filesystem stores blobs as files below Root.
type Filesystem struct {
	Root string
}

func NewFilesystem(root string) *Filesystem { return &Filesystem{Root: root} }

func (f *Filesystem) resolve(p string) string {
	return filepath.Join(f.Root, filepath.FromSlash(p))
}

// WriteFile writes data at p, creating missing parent directories.
func (f *Filesystem) WriteFile(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full := f.resolve(p)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", p, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

// EnsureDirectory creates p and its parents. An existing directory is fine.
func (f *Filesystem) EnsureDirectory(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(f.resolve(p), 0o755); err != nil {
		return fmt.Errorf("ensure directory %s: %w", p, err)
	}
	return nil
}
