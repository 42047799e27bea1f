package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FS writes uploads into one directory and reads installs from a root
// directory. Locations handed to Open are relative to the root and may not
// leave it.
type FS struct {
	uploadDir string
	root      string
}

// NewFS returns a filesystem store. uploadDir is created if needed.
func NewFS(uploadDir, root string) (*FS, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &FS{uploadDir: uploadDir, root: root}, nil
}

// Put copies r into the upload directory. The data lands in a temp file
// first and is renamed once complete, so name never refers to a partial file.
func (f *FS) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	tmp, err := os.CreateTemp(f.uploadDir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := io.Copy(tmp, ctxReader{ctx: ctx, r: r}); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}

	dst := filepath.Join(f.uploadDir, name)
	if err := os.Rename(tmpName, dst); err != nil {
		return "", fmt.Errorf("rename %s: %w", name, err)
	}
	return dst, nil
}

// Open opens location inside the root.
func (f *FS) Open(_ context.Context, location string) (*Object, error) {
	if location == "" {
		return nil, fmt.Errorf("%w: empty location", ErrMissing)
	}
	if filepath.IsAbs(location) {
		return nil, fmt.Errorf("%w: absolute location %s", ErrMissing, location)
	}

	root, err := os.OpenRoot(f.root)
	if err != nil {
		return nil, fmt.Errorf("%w: open root: %v", ErrMissing, err)
	}
	defer func() { _ = root.Close() }()

	file, err := root.Open(filepath.FromSlash(location))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissing, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %v", ErrMissing, err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrMissing, location)
	}

	return &Object{
		ReadCloser: file,
		Name:       filepath.Base(location),
		Size:       info.Size(),
	}, nil
}

// Check verifies the upload directory accepts new files.
func (f *FS) Check(_ context.Context) error {
	probe, err := os.CreateTemp(f.uploadDir, ".probe-*")
	if err != nil {
		return fmt.Errorf("upload dir not writable: %w", err)
	}
	name := probe.Name()
	return errors.Join(probe.Close(), os.Remove(name))
}
