// Package storage keeps uploaded image files on the local filesystem.
//
// NAMING:
// Every stored file gets a fresh name: 32 hex characters from a random
// UUID plus the (lower-cased) original extension, e.g.
// "3f2b9c0d4e5f60718293a4b5c6d7e8f9.png". The client's original filename is
// never used on disk, so two uploads of "photo.png" can't collide and a
// crafted name like "../../etc/passwd" has nowhere to go.
//
// WRITE PATTERN:
// temp file → copy → close → rename. A failed copy removes the temp file,
// so a half-written upload is never visible under its final name.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Local is a filesystem-backed blob store rooted at one directory.
type Local struct {
	dir string
}

// NewLocal creates the directory if needed and returns a store rooted there.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating upload directory %s: %w", dir, err)
	}
	return &Local{dir: dir}, nil
}

// Dir returns the root directory. The HTTP layer serves it read-only.
func (l *Local) Dir() string {
	return l.dir
}

// Save streams src into a newly named file and returns that name.
// ext must include the leading dot (".png").
func (l *Local) Save(ext string, src io.Reader) (string, error) {
	name := strings.ReplaceAll(uuid.NewString(), "-", "") + strings.ToLower(ext)
	fullPath := filepath.Join(l.dir, name)
	tmpPath := fullPath + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("storage: creating %s: %w", tmpPath, err)
	}

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("storage: writing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("storage: closing %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("storage: renaming %s: %w", name, err)
	}

	return name, nil
}

// Remove deletes a stored file. A file that is already gone is not an error.
func (l *Local) Remove(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(l.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: removing %s: %w", name, err)
	}
	return nil
}

// Exists reports whether name is present in the store.
func (l *Local) Exists(name string) bool {
	if checkName(name) != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(l.dir, name))
	return err == nil
}

// checkName rejects anything that isn't a bare file name inside the store.
func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("storage: invalid file name %q", name)
	}
	return nil
}
