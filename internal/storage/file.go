package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	mgErrors "github.com/ZaguanLabs/mathgpt/internal/errors"
)

// File keeps each slot in its own file under a directory. Writes go through
// a synced temporary file and a rename, so a slot is either the old or the
// new value after a crash.
type File struct {
	dir string
	mu  sync.Mutex
}

// OpenFile uses dir, creating it if needed. An empty dir selects
// ~/.local/share/mathgpt.
func OpenFile(dir string) (*File, error) {
	resolved, err := resolvePath(dir, "")
	if err != nil {
		return nil, mgErrors.NewStorageError("open", "failed to resolve storage directory", err)
	}
	return &File{dir: resolved}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

// Get returns the value stored under key.
func (f *File) Get(key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, mgErrors.NewStorageError("get", fmt.Sprintf("read slot %q", key), err)
	}
	return data, true, nil
}

// Set replaces the value stored under key.
func (f *File) Set(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := WriteFileAtomic(f.path(key), value, 0o600); err != nil {
		return mgErrors.NewStorageError("set", fmt.Sprintf("write slot %q", key), err)
	}
	return nil
}

// Delete removes key. Deleting a missing key succeeds.
func (f *File) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return mgErrors.NewStorageError("delete", fmt.Sprintf("delete slot %q", key), err)
	}
	return nil
}

// Close is a no-op.
func (f *File) Close() error {
	return nil
}

// WriteFileAtomic writes data to a temporary file in the target directory,
// syncs it and renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync data to disk: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, perm); err != nil {
		return fmt.Errorf("failed to set file permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
