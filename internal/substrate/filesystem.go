package substrate

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"feed-go/internal/feed"
)

// valueExt is appended to every value file so temp files never collide with keys.
const valueExt = ".val"

// FileSystemSubstrate stores each key as one file under a directory:
//
//	<root>/
//	  publicaciones.val
//	  users.val
//	  authToken.val
//
// Writes are atomic (temp file + rename), so a failed write never leaves a
// truncated value behind.
type FileSystemSubstrate struct {
	root     string
	maxBytes int64 // 0 means unlimited
	mu       sync.Mutex
}

var _ feed.Substrate = (*FileSystemSubstrate)(nil)

// NewFileSystemSubstrate creates the root directory if needed.
func NewFileSystemSubstrate(root string, maxBytes int64) (*FileSystemSubstrate, error) {
	if root == "" {
		return nil, fmt.Errorf("filesystem substrate requires a root directory")
	}
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("failed to create substrate directory: %w", err)
	}
	return &FileSystemSubstrate{root: root, maxBytes: maxBytes}, nil
}

func (f *FileSystemSubstrate) Get(key string) (string, bool, error) {
	path, err := f.path(key)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading %s: %w: %w", key, feed.ErrStorageUnavailable, err)
	}
	return string(data), true, nil
}

func (f *FileSystemSubstrate) Set(key, value string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.maxBytes > 0 {
		used, err := f.usage(path)
		if err != nil {
			return err
		}
		if next := used + int64(len(value)); next > f.maxBytes {
			return fmt.Errorf("setting %s: %w (%d of %d bytes)", key, feed.ErrQuotaExceeded, next, f.maxBytes)
		}
	}

	if err := writeAtomic(path, value); err != nil {
		return fmt.Errorf("writing %s: %w: %w", key, feed.ErrStorageUnavailable, err)
	}
	return nil
}

func (f *FileSystemSubstrate) Delete(key string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting %s: %w: %w", key, feed.ErrStorageUnavailable, err)
	}
	return nil
}

// path maps a key to its file. Keys are path-escaped so they can never leave root.
func (f *FileSystemSubstrate) path(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty key")
	}
	name := url.PathEscape(key)
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}
	return filepath.Join(f.root, name+valueExt), nil
}

// usage sums the sizes of all value files except skip.
func (f *FileSystemSubstrate) usage(skip string) (int64, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return 0, fmt.Errorf("listing %s: %w: %w", f.root, feed.ErrStorageUnavailable, err)
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), valueExt) || filepath.Join(f.root, e.Name()) == skip {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return 0, fmt.Errorf("stat %s: %w: %w", e.Name(), feed.ErrStorageUnavailable, err)
		}
		total += info.Size()
	}
	return total, nil
}

// writeAtomic writes value to a temp file in the same directory and renames it over path.
func writeAtomic(path, value string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
