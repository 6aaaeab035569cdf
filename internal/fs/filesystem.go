// Package fs turns paths on the local filesystem into attachments.
package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"feed-go/internal/feed"
)

// DefaultMaxFileSize caps a single attachment.
const DefaultMaxFileSize = 10 << 20

// ErrTooLarge is returned for files over the collector's size limit.
var ErrTooLarge = errors.New("file too large")

// FileBlob is a feed.Blob backed by a regular file.
type FileBlob struct {
	path string
	name string
	size int64
}

var _ feed.Blob = (*FileBlob)(nil)

// Name returns the file's base name; the directory is not recorded.
func (b *FileBlob) Name() string { return b.name }

// Path returns the absolute path the blob reads from.
func (b *FileBlob) Path() string { return b.path }

// Size is the size observed when the blob was resolved.
func (b *FileBlob) Size() int64 { return b.size }

func (b *FileBlob) Open() (io.ReadCloser, error) {
	return os.Open(b.path)
}

// Collector resolves attachment paths. Directories are expanded to the
// regular files directly inside them, minus anything matched by the ignore
// rules (the defaults plus the directory's .feedignore).
type Collector struct {
	maxSize int64
}

// NewCollector creates a Collector. maxSize <= 0 means DefaultMaxFileSize.
func NewCollector(maxSize int64) *Collector {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Collector{maxSize: maxSize}
}

// Resolve validates a single file path and returns a blob for it.
func (c *Collector) Resolve(rawPath string) (*FileBlob, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	return c.blob(absPath, info)
}

func (c *Collector) blob(absPath string, info fs.FileInfo) (*FileBlob, error) {
	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		return nil, fmt.Errorf("symlinks not supported: %s", absPath)
	case mode.IsDir():
		return nil, fmt.Errorf("is a directory: %s", absPath)
	case !mode.IsRegular():
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	if info.Size() > c.maxSize {
		return nil, fmt.Errorf("%s is %d bytes, limit %d: %w", absPath, info.Size(), c.maxSize, ErrTooLarge)
	}
	return &FileBlob{path: absPath, name: filepath.Base(absPath), size: info.Size()}, nil
}

// Collect resolves every path, expanding directories. The result keeps the
// order of paths; files from one directory are sorted by name.
func (c *Collector) Collect(paths []string) ([]feed.Blob, error) {
	var blobs []feed.Blob
	for _, p := range paths {
		absPath, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving absolute path: %w", err)
		}
		info, err := os.Lstat(absPath)
		if err != nil {
			return nil, fmt.Errorf("stat path: %w", err)
		}
		if !info.IsDir() {
			b, err := c.blob(absPath, info)
			if err != nil {
				return nil, err
			}
			blobs = append(blobs, b)
			continue
		}

		found, err := c.expand(absPath)
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, found...)
	}
	return blobs, nil
}

func (c *Collector) expand(dir string) ([]feed.Blob, error) {
	patterns, err := ParseIgnoreFile(filepath.Join(dir, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	ignore := NewIgnoreMatcher(append(slices.Clone(defaultIgnorePatterns), patterns...))

	// ReadDir returns entries sorted by name.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	var blobs []feed.Blob
	for _, entry := range entries {
		if !entry.Type().IsRegular() || ignore.Match(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		b, err := c.blob(filepath.Join(dir, entry.Name()), info)
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, b)
	}
	return blobs, nil
}
