package fs

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestCollector_Resolve(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beach.jpg")
	writeFile(t, path, "jpeg bytes")

	b, err := NewCollector(0).Resolve(path)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if b.Name() != "beach.jpg" {
		t.Errorf("Name() = %q, want %q", b.Name(), "beach.jpg")
	}
	if b.Size() != int64(len("jpeg bytes")) {
		t.Errorf("Size() = %d", b.Size())
	}

	rc, err := b.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading blob: %v", err)
	}
	if string(data) != "jpeg bytes" {
		t.Errorf("content = %q", data)
	}
}

func TestCollector_Resolve_Rejects(t *testing.T) {
	dir := t.TempDir()
	big := filepath.Join(dir, "big.bin")
	writeFile(t, big, "0123456789")
	target := filepath.Join(dir, "target.txt")
	writeFile(t, target, "x")
	link := filepath.Join(dir, "link.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	c := NewCollector(5)

	if _, err := c.Resolve(big); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Resolve(big) error = %v, want ErrTooLarge", err)
	}
	if _, err := c.Resolve(link); err == nil {
		t.Error("Resolve(symlink) expected error")
	}
	if _, err := c.Resolve(dir); err == nil {
		t.Error("Resolve(dir) expected error")
	}
	if _, err := c.Resolve(filepath.Join(dir, "missing")); err == nil {
		t.Error("Resolve(missing) expected error")
	}
}

func TestCollector_Collect(t *testing.T) {
	root := t.TempDir()
	album := filepath.Join(root, "album")
	writeFile(t, filepath.Join(album, "b.jpg"), "b")
	writeFile(t, filepath.Join(album, "a.jpg"), "a")
	writeFile(t, filepath.Join(album, "draft.psd"), "psd")
	writeFile(t, filepath.Join(album, ".DS_Store"), "junk")
	writeFile(t, filepath.Join(album, IgnoreFileName), "*.psd\n")
	writeFile(t, filepath.Join(album, "nested", "c.jpg"), "c")
	single := filepath.Join(root, "caption.txt")
	writeFile(t, single, "hello")

	blobs, err := NewCollector(0).Collect([]string{single, album})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	var names []string
	for _, b := range blobs {
		names = append(names, b.Name())
	}
	want := []string{"caption.txt", "a.jpg", "b.jpg"}
	if len(names) != len(want) {
		t.Fatalf("Collect() names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestCollector_Collect_OversizedFileInDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "huge.bin"), "0123456789")

	_, err := NewCollector(4).Collect([]string{dir})
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("Collect() error = %v, want ErrTooLarge", err)
	}
}
