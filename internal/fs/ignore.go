package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-directory file listing patterns to skip when a
// directory is attached.
const IgnoreFileName = ".feedignore"

// defaultIgnorePatterns are always applied when a directory is expanded.
var defaultIgnorePatterns = []string{IgnoreFileName, ".DS_Store", "Thumbs.db", ".*.swp", "*~"}

// ignorePattern is one glob. Globs containing '/' are matched against the
// relative path, all others against the base name.
type ignorePattern struct {
	pattern   string
	matchPath bool
}

func (p ignorePattern) match(slashPath, base string) bool {
	subject := base
	if p.matchPath {
		subject = slashPath
	}
	ok, err := filepath.Match(p.pattern, subject)
	return err == nil && ok
}

// IgnoreMatcher decides which files of an attached directory are skipped.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher parses raw pattern lines. Blank lines and lines starting
// with '#' are skipped. Malformed globs never match.
func NewIgnoreMatcher(lines []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m.patterns = append(m.patterns, ignorePattern{pattern: line, matchPath: strings.Contains(line, "/")})
	}
	return m
}

// Match reports whether relativePath, relative to the attached directory,
// should be left out.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	slashPath := filepath.ToSlash(relativePath)
	base := filepath.Base(relativePath)
	for _, p := range m.patterns {
		if p.match(slashPath, base) {
			return true
		}
	}
	return false
}

// ParseIgnoreFile returns the raw lines of an ignore file, or nil when the
// file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return lines, nil
}
