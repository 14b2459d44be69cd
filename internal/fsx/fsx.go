// Package fsx provides the filesystem primitives shared by collections:
// root-confined path resolution, atomic writes, and existence checks.
package fsx

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// Resolve joins rel onto root and rejects any result that escapes it
// (directory traversal). An empty rel addresses root itself. root must
// be an absolute, cleaned path.
func Resolve(root, rel string) (string, error) {
	if rel == "" {
		return root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("fsx: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("fsx: resolve path: %w", err)
	}
	// Ensure the resolved path is still under root.
	if !strings.HasPrefix(abs, root+string(os.PathSeparator)) && abs != root {
		return "", fmt.Errorf("fsx: path escapes collection root: %s", rel)
	}
	return abs, nil
}

// WriteFile atomically replaces the file at path: the bytes land in a
// temp file that is synced and renamed over the target, so a concurrent
// reader never observes a partial write. Parent directories are created
// as needed.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("fsx: mkdir: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("fsx: write %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path names an existing file or directory.
func Exists(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("fsx: stat %s: %w", path, err)
	}
	return true, nil
}
