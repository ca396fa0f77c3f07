// Package security confines file access to the configured document directory.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator keeps MCP file access inside one directory tree
type PathValidator struct {
	root string
}

// NewPathValidator creates a validator rooted at dir. dir does not need to exist yet.
func NewPathValidator(dir string) (*PathValidator, error) {
	if dir == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}
	return &PathValidator{root: filepath.Clean(abs)}, nil
}

// ConfiguredDirectory returns the absolute root directory
func (v *PathValidator) ConfiguredDirectory() string {
	return v.root
}

// Resolve turns path into a cleaned absolute path inside the root. Relative
// paths are taken relative to the root, not the working directory.
func (v *PathValidator) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.root, path)
	}
	abs := filepath.Clean(path)

	if err := v.ValidatePath(abs); err != nil {
		return "", err
	}
	return abs, nil
}

// ValidatePath fails unless path, after resolving symlinks, lies inside the root
func (v *PathValidator) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	// nothing can be inside a root that does not exist yet
	if _, err := os.Stat(v.root); os.IsNotExist(err) {
		return nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	abs = filepath.Clean(abs)

	if !within(abs, v.root) {
		return fmt.Errorf("path is outside configured directory: %s", path)
	}

	// a symlink inside the root may still point outside it
	realRoot := v.root
	if r, err := filepath.EvalSymlinks(v.root); err == nil {
		realRoot = r
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil && !within(real, realRoot) && !within(real, v.root) {
		return fmt.Errorf("path resolves outside configured directory: %s", path)
	}
	return nil
}

// ValidateDirectory is ValidatePath plus a check that an existing path is a directory
func (v *PathValidator) ValidateDirectory(dir string) error {
	if err := v.ValidatePath(dir); err != nil {
		return err
	}
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", dir)
	}
	return nil
}

func within(path, root string) bool {
	if path == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
