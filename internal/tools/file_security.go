package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Workspace confines file tools to a project root.
type Workspace struct {
	root string
}

// NewWorkspace resolves root (symlinks included) and returns a Workspace for it.
// An empty root means the current working directory.
func NewWorkspace(root string) (*Workspace, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid workspace root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	return &Workspace{root: resolved}, nil
}

// Root returns the resolved project root.
func (w *Workspace) Root() string {
	return w.root
}

// Resolve turns a tool-supplied path into an absolute path inside the root.
// Relative paths are taken relative to the root. Each existing component is
// resolved so symlinks cannot point outside.
func (w *Workspace) Resolve(path string) (string, error) {
	if path == "" {
		path = "."
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(w.root, path)
	}
	abs = filepath.Clean(abs)

	resolved, err := resolveExistingPath(abs)
	if err != nil {
		return "", fmt.Errorf("access denied: cannot resolve path %q: %w", path, err)
	}
	if !isWithinRoot(resolved, w.root) {
		return "", fmt.Errorf("access denied: path %q resolves outside the project directory", path)
	}
	return resolved, nil
}

// ResolveForWrite is like Resolve but additionally refuses to write through
// an existing symlink.
func (w *Workspace) ResolveForWrite(path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(w.root, path)
	}
	if info, err := os.Lstat(filepath.Clean(abs)); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", fmt.Errorf("access denied: refusing to write through symlink %q", path)
	}
	return w.Resolve(path)
}

// Rel returns path relative to the root for display, or path itself.
func (w *Workspace) Rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

// resolveExistingPath resolves the deepest existing ancestor via EvalSymlinks,
// then appends the non-existent tail.
func resolveExistingPath(path string) (string, error) {
	current := path
	var tailParts []string

	for {
		_, err := os.Lstat(current)
		if err == nil {
			resolved, err := filepath.EvalSymlinks(current)
			if err != nil {
				return "", fmt.Errorf("cannot resolve path %q: %w", current, err)
			}
			for i := len(tailParts) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tailParts[i])
			}
			return filepath.Clean(resolved), nil
		}

		if !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return filepath.Clean(path), nil
		}
		tailParts = append(tailParts, filepath.Base(current))
		current = parent
	}
}

// isWithinRoot checks if path is within or equal to root.
func isWithinRoot(path, root string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// checkOpened verifies that an opened file still resolves inside the root.
func (w *Workspace) checkOpened(f *os.File, path string) (*os.File, error) {
	realPath, err := filepath.EvalSymlinks(path)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("post-open path resolution failed: %w", err)
	}
	if !isWithinRoot(realPath, w.root) {
		f.Close()
		return nil, fmt.Errorf("access denied: file %q resolved outside project after open", path)
	}
	return f, nil
}
