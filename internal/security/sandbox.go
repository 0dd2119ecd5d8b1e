package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SandboxedFs confines all file access to a single root directory. Paths are
// always given relative to the root; absolute paths and any path that
// resolves outside the root (via .. or symlinks) are rejected.
type SandboxedFs struct {
	root string
}

// NewSandboxedFs creates the root directory if needed and returns a sandbox
// rooted at its canonical location.
func NewSandboxedFs(root string) (*SandboxedFs, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create sandbox root: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}
	return &SandboxedFs{root: canonical}, nil
}

// Root returns the canonical sandbox root.
func (s *SandboxedFs) Root() string {
	return s.root
}

// Resolve turns a sandbox-relative path into an absolute one, verifying
// containment. For paths that do not exist yet, the nearest existing parent
// is resolved so a symlink cannot smuggle a new file outside the root.
func (s *SandboxedFs) Resolve(rel string) (string, error) {
	if rel == "" {
		return s.root, nil
	}
	if strings.ContainsRune(rel, 0) {
		return "", fmt.Errorf("%w: path contains null byte", ErrSandboxViolation)
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: absolute path %q", ErrSandboxViolation, rel)
	}

	joined := filepath.Join(s.root, rel)
	resolved, err := resolveSymlinks(joined)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", rel, err)
	}
	if !isSubpath(resolved, s.root) {
		return "", fmt.Errorf("%w: %q", ErrSandboxViolation, rel)
	}
	return resolved, nil
}

// ReadFile reads a sandboxed file.
func (s *SandboxedFs) ReadFile(rel string) ([]byte, error) {
	path, err := s.Resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// WriteFile writes a sandboxed file, creating parent directories as needed.
func (s *SandboxedFs) WriteFile(rel string, data []byte) error {
	path, err := s.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dirs: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ListDir lists the entries of a sandboxed directory.
func (s *SandboxedFs) ListDir(rel string) ([]os.DirEntry, error) {
	path, err := s.Resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.ReadDir(path)
}

// Stat stats a sandboxed path.
func (s *SandboxedFs) Stat(rel string) (os.FileInfo, error) {
	path, err := s.Resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.Stat(path)
}

// resolveSymlinks resolves symlinks, falling back to resolving the nearest
// existing parent for paths that do not exist yet.
func resolveSymlinks(absPath string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absPath)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}
	parent := filepath.Dir(absPath)
	if parent == absPath {
		return absPath, nil
	}
	resolvedParent, err := resolveSymlinks(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(absPath)), nil
}

// isSubpath reports whether child equals parent or lives under it.
func isSubpath(child, parent string) bool {
	if child == parent {
		return true
	}
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}
