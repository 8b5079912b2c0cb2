package git

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotRepository is returned when no enclosing repository exists.
var ErrNotRepository = errors.New("not a git repository")

// Root identifies a repository: its top-level directory and the metadata
// directory status is read from.
type Root struct {
	Path   string
	GitDir string
}

// NormalizePath returns the absolute, cleaned, symlink-resolved form of path.
// Paths that do not exist (anymore) are returned absolute and cleaned.
func NormalizePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return filepath.Clean(abs), nil
}

// FindRoot walks from path towards the filesystem root and returns the
// nearest directory holding a .git directory or .git file.
func FindRoot(path string) (Root, error) {
	dir, err := NormalizePath(path)
	if err != nil {
		return Root{}, err
	}

	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	for {
		if gitDir, ok := gitDirOf(dir); ok {
			return Root{Path: dir, GitDir: gitDir}, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Root{}, fmt.Errorf("%s: %w", path, ErrNotRepository)
		}
		dir = parent
	}
}

// gitDirOf returns the metadata directory of dir if dir is a repository
// root. .git can be a directory (regular repo) or a file (worktree,
// submodule) pointing elsewhere.
func gitDirOf(dir string) (string, bool) {
	dotGit := filepath.Join(dir, ".git")
	info, err := os.Stat(dotGit)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		return dotGit, true
	}
	if !info.Mode().IsRegular() {
		return "", false
	}
	gitDir, err := readGitFile(dir, dotGit)
	if err != nil {
		return "", false
	}
	return gitDir, true
}

// readGitFile parses "gitdir: <path>" from a .git file.
// Only the first line matters; relative paths are relative to dir.
func readGitFile(dir, gitFile string) (string, error) {
	content, err := os.ReadFile(gitFile)
	if err != nil {
		return "", fmt.Errorf("read .git file: %w", err)
	}

	line, _, _ := strings.Cut(string(content), "\n")
	line = strings.TrimSpace(line)
	gitDir, ok := strings.CutPrefix(line, "gitdir: ")
	if !ok || gitDir == "" {
		return "", fmt.Errorf("invalid .git file format in %s: expected 'gitdir: <path>'", dir)
	}

	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(dir, gitDir)
	}
	return filepath.Clean(gitDir), nil
}
