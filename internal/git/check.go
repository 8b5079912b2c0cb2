package git

import (
	"errors"
	"os/exec"
)

// ErrGitNotFound indicates the git backend was chosen but git is not in PATH.
var ErrGitNotFound = errors.New(`git not found in PATH: install git or set status.backend = "go-git"`)

// CheckGit verifies that git is available in PATH
func CheckGit() error {
	if _, err := exec.LookPath("git"); err != nil {
		return ErrGitNotFound
	}
	return nil
}
