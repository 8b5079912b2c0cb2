package git

import (
	"fmt"

	"github.com/raphi011/promptgit/internal/status"
)

// Status backends selectable in configuration.
const (
	BackendCLI   = "git"
	BackendGoGit = "go-git"
)

// NewComputer returns the status computer for backend. The CLI backend
// requires git in PATH.
func NewComputer(backend string) (status.Computer, error) {
	switch backend {
	case BackendCLI, "":
		if err := CheckGit(); err != nil {
			return nil, err
		}
		return CLIComputer{}, nil
	case BackendGoGit:
		return GoGitComputer{}, nil
	default:
		return nil, fmt.Errorf("unknown status backend %q: must be %q or %q", backend, BackendCLI, BackendGoGit)
	}
}
