package git

import (
	"context"
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/raphi011/promptgit/internal/status"
)

// GoGitComputer computes status in-process with go-git. It needs no git
// binary but ignores fsmonitor and other CLI-only configuration.
type GoGitComputer struct{}

// Compute implements status.Computer.
func (GoGitComputer) Compute(ctx context.Context, root string) (*status.Snapshot, error) {
	r, err := FindRoot(root)
	if err != nil {
		return nil, err
	}

	repo, err := gogit.PlainOpenWithOptions(r.Path, &gogit.PlainOpenOptions{
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", r.Path, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree %s: %w", r.Path, err)
	}

	st, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("status %s: %w", r.Path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := status.NewBuilder(r.Path, r.GitDir)
	for path, fs := range st {
		if fs.Staging == gogit.Untracked {
			b.Untracked(path)
			continue
		}
		if g, ok := goGitGroup(fs.Staging); ok {
			b.Index(g, path)
		}
		if g, ok := goGitGroup(fs.Worktree); ok {
			b.Working(g, path)
		}
	}

	branch, head, err := headInfo(repo)
	if err != nil {
		return nil, err
	}
	b.Branch(branch)

	if head != nil && head.Name().IsBranch() {
		ahead, behind, err := divergence(ctx, repo, head)
		if err != nil {
			return nil, fmt.Errorf("ahead/behind for %s: %w", branch, err)
		}
		b.Divergence(ahead, behind)
	}

	return b.Build(), nil
}

func goGitGroup(code gogit.StatusCode) (status.Group, bool) {
	switch code {
	case gogit.Added, gogit.Copied:
		return status.Added, true
	case gogit.Modified, gogit.Renamed:
		return status.Modified, true
	case gogit.Deleted:
		return status.Deleted, true
	case gogit.UpdatedButUnmerged:
		return status.Unmerged, true
	}
	return 0, false
}

// headInfo returns the branch label and the resolved HEAD reference. An
// unborn branch yields its name and a nil reference.
func headInfo(repo *gogit.Repository) (string, *plumbing.Reference, error) {
	head, err := repo.Head()
	if err == nil {
		if head.Name().IsBranch() {
			return head.Name().Short(), head, nil
		}
		return "(" + head.Hash().String()[:7] + "...)", head, nil
	}
	if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	sym, err := repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", nil, fmt.Errorf("read HEAD: %w", err)
	}
	return sym.Target().Short(), nil, nil
}

// divergence counts commits reachable only from HEAD (ahead) and only from
// its configured upstream (behind). Branches without upstream report 0/0.
func divergence(ctx context.Context, repo *gogit.Repository, head *plumbing.Reference) (int, int, error) {
	cfg, err := repo.Config()
	if err != nil {
		return 0, 0, err
	}
	bc, ok := cfg.Branches[head.Name().Short()]
	if !ok || bc.Remote == "" || bc.Merge == "" {
		return 0, 0, nil
	}

	upstreamName := plumbing.NewRemoteReferenceName(bc.Remote, bc.Merge.Short())
	if bc.Remote == "." {
		upstreamName = bc.Merge
	}
	upstream, err := repo.Reference(upstreamName, true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	if upstream.Hash() == head.Hash() {
		return 0, 0, nil
	}

	local, err := ancestors(ctx, repo, head.Hash())
	if err != nil {
		return 0, 0, err
	}
	remote, err := ancestors(ctx, repo, upstream.Hash())
	if err != nil {
		return 0, 0, err
	}

	var ahead, behind int
	for h := range local {
		if _, ok := remote[h]; !ok {
			ahead++
		}
	}
	for h := range remote {
		if _, ok := local[h]; !ok {
			behind++
		}
	}
	return ahead, behind, nil
}

func ancestors(ctx context.Context, repo *gogit.Repository, from plumbing.Hash) (map[plumbing.Hash]struct{}, error) {
	iter, err := repo.Log(&gogit.LogOptions{From: from})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	seen := make(map[plumbing.Hash]struct{})
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		seen[c.Hash] = struct{}{}
		return nil
	})
	return seen, err
}
