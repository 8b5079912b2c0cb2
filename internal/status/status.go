// Package status defines the immutable repository status snapshot served by
// the daemon and the interface of the components that compute it.
package status

import (
	"context"
	"slices"
)

// Changes groups the paths of one side of a status (index or working tree).
// Each list is sorted and free of duplicates.
type Changes struct {
	Added    []string `json:"Added" yaml:"Added"`
	Modified []string `json:"Modified" yaml:"Modified"`
	Deleted  []string `json:"Deleted" yaml:"Deleted"`
	Unmerged []string `json:"Unmerged" yaml:"Unmerged"`
}

// HasAny reports whether any path is present in any group.
func (c Changes) HasAny() bool {
	return len(c.Added)+len(c.Modified)+len(c.Deleted)+len(c.Unmerged) > 0
}

// Equal reports whether both change sets hold the same paths.
func (c Changes) Equal(o Changes) bool {
	return slices.Equal(c.Added, o.Added) &&
		slices.Equal(c.Modified, o.Modified) &&
		slices.Equal(c.Deleted, o.Deleted) &&
		slices.Equal(c.Unmerged, o.Unmerged)
}

// Snapshot is the computed status of one repository at one point in time.
// It is never modified after construction; callers share pointers freely.
type Snapshot struct {
	Root      string  `json:"Root,omitempty" yaml:"Root,omitempty"`
	GitDir    string  `json:"GitDir" yaml:"GitDir"`
	Branch    string  `json:"Branch" yaml:"Branch"`
	AheadBy   int     `json:"AheadBy" yaml:"AheadBy"`
	BehindBy  int     `json:"BehindBy" yaml:"BehindBy"`
	Index     Changes `json:"Index" yaml:"Index"`
	Working   Changes `json:"Working" yaml:"Working"`
	Untracked bool    `json:"Untracked,omitempty" yaml:"Untracked,omitempty"`
}

// Empty returns the explicit "nothing known yet" snapshot for a repository.
func Empty(root, gitDir string) *Snapshot {
	var none changeSet
	return &Snapshot{Root: root, GitDir: gitDir, Index: none.build(), Working: none.build()}
}

// Equal reports whether two snapshots describe the same status.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.Root == o.Root &&
		s.GitDir == o.GitDir &&
		s.Branch == o.Branch &&
		s.AheadBy == o.AheadBy &&
		s.BehindBy == o.BehindBy &&
		s.Untracked == o.Untracked &&
		s.Index.Equal(o.Index) &&
		s.Working.Equal(o.Working)
}

// Computer produces a snapshot for a repository root. Implementations may be
// slow and must be safe to call concurrently for different roots.
type Computer interface {
	Compute(ctx context.Context, root string) (*Snapshot, error)
}

// ComputerFunc adapts a function to the Computer interface.
type ComputerFunc func(ctx context.Context, root string) (*Snapshot, error)

// Compute calls f.
func (f ComputerFunc) Compute(ctx context.Context, root string) (*Snapshot, error) {
	return f(ctx, root)
}
