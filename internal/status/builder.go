package status

import (
	"slices"
)

// Builder accumulates paths while a computer walks a repository and
// produces a Snapshot with sorted, de-duplicated groups.
type Builder struct {
	snap    Snapshot
	index   changeSet
	working changeSet
}

type changeSet struct {
	added, modified, deleted, unmerged []string
}

func (c *changeSet) build() Changes {
	return Changes{
		Added:    normalize(c.added),
		Modified: normalize(c.modified),
		Deleted:  normalize(c.deleted),
		Unmerged: normalize(c.unmerged),
	}
}

// Group selects one of the path groups of a change set.
type Group int

// Path groups.
const (
	Added Group = iota
	Modified
	Deleted
	Unmerged
)

// NewBuilder starts a snapshot for root whose metadata lives in gitDir.
func NewBuilder(root, gitDir string) *Builder {
	return &Builder{snap: Snapshot{Root: root, GitDir: gitDir}}
}

// Branch sets the branch name.
func (b *Builder) Branch(name string) *Builder {
	b.snap.Branch = name
	return b
}

// Divergence sets the ahead/behind counts. Negative values are clamped.
func (b *Builder) Divergence(ahead, behind int) *Builder {
	b.snap.AheadBy = max(ahead, 0)
	b.snap.BehindBy = max(behind, 0)
	return b
}

// Index records a staged path.
func (b *Builder) Index(g Group, path string) *Builder {
	b.index.add(g, path)
	return b
}

// Working records an unstaged path.
func (b *Builder) Working(g Group, path string) *Builder {
	b.working.add(g, path)
	return b
}

// Untracked records an untracked path. Untracked files count as working
// tree additions.
func (b *Builder) Untracked(path string) *Builder {
	b.snap.Untracked = true
	b.working.add(Added, path)
	return b
}

// Build returns the finished snapshot.
func (b *Builder) Build() *Snapshot {
	s := b.snap
	s.Index = b.index.build()
	s.Working = b.working.build()
	return &s
}

func (c *changeSet) add(g Group, path string) {
	switch g {
	case Added:
		c.added = append(c.added, path)
	case Modified:
		c.modified = append(c.modified, path)
	case Deleted:
		c.deleted = append(c.deleted, path)
	case Unmerged:
		c.unmerged = append(c.unmerged, path)
	}
}

// normalize sorts and de-duplicates paths. A nil input yields an empty,
// non-nil slice so serialized snapshots always carry arrays.
func normalize(paths []string) []string {
	if len(paths) == 0 {
		return []string{}
	}
	out := slices.Clone(paths)
	slices.Sort(out)
	return slices.Compact(out)
}
