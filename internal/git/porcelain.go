package git

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/raphi011/promptgit/internal/status"
)

// CLIComputer computes status by running `git status --porcelain=v2`.
// It honors the user's git configuration (fsmonitor, untracked cache,
// core.excludesFile) the same way an interactive `git status` does.
type CLIComputer struct{}

// Compute implements status.Computer.
func (CLIComputer) Compute(ctx context.Context, root string) (*status.Snapshot, error) {
	r, err := FindRoot(root)
	if err != nil {
		return nil, err
	}

	out, err := outputGit(ctx, r.Path,
		"--no-optional-locks",
		"status", "--porcelain=v2", "--branch", "-z", "--untracked-files=normal")
	if err != nil {
		return nil, fmt.Errorf("git status in %s: %w", r.Path, err)
	}

	return ParsePorcelainV2(r, out)
}

// ParsePorcelainV2 turns NUL separated `git status --porcelain=v2 --branch -z`
// output into a snapshot.
func ParsePorcelainV2(r Root, out []byte) (*status.Snapshot, error) {
	b := status.NewBuilder(r.Path, r.GitDir)

	var oid, head string
	records := bytes.Split(out, []byte{0})
	for i := 0; i < len(records); i++ {
		rec := string(records[i])
		if rec == "" {
			continue
		}

		switch rec[0] {
		case '#':
			key, value, _ := strings.Cut(strings.TrimPrefix(rec, "# "), " ")
			switch key {
			case "branch.oid":
				oid = value
			case "branch.head":
				head = value
			case "branch.ab":
				ahead, behind, err := parseAheadBehind(value)
				if err != nil {
					return nil, err
				}
				b.Divergence(ahead, behind)
			}

		case '1':
			fields := strings.SplitN(rec, " ", 9)
			if len(fields) != 9 {
				return nil, fmt.Errorf("malformed status entry %q", rec)
			}
			addXY(b, fields[1], fields[8])

		case '2':
			fields := strings.SplitN(rec, " ", 10)
			if len(fields) != 10 {
				return nil, fmt.Errorf("malformed rename entry %q", rec)
			}
			addXY(b, fields[1], fields[9])
			i++ // the original path follows as its own record

		case 'u':
			fields := strings.SplitN(rec, " ", 11)
			if len(fields) != 11 {
				return nil, fmt.Errorf("malformed unmerged entry %q", rec)
			}
			b.Index(status.Unmerged, fields[10])
			b.Working(status.Unmerged, fields[10])

		case '?':
			b.Untracked(strings.TrimPrefix(rec, "? "))

		case '!':
			// ignored files never show in the prompt
		default:
			return nil, fmt.Errorf("unknown status entry %q", rec)
		}
	}

	b.Branch(branchLabel(head, oid))
	return b.Build(), nil
}

// branchLabel renders a detached HEAD as "(abc1234...)".
func branchLabel(head, oid string) string {
	if head != "(detached)" {
		return head
	}
	if len(oid) >= 7 {
		return "(" + oid[:7] + "...)"
	}
	return head
}

func parseAheadBehind(value string) (int, int, error) {
	a, bh, ok := strings.Cut(value, " ")
	if !ok {
		return 0, 0, fmt.Errorf("malformed branch.ab %q", value)
	}
	ahead, err := strconv.Atoi(strings.TrimPrefix(a, "+"))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed ahead count %q: %w", a, err)
	}
	behind, err := strconv.Atoi(strings.TrimPrefix(bh, "-"))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed behind count %q: %w", bh, err)
	}
	return ahead, behind, nil
}

func addXY(b *status.Builder, xy, path string) {
	if len(xy) != 2 {
		return
	}
	if g, ok := groupOf(xy[0]); ok {
		b.Index(g, path)
	}
	if g, ok := groupOf(xy[1]); ok {
		b.Working(g, path)
	}
}

// groupOf maps a porcelain status letter to a path group.
func groupOf(code byte) (status.Group, bool) {
	switch code {
	case 'A', 'C':
		return status.Added, true
	case 'M', 'T', 'R':
		return status.Modified, true
	case 'D':
		return status.Deleted, true
	case 'U':
		return status.Unmerged, true
	}
	return 0, false
}
