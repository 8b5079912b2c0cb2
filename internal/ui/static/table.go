// Package static provides non-interactive terminal output components.
//
// This package contains components for rendering formatted output
// that does not require user interaction, such as tables.
package static

import (
	"fmt"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/raphi011/promptgit/internal/status"
)

// RenderTable creates a formatted table with proper column alignment.
// Headers and rows are rendered using lipgloss/table which automatically
// calculates column widths based on content. No borders are rendered.
func RenderTable(headers []string, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	var output strings.Builder

	t := table.New().
		Headers(headers...).
		Rows(rows...).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		BorderRow(false).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).PaddingRight(2)
			}
			return lipgloss.NewStyle().PaddingRight(2)
		})

	output.WriteString(t.String())
	output.WriteString("\n")

	return output.String()
}

// SnapshotHeaders are the column headers matching SnapshotRow.
var SnapshotHeaders = []string{"ROOT", "BRANCH", "AHEAD", "BEHIND", "INDEX", "WORKING"}

// SnapshotRow formats one repository status as table cells.
func SnapshotRow(s *status.Snapshot) []string {
	branch := s.Branch
	if branch == "" {
		branch = "-"
	}
	return []string{
		s.Root,
		branch,
		strconv.Itoa(s.AheadBy),
		strconv.Itoa(s.BehindBy),
		FormatChanges(s.Index),
		FormatChanges(s.Working),
	}
}

// FormatChanges summarizes a change set as "+added ~modified -deleted",
// with "!unmerged" appended when conflicts exist. A clean set is "-".
func FormatChanges(c status.Changes) string {
	if !c.HasAny() {
		return "-"
	}
	s := fmt.Sprintf("+%d ~%d -%d", len(c.Added), len(c.Modified), len(c.Deleted))
	if len(c.Unmerged) > 0 {
		s += fmt.Sprintf(" !%d", len(c.Unmerged))
	}
	return s
}
