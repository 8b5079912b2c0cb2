package prompt

import (
	"fmt"
	"io"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/colorprofile"

	"github.com/raphi011/promptgit/internal/config"
	"github.com/raphi011/promptgit/internal/status"
)

// Writer prints prompt fragments, downsampling colors to what the output
// supports.
type Writer struct {
	out      io.Writer
	settings config.PromptConfig
}

// NewWriter returns a Writer on out. The color profile is detected from out
// and environ, so NO_COLOR and CLICOLOR_FORCE are honored.
func NewWriter(out io.Writer, environ []string, src SettingsSource) *Writer {
	return NewWriterProfile(out, colorprofile.Detect(out, environ), src)
}

// NewWriterProfile returns a Writer using a fixed color profile.
func NewWriterProfile(out io.Writer, profile colorprofile.Profile, src SettingsSource) *Writer {
	if src == nil {
		src = DefaultSettings{}
	}
	return &Writer{
		out:      &colorprofile.Writer{Forward: out, Profile: profile},
		settings: src.Settings(),
	}
}

// Write prints the fragment for snap. A nil snapshot prints nothing.
func (w *Writer) Write(snap *status.Snapshot) error {
	fragment := Render(snap, w.settings)
	if fragment == "" {
		return nil
	}
	_, err := io.WriteString(w.out, fragment)
	return err
}

// Render returns the styled fragment for snap:
//
//	<before><branch><before-index> +a ~m -d !u<delim> +a ~m -d !u<after>
//
// The index part is printed only when the index has changes, the working
// part only when the working tree has changes.
func Render(snap *status.Snapshot, s config.PromptConfig) string {
	if snap == nil || !s.EnablePromptStatus {
		return ""
	}

	var b strings.Builder
	paint := func(text, color string) {
		if text == "" {
			return
		}
		b.WriteString(style(color).Render(text))
	}

	paint(s.BeforeText, s.BeforeColor)
	paint(snap.Branch, branchColor(snap, s))

	if s.EnableFileStatus && snap.Index.HasAny() {
		paint(s.BeforeIndexText, s.BeforeIndexColor)
		for _, part := range counts(snap.Index, s.ShowStatusWhenZero) {
			paint(part, s.IndexColor)
		}
		if snap.Working.HasAny() {
			paint(s.DelimText, s.DelimColor)
		}
	}

	if s.EnableFileStatus && snap.Working.HasAny() {
		for _, part := range counts(snap.Working, s.ShowStatusWhenZero) {
			paint(part, s.WorkingColor)
		}
	}

	paint(s.AfterText, s.AfterColor)
	return b.String()
}

// counts formats the group sizes of c. Unmerged is shown only when present.
func counts(c status.Changes, showZero bool) []string {
	var parts []string
	add := func(symbol string, n int, always bool) {
		if n > 0 || always {
			parts = append(parts, fmt.Sprintf(" %s%d", symbol, n))
		}
	}
	add("+", len(c.Added), showZero)
	add("~", len(c.Modified), showZero)
	add("-", len(c.Deleted), showZero)
	add("!", len(c.Unmerged), false)
	return parts
}

func branchColor(snap *status.Snapshot, s config.PromptConfig) string {
	switch {
	case snap.BehindBy > 0 && snap.AheadBy > 0:
		return s.BranchBehindAndAheadColor
	case snap.BehindBy > 0:
		return s.BranchBehindColor
	case snap.AheadBy > 0:
		return s.BranchAheadColor
	default:
		return s.BranchColor
	}
}

func style(color string) lipgloss.Style {
	st := lipgloss.NewStyle()
	if color == "" || config.ValidateColor(color) != nil {
		return st
	}
	return st.Foreground(lipgloss.Color(color))
}
