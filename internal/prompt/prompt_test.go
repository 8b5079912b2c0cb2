package prompt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/colorprofile"

	"github.com/raphi011/promptgit/internal/config"
	"github.com/raphi011/promptgit/internal/status"
)

// plain renders snap without escape sequences.
func plain(t *testing.T, snap *status.Snapshot, s config.PromptConfig) string {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriterProfile(&buf, colorprofile.NoTTY, HostSettings{Prompt: s})
	if err := w.Write(snap); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return buf.String()
}

func TestRender(t *testing.T) {
	t.Parallel()

	base := status.NewBuilder("/r", "/r/.git").Branch("main")

	tests := []struct {
		name   string
		snap   *status.Snapshot
		modify func(*config.PromptConfig)
		want   string
	}{
		{
			name: "clean",
			snap: status.NewBuilder("/r", "/r/.git").Branch("main").Build(),
			want: " [main]",
		},
		{
			name: "index only",
			snap: status.NewBuilder("/r", "/r/.git").Branch("main").
				Index(status.Added, "a").
				Index(status.Added, "b").
				Index(status.Modified, "c").
				Build(),
			want: " [main +2 ~1]",
		},
		{
			name: "index and working",
			snap: status.NewBuilder("/r", "/r/.git").Branch("main").
				Index(status.Added, "a").
				Working(status.Modified, "b").
				Working(status.Deleted, "c").
				Build(),
			want: " [main +1 | ~1 -1]",
		},
		{
			name: "working only",
			snap: status.NewBuilder("/r", "/r/.git").Branch("dev").
				Working(status.Added, "x").
				Build(),
			want: " [dev +1]",
		},
		{
			name: "unmerged",
			snap: status.NewBuilder("/r", "/r/.git").Branch("main").
				Index(status.Unmerged, "a").
				Build(),
			want: " [main !1]",
		},
		{
			name: "show zero",
			snap: status.NewBuilder("/r", "/r/.git").Branch("main").
				Working(status.Modified, "b").
				Build(),
			modify: func(s *config.PromptConfig) { s.ShowStatusWhenZero = true },
			want:   " [main +0 ~1 -0]",
		},
		{
			name: "file status disabled",
			snap: status.NewBuilder("/r", "/r/.git").Branch("main").
				Index(status.Added, "a").
				Build(),
			modify: func(s *config.PromptConfig) { s.EnableFileStatus = false },
			want:   " [main]",
		},
		{
			name:   "prompt status disabled",
			snap:   base.Build(),
			modify: func(s *config.PromptConfig) { s.EnablePromptStatus = false },
			want:   "",
		},
		{
			name: "custom texts",
			snap: status.NewBuilder("/r", "/r/.git").Branch("main").
				Index(status.Added, "a").
				Working(status.Added, "b").
				Build(),
			modify: func(s *config.PromptConfig) {
				s.BeforeText = "("
				s.BeforeIndexText = " i:"
				s.DelimText = " w:"
				s.AfterText = ")"
			},
			want: "(main i: +1 w: +1)",
		},
		{
			name: "nil snapshot",
			snap: nil,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := config.DefaultPrompt()
			if tt.modify != nil {
				tt.modify(&s)
			}
			if got := plain(t, tt.snap, s); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBranchColor(t *testing.T) {
	t.Parallel()

	s := config.DefaultPrompt()
	tests := []struct {
		ahead, behind int
		want          string
	}{
		{0, 0, s.BranchColor},
		{2, 0, s.BranchAheadColor},
		{0, 3, s.BranchBehindColor},
		{1, 1, s.BranchBehindAndAheadColor},
	}

	for _, tt := range tests {
		snap := status.NewBuilder("/r", "").Branch("main").Divergence(tt.ahead, tt.behind).Build()
		if got := branchColor(snap, s); got != tt.want {
			t.Errorf("branchColor(ahead=%d, behind=%d) = %q, want %q", tt.ahead, tt.behind, got, tt.want)
		}
	}
}

func TestWriter_Colors(t *testing.T) {
	t.Parallel()

	snap := status.NewBuilder("/r", "").Branch("main").Build()

	var buf bytes.Buffer
	w := NewWriterProfile(&buf, colorprofile.ANSI256, DefaultSettings{})
	if err := w.Write(snap); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("expected escape sequences, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "main") {
		t.Errorf("expected branch in output, got %q", buf.String())
	}
}

func TestWriter_InvalidColorIsIgnored(t *testing.T) {
	t.Parallel()

	s := config.DefaultPrompt()
	s.BranchColor = "not-a-color"
	snap := status.NewBuilder("/r", "").Branch("main").Build()
	if got := plain(t, snap, s); got != " [main]" {
		t.Errorf("got %q", got)
	}
}

func TestSourceFor(t *testing.T) {
	t.Parallel()

	if _, ok := SourceFor(nil).(DefaultSettings); !ok {
		t.Error("nil config should use DefaultSettings")
	}

	cfg := config.Default()
	if _, ok := SourceFor(&cfg).(DefaultSettings); !ok {
		t.Error("config without [prompt] table should use DefaultSettings")
	}

	cfg.PromptFromFile = true
	cfg.Prompt.BeforeText = "<"
	src := SourceFor(&cfg)
	if _, ok := src.(HostSettings); !ok {
		t.Fatalf("SourceFor() = %T, want HostSettings", src)
	}
	if got := src.Settings().BeforeText; got != "<" {
		t.Errorf("BeforeText = %q, want %q", got, "<")
	}
}
