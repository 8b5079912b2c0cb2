package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"
)

func TestPrintf(t *testing.T) {
	t.Parallel()

	t.Run("writes formatted output", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		l := New(&buf, false, false)
		l.Printf("hello %s %d", "world", 42)
		if got := buf.String(); got != "hello world 42" {
			t.Errorf("Printf output = %q, want %q", got, "hello world 42")
		}
	})

	t.Run("suppressed when quiet", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		l := New(&buf, false, true)
		l.Printf("should not appear")
		if buf.Len() != 0 {
			t.Errorf("Printf wrote %q when quiet", buf.String())
		}
	})
}

func TestPrintln(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(&buf, false, false)
	l.Println("hello", "world")
	if got := buf.String(); got != "hello world\n" {
		t.Errorf("Println output = %q, want %q", got, "hello world\n")
	}
}

func TestCommand(t *testing.T) {
	t.Parallel()

	t.Run("verbose with dir", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		l := New(&buf, true, false)
		done := l.Command("/tmp", "git", "status")
		done(100 * time.Millisecond)
		got := buf.String()
		if !strings.Contains(got, "[/tmp] $ git status") {
			t.Errorf("Command output = %q, want to contain %q", got, "[/tmp] $ git status")
		}
		if !strings.Contains(got, "100ms") {
			t.Errorf("Command output = %q, want to contain duration", got)
		}
	})

	t.Run("verbose without dir", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		l := New(&buf, true, false)
		done := l.Command("", "echo", "hi")
		done(50 * time.Millisecond)
		if got := buf.String(); !strings.HasPrefix(got, "$ echo hi") {
			t.Errorf("Command output = %q, want prefix %q", got, "$ echo hi")
		}
	})

	t.Run("not verbose is no-op", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		l := New(&buf, false, false)
		l.Command("/tmp", "git", "status")(time.Second)
		if buf.Len() != 0 {
			t.Errorf("Command wrote %q when not verbose", buf.String())
		}
	})
}

func TestLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		verbose bool
		quiet   bool
		log     func(l *Logger)
		want    string
	}{
		{"debug verbose", true, false, func(l *Logger) { l.Debug("computed", "root", "/repo") }, "DEBUG computed root=/repo\n"},
		{"debug silent", false, false, func(l *Logger) { l.Debug("computed", "root", "/repo") }, ""},
		{"info", false, false, func(l *Logger) { l.Info("listening", "socket", "/tmp/s") }, "INFO listening socket=/tmp/s\n"},
		{"info quiet", false, true, func(l *Logger) { l.Info("listening") }, ""},
		{"error quiet", false, true, func(l *Logger) { l.Error("failed", "err", "boom") }, "ERROR failed err=boom\n"},
		{"odd keyvals drops last", true, false, func(l *Logger) { l.Debug("msg", "k", "v", "orphan") }, "DEBUG msg k=v\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			tt.log(New(&buf, tt.verbose, tt.quiet))
			if got := buf.String(); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewDaemon(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewDaemon(&buf, false)
	l.Info("started")
	got := buf.String()
	if !strings.HasPrefix(got, fmt.Sprintf("[%d] ", os.Getpid())) {
		t.Errorf("output = %q, want pid prefix", got)
	}
	if !strings.HasSuffix(got, "INFO started\n") {
		t.Errorf("output = %q, want INFO line", got)
	}
}

func TestIsVerbose(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		verbose bool
		quiet   bool
		want    bool
	}{
		{"verbose only", true, false, true},
		{"quiet only", false, true, false},
		{"both", true, true, false},
		{"neither", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := New(io.Discard, tt.verbose, tt.quiet)
			if got := l.IsVerbose(); got != tt.want {
				t.Errorf("IsVerbose() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContext(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		l := New(io.Discard, true, false)
		ctx := WithLogger(context.Background(), l)
		if got := FromContext(ctx); got != l {
			t.Error("FromContext did not return the attached logger")
		}
	})

	t.Run("missing logger discards", func(t *testing.T) {
		t.Parallel()
		l := FromContext(context.Background())
		if l.Writer() != io.Discard {
			t.Error("FromContext without logger should discard")
		}
	})
}
