// Package log provides context-aware logging for promptgit.
//
// The daemon logs recompute failures, protocol violations and connection
// lifecycle through the same Logger the CLI uses for verbose diagnostics.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type ctxKey struct{}

// Logger writes diagnostics. Debug and Command output only appears in
// verbose mode; quiet suppresses everything except Error.
type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
	quiet   bool
	prefix  string
	stamp   bool
}

// New creates a new logger.
func New(out io.Writer, verbose, quiet bool) *Logger {
	return &Logger{out: out, verbose: verbose, quiet: quiet}
}

// NewDaemon creates a logger for long-running processes. Every line carries
// a timestamp and the process id.
func NewDaemon(out io.Writer, verbose bool) *Logger {
	return &Logger{
		out:     out,
		verbose: verbose,
		prefix:  fmt.Sprintf("[%d] ", os.Getpid()),
		stamp:   true,
	}
}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context.
// Returns a no-op logger if none is attached.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Discard()
}

// Discard returns a logger that writes nowhere.
func Discard() *Logger {
	return &Logger{out: io.Discard}
}

// Printf writes formatted output.
func (l *Logger) Printf(format string, args ...any) {
	if l.quiet {
		return
	}
	l.write(fmt.Sprintf(format, args...))
}

// Println writes a line of output.
func (l *Logger) Println(args ...any) {
	if l.quiet {
		return
	}
	l.write(fmt.Sprintln(args...))
}

// Debug logs a message with key/value pairs in verbose mode.
func (l *Logger) Debug(msg string, keyvals ...any) {
	if !l.IsVerbose() {
		return
	}
	l.write(format("DEBUG", msg, keyvals))
}

// Info logs a message with key/value pairs unless quiet.
func (l *Logger) Info(msg string, keyvals ...any) {
	if l.quiet {
		return
	}
	l.write(format("INFO", msg, keyvals))
}

// Error logs a message with key/value pairs. Never suppressed.
func (l *Logger) Error(msg string, keyvals ...any) {
	l.write(format("ERROR", msg, keyvals))
}

// Command logs an external command execution and returns a callback that
// records how long it took. Only prints in verbose mode.
func (l *Logger) Command(dir, name string, args ...string) func(time.Duration) {
	if !l.IsVerbose() {
		return func(time.Duration) {}
	}
	line := "$ " + strings.TrimSpace(name+" "+strings.Join(args, " "))
	if dir != "" {
		line = "[" + dir + "] " + line
	}
	return func(d time.Duration) {
		l.write(fmt.Sprintf("%s (%s)\n", line, d.Round(time.Millisecond)))
	}
}

// IsVerbose returns true if verbose output is enabled and not silenced.
func (l *Logger) IsVerbose() bool {
	return l.verbose && !l.quiet
}

// Writer returns the underlying writer.
func (l *Logger) Writer() io.Writer {
	return l.out
}

func (l *Logger) write(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stamp {
		s = time.Now().Format("2006-01-02 15:04:05.000 ") + s
	}
	fmt.Fprint(l.out, l.prefix+s)
}

// format renders "LEVEL msg k=v k=v". An odd trailing key is dropped.
func format(level, msg string, keyvals []any) string {
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(msg)
	for i := 0; i+1 < len(keyvals); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keyvals[i], keyvals[i+1])
	}
	b.WriteByte('\n')
	return b.String()
}
