package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/raphi011/promptgit/internal/log"
)

// Run executes a command and returns stderr in the error message if it fails
func Run(cmd *exec.Cmd) error {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stderrError(&stderr, err)
	}
	return nil
}

// Output executes a command and returns stdout, with stderr in error if it fails
func Output(cmd *exec.Cmd) ([]byte, error) {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, stderrError(&stderr, err)
	}
	return output, nil
}

// RunContext executes name in dir, killing it when ctx is done.
// The invocation is logged through the context logger in verbose mode.
func RunContext(ctx context.Context, dir, name string, args ...string) error {
	c := exec.CommandContext(ctx, name, args...)
	c.Dir = dir
	done := log.FromContext(ctx).Command(dir, name, args...)
	start := time.Now()
	err := Run(c)
	done(time.Since(start))
	return err
}

// OutputContext is RunContext returning stdout.
func OutputContext(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	c := exec.CommandContext(ctx, name, args...)
	c.Dir = dir
	done := log.FromContext(ctx).Command(dir, name, args...)
	start := time.Now()
	out, err := Output(c)
	done(time.Since(start))
	return out, err
}

func stderrError(stderr *bytes.Buffer, err error) error {
	if errMsg := strings.TrimSpace(stderr.String()); errMsg != "" {
		return fmt.Errorf("%s", errMsg)
	}
	return err
}
