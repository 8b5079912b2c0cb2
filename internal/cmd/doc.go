// Package cmd provides helpers for executing shell commands with proper error handling.
//
// This package wraps [os/exec.Cmd] to capture stderr and include it in error
// messages, making command failures more informative in daemon logs.
//
// # Usage
//
//	out, err := cmd.OutputContext(ctx, root, "git", "status", "--porcelain=v2")
//	if err != nil {
//	    // err contains stderr output if available
//	    return fmt.Errorf("git status: %w", err)
//	}
//
// The context variants log the command line and its duration through the
// logger attached to ctx (see package log) when verbose output is enabled.
package cmd
