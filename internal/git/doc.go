// Package git locates repositories and computes their status.
//
// # Repository Discovery
//
// [FindRoot] walks from any path towards the filesystem root and returns the
// nearest directory containing a .git directory or .git file, together with
// the metadata directory the .git file points to (worktrees, submodules).
//
// # Status Computers
//
// Two implementations of [status.Computer] are provided:
//
//   - [CLIComputer]: runs `git status --porcelain=v2 --branch -z` through
//     package cmd and parses it with [ParsePorcelainV2]. This is the default
//     because it honors the user's git configuration exactly.
//   - [GoGitComputer]: computes status in-process using go-git. Useful where
//     no git binary is installed.
//
// [NewComputer] selects one by its configuration name.
package git
