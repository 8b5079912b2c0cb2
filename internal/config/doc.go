// Package config handles loading and validation of promptgit configuration.
//
// Configuration is read from ~/.config/promptgit/config.toml with
// environment variable overrides.
//
// # Configuration Sources (highest priority first)
//
//   - PROMPTGIT_SOCKET env var: socket path used by the daemon and clients
//   - PROMPTGIT_BACKEND env var: status backend ("git" or "go-git")
//   - Config file settings
//   - Default values
//
// # Sections
//
//   - [daemon]: channel identity, socket override, exchange timeout, log file
//   - [client]: connect timeout
//   - [status]: backend computing repository status
//   - [watcher]: directory names never watched (e.g. node_modules)
//   - [prompt]: texts, colors and flags of the prompt fragment
//
// Durations are written as Go duration strings ("2s", "500ms").
//
// # Socket Path
//
// Unless overridden, daemon and clients agree on a socket derived from the
// channel identity and the user id, see [Config.SocketPath].
package config
