package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/xxh3"
)

// SocketPath returns the unix socket the daemon listens on. An explicit
// daemon.socket wins; otherwise the path is derived from the channel
// identity and the user id, so every user gets a private daemon and
// different channels never collide.
func (c *Config) SocketPath() string {
	if c.Daemon.Socket != "" {
		return c.Daemon.Socket
	}
	return filepath.Join(runtimeDir(), SocketName(c.Daemon.ServerName, c.Daemon.Channel, os.Getuid()))
}

// SocketName returns the file name of the socket for an identity.
func SocketName(serverName, channel string, uid int) string {
	id := fmt.Sprintf("%s\x00%s\x00%d", serverName, channel, uid)
	return fmt.Sprintf("promptgit-%016x.sock", xxh3.HashString(id))
}

func runtimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}
