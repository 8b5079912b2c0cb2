// Package daemon composes the long-lived status server: one repository
// cache, filesystem watchers feeding it, and the protocol server answering
// clients on a unix socket.
//
// Only one daemon runs per socket. The socket path is guarded by a lock file
// next to it, so a crashed daemon's stale socket is replaced while a live
// daemon is never displaced.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/raphi011/promptgit/internal/cache"
	"github.com/raphi011/promptgit/internal/config"
	"github.com/raphi011/promptgit/internal/git"
	"github.com/raphi011/promptgit/internal/log"
	"github.com/raphi011/promptgit/internal/protocol"
	"github.com/raphi011/promptgit/internal/status"
	"github.com/raphi011/promptgit/internal/watcher"
)

// Options overrides collaborators chosen from the config.
type Options struct {
	// Computer defaults to the backend named in the config.
	Computer status.Computer
	// Watch defaults to filesystem notifications honoring the watcher
	// ignore list.
	Watch cache.WatchFunc
	// Logger defaults to a discarding logger.
	Logger *log.Logger
}

// Daemon is a listening, not yet serving, status server.
type Daemon struct {
	socket   string
	lock     *FileLock
	listener net.Listener
	cache    *cache.Cache
	server   *protocol.Server
	logger   *log.Logger
}

// Listen takes the daemon lock and binds the socket.
func Listen(cfg *config.Config, opts Options) (*Daemon, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}

	computer := opts.Computer
	if computer == nil {
		c, err := git.NewComputer(cfg.Status.Backend)
		if err != nil {
			return nil, err
		}
		computer = c
	}

	watch := opts.Watch
	if watch == nil {
		watch = cache.FSWatch(
			watcher.WithIgnore(cfg.Watcher.Ignore...),
			watcher.WithErrorHandler(func(err error) {
				logger.Error("watcher error", "err", err)
			}),
		)
	}

	socket := cfg.SocketPath()
	if err := os.MkdirAll(filepath.Dir(socket), 0700); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}

	lock := NewFileLock(socket + ".lock")
	if err := lock.TryLock(); err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			return nil, fmt.Errorf("%w on %s", ErrAlreadyRunning, socket)
		}
		return nil, fmt.Errorf("lock %s: %w", socket, err)
	}

	// holding the lock means any existing socket is left over from a crash
	if err := os.Remove(socket); err != nil && !errors.Is(err, os.ErrNotExist) {
		lock.Unlock()
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	l, err := net.Listen("unix", socket)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("listen on %s: %w", socket, err)
	}
	if err := os.Chmod(socket, 0600); err != nil {
		l.Close()
		lock.Unlock()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	c := cache.New(computer, cache.Options{Watch: watch, Logger: logger})
	srv := protocol.NewServer(protocol.FromCache(c),
		protocol.WithIOTimeout(cfg.Daemon.IOTimeout.Duration),
		protocol.WithServerLogger(logger),
	)

	return &Daemon{
		socket:   socket,
		lock:     lock,
		listener: l,
		cache:    c,
		server:   srv,
		logger:   logger,
	}, nil
}

// Socket returns the path the daemon listens on.
func (d *Daemon) Socket() string {
	return d.socket
}

// Cache returns the daemon's repository cache.
func (d *Daemon) Cache() *cache.Cache {
	return d.cache
}

// Serve answers requests until ctx is done, then releases every resource:
// watchers, the socket and the lock.
func (d *Daemon) Serve(ctx context.Context) error {
	d.logger.Info("daemon listening", "socket", d.socket)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.server.Serve(gctx, d.listener)
	})
	g.Go(func() error {
		<-gctx.Done()
		d.logger.Info("daemon shutting down")
		d.server.Shutdown()
		return nil
	})
	err := g.Wait()
	if errors.Is(err, protocol.ErrServerClosed) {
		// shutdown won the race against the first Accept
		err = nil
	}

	d.cache.Close()
	if rmErr := os.Remove(d.socket); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		d.logger.Error("remove socket", "err", rmErr)
	}
	if unlockErr := d.lock.Unlock(); unlockErr != nil {
		d.logger.Error("release lock", "err", unlockErr)
	}
	return err
}

// Run listens and serves until ctx is done. A panic escaping the daemon is
// logged with its stack and returned as an error.
func Run(ctx context.Context, cfg *config.Config, opts Options) (err error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("daemon panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			err = fmt.Errorf("daemon panicked: %v", r)
		}
	}()

	d, err := Listen(cfg, opts)
	if err != nil {
		return err
	}
	return d.Serve(ctx)
}

// OpenLog opens the daemon log destination. "" and "-" mean stderr.
func OpenLog(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stderr}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
