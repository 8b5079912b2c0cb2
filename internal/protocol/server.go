package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/raphi011/promptgit/internal/cache"
	"github.com/raphi011/promptgit/internal/log"
	"github.com/raphi011/promptgit/internal/status"
)

// DefaultIOTimeout bounds a whole exchange on the server side, including the
// first status computation of a repository the cache has not seen yet.
const DefaultIOTimeout = 5 * time.Second

// Repositories is the cache a Server answers from.
type Repositories interface {
	FindRepo(ctx context.Context, path string) (*status.Snapshot, bool)
	GetAllRepos() []*status.Snapshot
	RemoveRepo(path string) bool
}

// cacheRepositories serves snapshots from a *cache.Cache.
type cacheRepositories struct {
	c *cache.Cache
}

// FromCache exposes c as Repositories.
func FromCache(c *cache.Cache) Repositories {
	return cacheRepositories{c: c}
}

func (r cacheRepositories) FindRepo(ctx context.Context, path string) (*status.Snapshot, bool) {
	e, ok := r.c.FindRepo(ctx, path)
	if !ok {
		return nil, false
	}
	return e.Status(), true
}

func (r cacheRepositories) GetAllRepos() []*status.Snapshot {
	entries := r.c.GetAllRepos()
	snaps := make([]*status.Snapshot, len(entries))
	for i, e := range entries {
		snaps[i] = e.Status()
	}
	return snaps
}

func (r cacheRepositories) RemoveRepo(path string) bool {
	return r.c.RemoveRepo(path)
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithIOTimeout sets the deadline for one exchange. Zero disables it.
func WithIOTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.ioTimeout = d
	}
}

// WithServerLogger sets the logger used for connection diagnostics.
func WithServerLogger(l *log.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// Server answers protocol requests from a shared Repositories.
type Server struct {
	repos     Repositories
	logger    *log.Logger
	ioTimeout time.Duration

	mu        sync.Mutex
	listeners []net.Listener
	closing   bool

	wg sync.WaitGroup
}

// NewServer creates a server for repos.
func NewServer(repos Repositories, opts ...ServerOption) *Server {
	s := &Server{
		repos:     repos,
		logger:    log.Discard(),
		ioTimeout: DefaultIOTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("protocol: server closed")

// Serve accepts connections on l until Shutdown is called or ctx is done,
// then waits for in-flight exchanges. It returns nil on an orderly stop.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, s.Shutdown)
	defer stop()

	for {
		nc, err := l.Accept()
		if err != nil {
			if s.shuttingDown() {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.wg.Add(1)
		go s.handle(ctx, nc)
	}
}

// Shutdown stops accepting connections. Connections accepted afterwards are
// closed without a handshake; exchanges in progress run to completion.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return
	}
	s.closing = true
	for _, l := range s.listeners {
		l.Close()
	}
}

func (s *Server) shuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Server) handle(ctx context.Context, nc net.Conn) {
	defer s.wg.Done()
	defer nc.Close()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("connection handler panicked", "panic", fmt.Sprint(r))
		}
	}()

	if s.shuttingDown() {
		return
	}
	if s.ioTimeout > 0 {
		deadline := time.Now().Add(s.ioTimeout)
		_ = nc.SetDeadline(deadline)

		// the lookup gives up early enough to still write a null reply
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline.Add(-s.ioTimeout/10))
		defer cancel()
	}

	c := newConn(nc)
	if err := c.writeCommand(Ready); err != nil {
		s.logger.Debug("handshake failed", "err", err)
		return
	}

	cmd, raw, err := c.readCommand()
	if err != nil {
		s.logger.Debug("read command", "err", err)
		return
	}
	if !cmd.IsRequest() {
		s.logger.Error("protocol violation, closing connection", "command", raw)
		return
	}

	start := time.Now()
	if err := s.dispatch(ctx, c, cmd); err != nil {
		s.logger.Debug("exchange failed", "command", cmd, "err", err)
		return
	}
	s.logger.Debug("served", "command", cmd, "took", time.Since(start).Round(time.Microsecond))
}

func (s *Server) dispatch(ctx context.Context, c *conn, cmd Command) error {
	switch cmd {
	case FindRepo:
		path, err := c.readLine()
		if err != nil {
			return err
		}
		snap, ok := s.repos.FindRepo(ctx, path)
		if !ok {
			return c.writeJSON(nil)
		}
		return c.writeJSON(snap)

	case GetAllRepos:
		snaps := s.repos.GetAllRepos()
		if snaps == nil {
			snaps = []*status.Snapshot{}
		}
		return c.writeJSON(snaps)

	case RemoveRepo:
		path, err := c.readLine()
		if err != nil {
			return err
		}
		if s.repos.RemoveRepo(path) {
			return c.writeCommand(Success)
		}
		return c.writeCommand(Error)
	}
	return fmt.Errorf("unhandled command %s", cmd)
}
