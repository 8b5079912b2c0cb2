package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/raphi011/promptgit/internal/log"
	"github.com/raphi011/promptgit/internal/status"
)

// DefaultConnectTimeout bounds dialing plus the handshake.
const DefaultConnectTimeout = 2 * time.Second

// ConnectResult is the outcome of reaching the daemon.
type ConnectResult int

// Connect outcomes.
const (
	Connected ConnectResult = iota
	TimedOut
	Cancelled
	Unavailable
)

func (r ConnectResult) String() string {
	switch r {
	case Connected:
		return "connected"
	case TimedOut:
		return "timed out"
	case Cancelled:
		return "cancelled"
	case Unavailable:
		return "unavailable"
	}
	return fmt.Sprintf("ConnectResult(%d)", int(r))
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithConnectTimeout sets how long to wait for the daemon to accept and
// greet a connection.
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.connectTimeout = d
	}
}

// WithLogger sets the logger that records degraded calls.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// Client queries a daemon listening on a unix socket. It is safe for
// concurrent use; every call uses its own connection.
type Client struct {
	socket         string
	connectTimeout time.Duration
	logger         *log.Logger
}

// NewClient creates a client for the daemon at socketPath.
func NewClient(socketPath string, opts ...ClientOption) *Client {
	c := &Client{
		socket:         socketPath,
		connectTimeout: DefaultConnectTimeout,
		logger:         log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Socket returns the socket path the client dials.
func (c *Client) Socket() string {
	return c.socket
}

// FindRepo returns the status of the repository enclosing path, or nil if
// there is none or the daemon cannot be reached.
func (c *Client) FindRepo(ctx context.Context, path string) (*status.Snapshot, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	return exchange(ctx, c, FindRepo, nil, func(cn *conn) (*status.Snapshot, error) {
		if err := cn.writeLine(path); err != nil {
			return nil, err
		}
		line, err := cn.readLine()
		if err != nil {
			return nil, err
		}
		var snap *status.Snapshot
		if err := json.Unmarshal([]byte(line), &snap); err != nil {
			return nil, violation(FindRepo, err, "malformed snapshot")
		}
		return snap, nil
	})
}

// GetAllRepos returns the status of every cached repository. It returns an
// empty slice if the daemon cannot be reached.
func (c *Client) GetAllRepos(ctx context.Context) ([]*status.Snapshot, error) {
	return exchange(ctx, c, GetAllRepos, []*status.Snapshot{}, func(cn *conn) ([]*status.Snapshot, error) {
		line, err := cn.readLine()
		if err != nil {
			return nil, err
		}
		var snaps []*status.Snapshot
		if err := json.Unmarshal([]byte(line), &snaps); err != nil {
			return nil, violation(GetAllRepos, err, "malformed snapshot list")
		}
		out := make([]*status.Snapshot, 0, len(snaps))
		for _, s := range snaps {
			if s != nil {
				out = append(out, s)
			}
		}
		return out, nil
	})
}

// RemoveRepo asks the daemon to drop the repository enclosing path. It
// returns false if nothing was removed or the daemon cannot be reached.
func (c *Client) RemoveRepo(ctx context.Context, path string) (bool, error) {
	if err := checkPath(path); err != nil {
		return false, err
	}
	return exchange(ctx, c, RemoveRepo, false, func(cn *conn) (bool, error) {
		if err := cn.writeLine(path); err != nil {
			return false, err
		}
		cmd, raw, err := cn.readCommand()
		if err != nil {
			return false, err
		}
		switch cmd {
		case Success:
			return true, nil
		case Error:
			return false, nil
		}
		return false, violation(RemoveRepo, nil, "unexpected reply %q", raw)
	})
}

func checkPath(path string) error {
	if strings.ContainsAny(path, "\r\n") {
		return fmt.Errorf("invalid path %q: contains a line break", path)
	}
	return nil
}

// exchange runs fn on a fresh connection that already sent cmd and saw
// Ready. Anything short of a protocol violation yields def.
func exchange[T any](ctx context.Context, c *Client, cmd Command, def T, fn func(*conn) (T, error)) (T, error) {
	cn, res := c.connect(ctx, cmd)
	if res != Connected {
		c.logger.Error("daemon not reachable, using default", "command", cmd, "result", res, "socket", c.socket)
		return def, nil
	}
	defer cn.Close()

	// closing the connection unblocks any pending read or write
	stop := context.AfterFunc(ctx, func() { cn.Close() })
	defer stop()

	v, err := fn(cn)
	if err == nil {
		return v, nil
	}
	if errors.Is(err, errLineTooLong) {
		err = violation(cmd, err, "reply too long")
	}
	if errors.Is(err, ErrProtocol) && ctx.Err() == nil {
		return def, err
	}

	if ctx.Err() != nil {
		c.logger.Error("daemon exchange cancelled", "command", cmd)
	} else {
		c.logger.Error("daemon exchange interrupted", "command", cmd, "err", err)
	}
	return def, nil
}

// connect dials the daemon, sends cmd and waits for Ready, all within the
// connect timeout and ctx.
func (c *Client) connect(ctx context.Context, cmd Command) (*conn, ConnectResult) {
	cctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	var d net.Dialer
	nc, err := d.DialContext(cctx, "unix", c.socket)
	if err != nil {
		c.logger.Debug("dial", "socket", c.socket, "err", err)
		return nil, classify(ctx, cctx)
	}

	if dl, ok := cctx.Deadline(); ok {
		_ = nc.SetDeadline(dl)
	}
	interrupted := context.AfterFunc(cctx, func() {
		_ = nc.SetDeadline(time.Now())
	})

	cn := newConn(nc)
	err = cn.writeCommand(cmd)
	var reply Command
	var raw string
	if err == nil {
		reply, raw, err = cn.readCommand()
	}

	if !interrupted() {
		nc.Close()
		return nil, classify(ctx, cctx)
	}
	if err != nil {
		nc.Close()
		c.logger.Debug("handshake", "socket", c.socket, "err", err)
		if r := classify(ctx, cctx); r != Unavailable {
			return nil, r
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, TimedOut
		}
		return nil, Unavailable
	}
	if reply != Ready {
		nc.Close()
		c.logger.Debug("daemon refused", "socket", c.socket, "reply", raw)
		return nil, Unavailable
	}

	_ = nc.SetDeadline(time.Time{})
	return cn, Connected
}

// classify maps the state of the caller's and the connect context to a
// result for a failed connect.
func classify(ctx, cctx context.Context) ConnectResult {
	switch {
	case ctx.Err() != nil:
		return Cancelled
	case errors.Is(cctx.Err(), context.DeadlineExceeded):
		return TimedOut
	}
	return Unavailable
}
