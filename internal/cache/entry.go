package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/raphi011/promptgit/internal/log"
	"github.com/raphi011/promptgit/internal/status"
	"github.com/raphi011/promptgit/internal/throttle"
	"github.com/raphi011/promptgit/internal/watcher"
)

// published pairs a snapshot with the version it was committed as, so
// readers always see both from the same commit.
type published struct {
	snap    *status.Snapshot
	version uint64
}

// Entry is the cached status of one repository.
type Entry struct {
	root   string
	gitDir string

	computer status.Computer
	throttle *throttle.Throttle
	logger   *log.Logger

	state atomic.Pointer[published]

	// ready is closed once the first computation has finished.
	ready     chan struct{}
	readyOnce sync.Once

	w         Watcher
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newEntry(c *Cache, root, gitDir string) *Entry {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Entry{
		root:     root,
		gitDir:   gitDir,
		computer: c.computer,
		throttle: c.throttle,
		logger:   c.logger,
		ready:    make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	e.state.Store(&published{})
	return e
}

// Root returns the repository root the entry is keyed by.
func (e *Entry) Root() string { return e.root }

// GitDir returns the repository's metadata directory.
func (e *Entry) GitDir() string { return e.gitDir }

// Status returns the latest completed snapshot, or an empty snapshot if no
// computation has completed yet.
func (e *Entry) Status() *status.Snapshot {
	snap, _ := e.State()
	return snap
}

// Version returns the number of snapshots published so far.
func (e *Entry) Version() uint64 {
	return e.state.Load().version
}

// State returns the latest snapshot together with its version.
func (e *Entry) State() (*status.Snapshot, uint64) {
	p := e.state.Load()
	if p.snap == nil {
		return status.Empty(e.root, e.gitDir), p.version
	}
	return p.snap, p.version
}

// Refresh schedules a recompute. It returns immediately.
func (e *Entry) Refresh() {
	if e.closed() {
		return
	}
	e.throttle.Trigger(e.root, e.recompute)
}

// Wait blocks until no recompute for the entry's root is running or
// pending.
func (e *Entry) Wait(ctx context.Context) error {
	return e.throttle.Wait(ctx, e.root)
}

func (e *Entry) recompute() {
	defer e.readyOnce.Do(func() { close(e.ready) })

	if e.closed() {
		return
	}

	snap, err := e.computer.Compute(e.ctx, e.root)
	if err != nil {
		if e.closed() {
			return
		}
		e.logger.Error("recompute failed, keeping last snapshot", "root", e.root, "err", err)
		return
	}
	if snap.Root == "" {
		cp := *snap
		cp.Root = e.root
		snap = &cp
	}

	for {
		old := e.state.Load()
		if e.state.CompareAndSwap(old, &published{snap: snap, version: old.version + 1}) {
			e.logger.Debug("status updated", "root", e.root, "version", old.version+1)
			return
		}
	}
}

// watch forwards watcher notifications until the watcher closes. removed is
// called once if the repository disappears.
func (e *Entry) watch(removed func(*Entry)) {
	for ev := range e.w.Events() {
		switch ev.Kind {
		case watcher.Changed:
			e.Refresh()
		case watcher.RootRemoved:
			e.logger.Info("repository removed", "root", e.root)
			removed(e)
			return
		}
	}
}

func (e *Entry) closed() bool {
	return e.ctx.Err() != nil
}

// close stops the watcher and cancels any running computation. The last
// snapshot stays readable.
func (e *Entry) close() {
	e.closeOnce.Do(func() {
		e.cancel()
		if e.w != nil {
			if err := e.w.Close(); err != nil {
				e.logger.Debug("close watcher", "root", e.root, "err", err)
			}
		}
	})
}
