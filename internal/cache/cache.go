package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/raphi011/promptgit/internal/git"
	"github.com/raphi011/promptgit/internal/log"
	"github.com/raphi011/promptgit/internal/status"
	"github.com/raphi011/promptgit/internal/throttle"
	"github.com/raphi011/promptgit/internal/watcher"
)

// Resolver maps a path to its enclosing repository.
type Resolver func(path string) (git.Root, error)

// Watcher delivers change notifications for one repository.
type Watcher interface {
	Events() <-chan watcher.Event
	Close() error
}

// WatchFunc starts a Watcher for a repository.
type WatchFunc func(root, gitDir string) (Watcher, error)

// FSWatch returns a WatchFunc backed by filesystem notifications.
func FSWatch(opts ...watcher.Option) WatchFunc {
	return func(root, gitDir string) (Watcher, error) {
		return watcher.Watch(root, gitDir, opts...)
	}
}

// Options configures a Cache.
type Options struct {
	// Resolver defaults to git.FindRoot.
	Resolver Resolver
	// Watch starts change notifications for new entries. Nil disables
	// watching; entries then only change through Entry.Refresh.
	Watch WatchFunc
	// Logger defaults to a discarding logger.
	Logger *log.Logger
}

// Cache maps repository roots to entries.
type Cache struct {
	computer status.Computer
	resolve  Resolver
	watchFn  WatchFunc
	logger   *log.Logger
	throttle *throttle.Throttle

	mu      sync.RWMutex
	entries map[string]*Entry
	closed  bool

	creating singleflight.Group
}

// New creates an empty cache that computes status with computer.
func New(computer status.Computer, opts Options) *Cache {
	if opts.Resolver == nil {
		opts.Resolver = git.FindRoot
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}

	c := &Cache{
		computer: computer,
		resolve:  opts.Resolver,
		watchFn:  opts.Watch,
		logger:   opts.Logger,
		throttle: throttle.New(),
		entries:  make(map[string]*Entry),
	}
	c.throttle.OnPanic = func(root string, r any) {
		c.logger.Error("recompute panicked", "root", root, "panic", fmt.Sprint(r))
	}
	return c
}

// FindRepo returns the entry for the repository enclosing path, creating it
// on first use. A new entry is returned only after its first computation
// finished (successfully or not); changes arriving meanwhile do not delay it. It returns false if path is not inside a
// repository or ctx ends while the entry is being created; creation itself
// carries on for later callers.
func (c *Cache) FindRepo(ctx context.Context, path string) (*Entry, bool) {
	root, err := c.resolve(path)
	if err != nil {
		if !errors.Is(err, git.ErrNotRepository) {
			c.logger.Error("resolve repository", "path", path, "err", err)
		}
		return nil, false
	}

	if e := c.lookup(root.Path); e != nil {
		return e, true
	}

	ch := c.creating.DoChan(root.Path, func() (any, error) {
		return c.create(root), nil
	})
	select {
	case res := <-ch:
		return res.Val.(*Entry), true
	case <-ctx.Done():
		return nil, false
	}
}

func (c *Cache) lookup(root string) *Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[root]
}

func (c *Cache) create(root git.Root) *Entry {
	if e := c.lookup(root.Path); e != nil {
		return e
	}

	e := newEntry(c, root.Path, root.GitDir)
	if c.watchFn != nil {
		w, err := c.watchFn(root.Path, root.GitDir)
		if err != nil {
			c.logger.Error("watch repository, status will not update", "root", root.Path, "err", err)
		} else {
			e.w = w
			go e.watch(c.evict)
		}
	}

	e.Refresh()
	select {
	case <-e.ready:
	case <-e.ctx.Done():
		c.logger.Debug("initial compute abandoned", "root", root.Path)
	}

	c.mu.Lock()
	if c.closed || e.closed() {
		c.mu.Unlock()
		e.close()
		c.throttle.Forget(root.Path)
		return e
	}
	c.entries[root.Path] = e
	c.mu.Unlock()

	c.logger.Info("repository added", "root", root.Path, "version", e.Version())
	return e
}

// evict removes e if it is still the entry for its root.
func (c *Cache) evict(e *Entry) {
	c.mu.Lock()
	if c.entries[e.root] == e {
		delete(c.entries, e.root)
	}
	c.mu.Unlock()

	e.close()
	c.throttle.Forget(e.root)
}

// GetAllRepos returns the current entries ordered by root.
func (c *Cache) GetAllRepos() []*Entry {
	c.mu.RLock()
	all := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		all = append(all, e)
	}
	c.mu.RUnlock()

	slices.SortFunc(all, func(a, b *Entry) int {
		return strings.Compare(a.root, b.root)
	})
	return all
}

// RemoveRepo removes the entry for the repository enclosing path. It
// reports whether an entry was removed. A path whose repository no longer
// exists is matched against the roots directly.
func (c *Cache) RemoveRepo(path string) bool {
	var key string
	if root, err := c.resolve(path); err == nil {
		key = root.Path
	} else if p, err := git.NormalizePath(path); err == nil {
		key = p
	} else {
		return false
	}

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}

	e.close()
	c.throttle.Forget(key)
	c.logger.Info("repository removed on request", "root", key)
	return true
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close removes every entry. Entries still being created are discarded
// when their first computation finishes.
func (c *Cache) Close() {
	c.mu.Lock()
	c.closed = true
	all := c.entries
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()

	for root, e := range all {
		e.close()
		c.throttle.Forget(root)
	}
}
