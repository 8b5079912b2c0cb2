// Package watcher reports filesystem changes that may alter the status of a
// repository.
//
// A Watcher observes the working tree recursively plus the handful of
// metadata paths git rewrites on index, HEAD and ref updates. Events are
// coalesced into a single-slot channel: a Changed event that is not yet
// consumed absorbs later ones. Rate limiting beyond that is left to the
// consumer.
package watcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Kind distinguishes watcher events.
type Kind int

// Event kinds.
const (
	// Changed means something status-relevant was modified.
	Changed Kind = iota + 1
	// RootRemoved means the working tree or metadata directory vanished.
	// It is the last event; the channel is closed afterwards.
	RootRemoved
)

func (k Kind) String() string {
	switch k {
	case Changed:
		return "changed"
	case RootRemoved:
		return "root-removed"
	}
	return "unknown"
}

// Event is a watcher notification.
type Event struct {
	Kind Kind
	Path string
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithIgnore skips directories with any of the given base names when walking
// the working tree (for example "node_modules").
func WithIgnore(names ...string) Option {
	return func(w *Watcher) {
		for _, n := range names {
			w.ignoreDirs[n] = true
		}
	}
}

// WithErrorHandler receives errors reported by the underlying notifier.
func WithErrorHandler(fn func(error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// Watcher watches one repository.
type Watcher struct {
	root      string
	gitDir    string
	commonDir string // shared metadata of a linked worktree, else gitDir

	fsw        *fsnotify.Watcher
	ignoreDirs map[string]bool
	onError    func(error)

	events    chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Watch starts watching the working tree at root and its metadata directory
// gitDir.
func Watch(root, gitDir string, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:       root,
		gitDir:     gitDir,
		commonDir:  commonDir(gitDir),
		fsw:        fsw,
		ignoreDirs: make(map[string]bool),
		events:     make(chan Event, 1),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	if err := w.addGitDir(); err != nil {
		fsw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.loop()

	return w, nil
}

// Events returns the event channel. It is closed after RootRemoved or Close.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}

// WatchedPaths returns the directories currently registered.
func (w *Watcher) WatchedPaths() []string {
	return w.fsw.WatchList()
}

// addTree registers dir and every subdirectory except metadata and ignored
// directories.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil // vanished while walking
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && w.skipDir(p) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil && p == dir {
			return err
		}
		return nil
	})
}

func (w *Watcher) skipDir(p string) bool {
	base := filepath.Base(p)
	return base == ".git" || w.ignoreDirs[base] || p == w.gitDir
}

// addGitDir registers the metadata paths whose writes change status: the
// directory itself (HEAD, index, MERGE_HEAD, packed-refs) and the refs tree.
// A linked worktree keeps its refs and packed-refs in the common directory,
// which is registered the same way.
func (w *Watcher) addGitDir() error {
	if err := w.fsw.Add(w.gitDir); err != nil {
		return err
	}
	w.addRefs(filepath.Join(w.gitDir, "refs"))
	if w.commonDir != w.gitDir {
		if err := w.fsw.Add(w.commonDir); err != nil {
			return err
		}
		w.addRefs(filepath.Join(w.commonDir, "refs"))
	}
	return nil
}

// addRefs registers dir and every directory below it. Missing directories
// are skipped.
func (w *Watcher) addRefs(dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			_ = w.fsw.Add(p)
		}
		return nil
	})
}

// watchNewDir registers a directory created after the watcher started:
// refs directories (a new remote, a branch namespace) and working tree
// directories. Other metadata directories stay unwatched.
func (w *Watcher) watchNewDir(p string) {
	info, err := os.Stat(p)
	if err != nil || !info.IsDir() {
		return
	}
	switch {
	case within(filepath.Join(w.gitDir, "refs"), p), within(filepath.Join(w.commonDir, "refs"), p):
		w.addRefs(p)
	case within(w.gitDir, p), within(w.commonDir, p):
	case !w.skipDir(p):
		_ = w.addTree(p)
	}
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	defer close(w.events)

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.rootGone(ev) {
				select {
				case w.events <- Event{Kind: RootRemoved, Path: w.root}:
				default:
					// drain a pending Changed; RootRemoved supersedes it
					select {
					case <-w.events:
					default:
					}
					w.events <- Event{Kind: RootRemoved, Path: w.root}
				}
				return
			}
			if !relevant(ev) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				w.watchNewDir(ev.Name)
			}
			w.notify(Event{Kind: Changed, Path: ev.Name})

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.onError != nil && !errors.Is(err, fsnotify.ErrEventOverflow) {
				w.onError(err)
			}
			// an overflow means events were lost; assume something changed
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.notify(Event{Kind: Changed, Path: w.root})
			}
		}
	}
}

// notify delivers ev unless an undelivered event is already queued.
func (w *Watcher) notify(ev Event) {
	select {
	case w.events <- ev:
	default:
	}
}

func (w *Watcher) rootGone(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	if ev.Name != w.root && ev.Name != w.gitDir && ev.Name != filepath.Join(w.root, ".git") {
		return false
	}
	return !exists(w.root) || !exists(w.gitDir)
}

// within reports whether p is dir or below it.
func within(dir, p string) bool {
	return p == dir || strings.HasPrefix(p, dir+string(filepath.Separator))
}

// commonDir returns the directory named by gitDir/commondir, or gitDir when
// there is none.
func commonDir(gitDir string) string {
	data, err := os.ReadFile(filepath.Join(gitDir, "commondir"))
	if err != nil {
		return gitDir
	}
	dir := strings.TrimSpace(string(data))
	if dir == "" {
		return gitDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(gitDir, dir)
	}
	return filepath.Clean(dir)
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// relevant filters out events that never change status.
func relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(ev.Name)

	// git holds lock files while writing; the rename onto the real file
	// produces its own event
	if strings.HasSuffix(base, ".lock") {
		return false
	}
	if strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".swo") ||
		strings.HasSuffix(base, "~") || strings.HasPrefix(base, ".#") {
		return false
	}
	switch base {
	case "COMMIT_EDITMSG", "gc.log", "FETCH_HEAD":
		return false
	}
	return !strings.HasPrefix(base, "fsmonitor")
}
