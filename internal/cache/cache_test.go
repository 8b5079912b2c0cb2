package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raphi011/promptgit/internal/status"
	"github.com/raphi011/promptgit/internal/watcher"
)

func resolveTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("failed to resolve symlinks: %v", err)
	}
	return dir
}

// makeRepo creates a directory that looks like a repository root.
func makeRepo(t *testing.T, base, name string) string {
	t.Helper()
	root := filepath.Join(base, name)
	for _, d := range []string{filepath.Join(root, ".git"), filepath.Join(root, "sub", "deep")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

// countingComputer returns a snapshot with one added file per call so far.
type countingComputer struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	overlap  atomic.Bool
	delay    time.Duration
	fail     atomic.Bool
}

func (c *countingComputer) Compute(ctx context.Context, root string) (*status.Snapshot, error) {
	if c.inFlight.Add(1) > 1 {
		c.overlap.Store(true)
	}
	defer c.inFlight.Add(-1)

	n := c.calls.Add(1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.fail.Load() {
		return nil, errors.New("unreadable metadata")
	}
	b := status.NewBuilder(root, filepath.Join(root, ".git")).Branch("main")
	for i := int32(0); i < n; i++ {
		b.Index(status.Added, fmt.Sprintf("f%d.txt", i))
	}
	return b.Build(), nil
}

// fakeWatcher lets tests inject events.
type fakeWatcher struct {
	events chan watcher.Event
	closed atomic.Bool
	once   sync.Once
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{events: make(chan watcher.Event, 8)}
}

func (w *fakeWatcher) Events() <-chan watcher.Event { return w.events }

func (w *fakeWatcher) Close() error {
	w.once.Do(func() {
		w.closed.Store(true)
		close(w.events)
	})
	return nil
}

// churningWatcher reports a change every interval until closed, like a
// build writing into the working tree.
type churningWatcher struct {
	events chan watcher.Event
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newChurningWatcher(interval time.Duration) *churningWatcher {
	w := &churningWatcher{
		events: make(chan watcher.Event),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(w.done)
		defer close(w.events)
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-w.stop:
				return
			case <-tick.C:
				select {
				case w.events <- watcher.Event{Kind: watcher.Changed}:
				case <-w.stop:
					return
				}
			}
		}
	}()
	return w
}

func (w *churningWatcher) Events() <-chan watcher.Event { return w.events }

func (w *churningWatcher) Close() error {
	w.once.Do(func() { close(w.stop) })
	<-w.done
	return nil
}

type fakeWatchers struct {
	mu sync.Mutex
	by map[string]*fakeWatcher
}

func (f *fakeWatchers) watch(root, gitDir string) (Watcher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.by == nil {
		f.by = make(map[string]*fakeWatcher)
	}
	w := newFakeWatcher()
	f.by[root] = w
	return w, nil
}

func (f *fakeWatchers) get(root string) *fakeWatcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.by[root]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFindRepo_ResolvesToRoot(t *testing.T) {
	t.Parallel()

	base := resolveTempDir(t)
	root := makeRepo(t, base, "repo")
	file := filepath.Join(root, "sub", "file.txt")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}

	c := New(&countingComputer{}, Options{})
	defer c.Close()

	tests := []struct {
		name string
		path string
	}{
		{"root", root},
		{"subdirectory", filepath.Join(root, "sub")},
		{"nested subdirectory", filepath.Join(root, "sub", "deep")},
		{"file", file},
		{"unclean path", root + "/sub/../sub/deep/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := c.FindRepo(context.Background(), tt.path)
			if !ok {
				t.Fatalf("FindRepo(%s) found nothing", tt.path)
			}
			if e.Root() != root {
				t.Errorf("Root() = %s, want %s", e.Root(), root)
			}
			if got := e.Status().GitDir; got != filepath.Join(root, ".git") {
				t.Errorf("GitDir = %s, want %s", got, filepath.Join(root, ".git"))
			}
		})
	}

	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestFindRepo_NotARepository(t *testing.T) {
	t.Parallel()

	comp := &countingComputer{}
	c := New(comp, Options{})
	e, ok := c.FindRepo(context.Background(), resolveTempDir(t))
	if ok || e != nil {
		t.Errorf("FindRepo() = %v, %v, want nil, false", e, ok)
	}
	if comp.calls.Load() != 0 {
		t.Error("computer called for a non-repository")
	}
}

func TestFindRepo_InitialComputeIsAwaited(t *testing.T) {
	t.Parallel()

	root := makeRepo(t, resolveTempDir(t), "repo")
	c := New(&countingComputer{delay: 50 * time.Millisecond}, Options{})
	defer c.Close()

	e, ok := c.FindRepo(context.Background(), root)
	if !ok {
		t.Fatal("FindRepo() found nothing")
	}
	snap, version := e.State()
	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}
	if snap.Branch != "main" || len(snap.Index.Added) != 1 {
		t.Errorf("snapshot = %+v, want computed snapshot", snap)
	}
}

func TestFindRepo_ConstantChangesDoNotBlockCreation(t *testing.T) {
	t.Parallel()

	root := makeRepo(t, resolveTempDir(t), "repo")
	comp := &countingComputer{delay: 30 * time.Millisecond}
	c := New(comp, Options{Watch: func(root, gitDir string) (Watcher, error) {
		return newChurningWatcher(5 * time.Millisecond), nil
	}})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	e, ok := c.FindRepo(ctx, root)
	if !ok {
		t.Fatal("FindRepo() gave up while the repository kept changing")
	}
	if e.Version() < 1 {
		t.Errorf("version = %d, want at least 1", e.Version())
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestFindRepo_ConcurrentCreatesOneEntry(t *testing.T) {
	t.Parallel()

	root := makeRepo(t, resolveTempDir(t), "repo")
	comp := &countingComputer{delay: 20 * time.Millisecond}
	c := New(comp, Options{})
	defer c.Close()

	var wg sync.WaitGroup
	entries := make([]*Entry, 32)
	for i := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entries[i], _ = c.FindRepo(context.Background(), filepath.Join(root, "sub"))
		}()
	}
	wg.Wait()

	for i, e := range entries {
		if e != entries[0] {
			t.Fatalf("entry %d differs from entry 0", i)
		}
	}
	if got := comp.calls.Load(); got != 1 {
		t.Errorf("computer calls = %d, want 1", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestFindRepo_CallerCancellation(t *testing.T) {
	t.Parallel()

	root := makeRepo(t, resolveTempDir(t), "repo")
	comp := &countingComputer{delay: 200 * time.Millisecond}
	c := New(comp, Options{})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, ok := c.FindRepo(ctx, root); ok {
		t.Fatal("FindRepo() should give up when ctx ends")
	}

	e, ok := c.FindRepo(context.Background(), root)
	if !ok {
		t.Fatal("FindRepo() found nothing")
	}
	if e.Version() != 1 {
		t.Errorf("version = %d, want 1", e.Version())
	}
	if got := comp.calls.Load(); got != 1 {
		t.Errorf("abandoned caller restarted creation: calls = %d", got)
	}
}

func TestEntry_RefreshNeverOverlaps(t *testing.T) {
	t.Parallel()

	root := makeRepo(t, resolveTempDir(t), "repo")
	comp := &countingComputer{delay: 2 * time.Millisecond}
	c := New(comp, Options{})
	defer c.Close()

	e, _ := c.FindRepo(context.Background(), root)

	var versions []uint64
	var wg sync.WaitGroup
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			select {
			case <-done:
				return
			default:
				versions = append(versions, e.Version())
				time.Sleep(50 * time.Microsecond)
			}
		}
	}()

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				e.Refresh()
			}
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	close(done)
	<-stopped

	if comp.overlap.Load() {
		t.Error("two computations for the same root overlapped")
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] < versions[i-1] {
			t.Fatalf("version went backwards: %d after %d", versions[i], versions[i-1])
		}
	}
	if got, want := e.Version(), uint64(comp.calls.Load()); got != want {
		t.Errorf("version = %d, want %d (one per computation)", got, want)
	}
}

func TestEntry_RecomputeFailureKeepsLastSnapshot(t *testing.T) {
	t.Parallel()

	root := makeRepo(t, resolveTempDir(t), "repo")
	comp := &countingComputer{}
	c := New(comp, Options{})
	defer c.Close()

	e, _ := c.FindRepo(context.Background(), root)
	before, v := e.State()

	comp.fail.Store(true)
	e.Refresh()
	if err := e.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	after, v2 := e.State()
	if after != before || v2 != v {
		t.Errorf("failed recompute replaced snapshot: version %d -> %d", v, v2)
	}
	if comp.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", comp.calls.Load())
	}
}

func TestFindRepo_InitialFailureIsEmpty(t *testing.T) {
	t.Parallel()

	root := makeRepo(t, resolveTempDir(t), "repo")
	comp := &countingComputer{}
	comp.fail.Store(true)
	c := New(comp, Options{})
	defer c.Close()

	e, ok := c.FindRepo(context.Background(), root)
	if !ok {
		t.Fatal("FindRepo() found nothing")
	}
	snap, version := e.State()
	if version != 0 {
		t.Errorf("version = %d, want 0", version)
	}
	if !snap.Equal(status.Empty(root, filepath.Join(root, ".git"))) {
		t.Errorf("snapshot = %+v, want empty", snap)
	}
}

func TestRemoveRepo(t *testing.T) {
	t.Parallel()

	base := resolveTempDir(t)
	root := makeRepo(t, base, "repo")
	other := makeRepo(t, base, "other")
	comp := &countingComputer{}
	watchers := &fakeWatchers{}
	c := New(comp, Options{Watch: watchers.watch})
	defer c.Close()

	first, _ := c.FindRepo(context.Background(), root)
	c.FindRepo(context.Background(), other)

	if c.RemoveRepo(resolveTempDir(t)) {
		t.Error("RemoveRepo() of unrelated path reported success")
	}
	if !c.RemoveRepo(filepath.Join(root, "sub", "deep")) {
		t.Fatal("RemoveRepo() via sub path reported nothing removed")
	}
	if c.RemoveRepo(root) {
		t.Error("second RemoveRepo() reported success")
	}
	if !watchers.get(root).closed.Load() {
		t.Error("watcher of removed entry not closed")
	}
	if got := c.GetAllRepos(); len(got) != 1 || got[0].Root() != other {
		t.Errorf("GetAllRepos() after remove = %d entries", len(got))
	}

	// a fresh entry comes from a new computation
	calls := comp.calls.Load()
	second, ok := c.FindRepo(context.Background(), root)
	if !ok {
		t.Fatal("FindRepo() after remove found nothing")
	}
	if second == first {
		t.Error("FindRepo() after remove returned the removed entry")
	}
	if second.Version() != 1 {
		t.Errorf("version = %d, want 1", second.Version())
	}
	if comp.calls.Load() != calls+1 {
		t.Errorf("calls = %d, want %d", comp.calls.Load(), calls+1)
	}
}

func TestRemoveRepo_DeletedDirectory(t *testing.T) {
	t.Parallel()

	root := makeRepo(t, resolveTempDir(t), "repo")
	c := New(&countingComputer{}, Options{})
	defer c.Close()

	c.FindRepo(context.Background(), root)
	if err := os.RemoveAll(root); err != nil {
		t.Fatal(err)
	}
	if !c.RemoveRepo(root) {
		t.Error("RemoveRepo() of a deleted root reported nothing removed")
	}
}

func TestWatcherEvents(t *testing.T) {
	t.Parallel()

	root := makeRepo(t, resolveTempDir(t), "repo")
	comp := &countingComputer{}
	watchers := &fakeWatchers{}
	c := New(comp, Options{Watch: watchers.watch})
	defer c.Close()

	e, _ := c.FindRepo(context.Background(), root)
	w := watchers.get(root)

	w.events <- watcher.Event{Kind: watcher.Changed, Path: filepath.Join(root, "x")}
	waitFor(t, "refresh after change", func() bool { return e.Version() == 2 })
	if got := len(e.Status().Index.Added); got != 2 {
		t.Errorf("Index.Added = %d, want 2", got)
	}

	w.events <- watcher.Event{Kind: watcher.RootRemoved, Path: root}
	waitFor(t, "eviction", func() bool { return c.Len() == 0 })
	waitFor(t, "watcher close", w.closed.Load)

	// the last snapshot stays readable for holders of the entry
	if e.Version() != 2 {
		t.Errorf("version after eviction = %d, want 2", e.Version())
	}
}

func TestGetAllRepos(t *testing.T) {
	t.Parallel()

	base := resolveTempDir(t)
	c := New(&countingComputer{}, Options{})
	defer c.Close()

	if got := c.GetAllRepos(); len(got) != 0 {
		t.Fatalf("GetAllRepos() on empty cache = %d entries", len(got))
	}

	names := []string{"c", "a", "b"}
	for _, n := range names {
		c.FindRepo(context.Background(), makeRepo(t, base, n))
	}

	got := c.GetAllRepos()
	if len(got) != 3 {
		t.Fatalf("GetAllRepos() = %d entries, want 3", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].Root() != filepath.Join(base, want) {
			t.Errorf("entry %d = %s, want %s", i, got[i].Root(), filepath.Join(base, want))
		}
	}
}

func TestClose(t *testing.T) {
	t.Parallel()

	base := resolveTempDir(t)
	watchers := &fakeWatchers{}
	c := New(&countingComputer{}, Options{Watch: watchers.watch})

	a := makeRepo(t, base, "a")
	b := makeRepo(t, base, "b")
	c.FindRepo(context.Background(), a)
	c.FindRepo(context.Background(), b)

	c.Close()
	if c.Len() != 0 {
		t.Errorf("Len() after Close = %d", c.Len())
	}
	for _, r := range []string{a, b} {
		if !watchers.get(r).closed.Load() {
			t.Errorf("watcher for %s not closed", r)
		}
	}
}

func TestClose_DuringCreation(t *testing.T) {
	t.Parallel()

	root := makeRepo(t, resolveTempDir(t), "repo")
	comp := &countingComputer{delay: 200 * time.Millisecond}
	watchers := &fakeWatchers{}
	c := New(comp, Options{Watch: watchers.watch})

	found := make(chan *Entry, 1)
	go func() {
		e, _ := c.FindRepo(context.Background(), root)
		found <- e
	}()

	waitFor(t, "first computation to start", func() bool { return comp.calls.Load() == 1 })
	c.Close()

	select {
	case <-found:
	case <-time.After(5 * time.Second):
		t.Fatal("FindRepo() did not return after Close")
	}
	if c.Len() != 0 {
		t.Errorf("Len() after Close = %d, want 0", c.Len())
	}
	if !watchers.get(root).closed.Load() {
		t.Error("watcher of entry created during Close not closed")
	}
}

func TestRemoveRepo_PendingRecomputeDoesNotPublish(t *testing.T) {
	t.Parallel()

	root := makeRepo(t, resolveTempDir(t), "repo")
	comp := &countingComputer{delay: 100 * time.Millisecond}
	c := New(comp, Options{})
	defer c.Close()

	e, _ := c.FindRepo(context.Background(), root)
	e.Refresh()
	waitFor(t, "second computation to start", func() bool { return comp.calls.Load() == 2 })
	e.Refresh() // pending behind the running one

	if !c.RemoveRepo(root) {
		t.Fatal("RemoveRepo() reported nothing removed")
	}
	if err := e.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	if e.Version() != 1 {
		t.Errorf("removed entry published: version = %d, want 1", e.Version())
	}
	if got := comp.calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}
