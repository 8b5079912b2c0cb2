// Package throttle bounds work per key to one execution at a time and
// collapses bursts of triggers into at most one follow-up execution.
//
// Each key moves through a small state machine:
//
//	Idle               --Trigger-->   Running            (starts fn)
//	Running            --Trigger-->   RunningWithPending (fn remembered)
//	Running            --done----->   Idle
//	RunningWithPending --done----->   Running            (starts remembered fn)
//
// Any number of triggers while running collapse into one pending flag, so a
// burst during one execution causes at most one more.
package throttle

import (
	"context"
	"fmt"
	"sync"
)

// State is the per-key throttle state.
type State int

// Key states.
const (
	Idle State = iota
	Running
	RunningWithPending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case RunningWithPending:
		return "running+pending"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Throttle runs functions per key. The zero value is not usable; call New.
type Throttle struct {
	keys sync.Map // string -> *key

	// OnPanic is called when fn panics. The key still returns to Idle (or
	// runs its pending function).
	OnPanic func(key string, recovered any)
}

// key holds the state of one key. Only its own mutex guards it; unrelated
// keys never contend.
type key struct {
	mu      sync.Mutex
	state   State
	pending func()
	idle    chan struct{} // closed on the transition back to Idle
	dead    bool          // removed from the map by Forget
}

// New creates a Throttle.
func New() *Throttle {
	return &Throttle{}
}

func (t *Throttle) key(name string) *key {
	if k, ok := t.keys.Load(name); ok {
		return k.(*key)
	}
	k, _ := t.keys.LoadOrStore(name, &key{})
	return k.(*key)
}

// Trigger requests an execution of fn for name. If name is idle, fn starts
// on a new goroutine. If name is running, fn is remembered and runs once the
// current execution finishes; a later trigger replaces an earlier pending fn.
func (t *Throttle) Trigger(name string, fn func()) {
	k := t.key(name)
	k.mu.Lock()
	for k.dead {
		k.mu.Unlock()
		k = t.key(name)
		k.mu.Lock()
	}

	switch k.state {
	case Idle:
		k.state = Running
		k.idle = make(chan struct{})
		k.mu.Unlock()
		go t.run(name, k, fn)
	default:
		k.state = RunningWithPending
		k.pending = fn
		k.mu.Unlock()
	}
}

func (t *Throttle) run(name string, k *key, fn func()) {
	for {
		t.invoke(name, fn)

		k.mu.Lock()
		if k.state != RunningWithPending {
			k.state = Idle
			close(k.idle)
			k.idle = nil
			k.mu.Unlock()
			return
		}
		k.state = Running
		fn = k.pending
		k.pending = nil
		k.mu.Unlock()
	}
}

func (t *Throttle) invoke(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil && t.OnPanic != nil {
			t.OnPanic(name, r)
		}
	}()
	fn()
}

// State returns the current state of name.
func (t *Throttle) State(name string) State {
	k, ok := t.keys.Load(name)
	if !ok {
		return Idle
	}
	kk := k.(*key)
	kk.mu.Lock()
	defer kk.mu.Unlock()
	return kk.state
}

// Wait blocks until name is idle, including any pending execution, or ctx
// is done.
func (t *Throttle) Wait(ctx context.Context, name string) error {
	k, ok := t.keys.Load(name)
	if !ok {
		return nil
	}
	kk := k.(*key)
	kk.mu.Lock()
	idle := kk.idle
	kk.mu.Unlock()
	if idle == nil {
		return nil
	}

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Forget drops the bookkeeping for an idle key. A running key is kept so
// its pending execution is not lost.
func (t *Throttle) Forget(name string) {
	k, ok := t.keys.Load(name)
	if !ok {
		return
	}
	kk := k.(*key)
	kk.mu.Lock()
	defer kk.mu.Unlock()
	if kk.state == Idle && t.keys.CompareAndDelete(name, kk) {
		kk.dead = true
	}
}
