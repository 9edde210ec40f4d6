package heap

import (
	"github.com/wippyai/refbridge/bridge"
	"github.com/wippyai/refbridge/errors"
)

// Lock is the capability handed to Run callbacks. It satisfies bridge.Lock
// and stops being held when the callback returns.
type Lock struct {
	h    *Heap
	held bool
}

var _ bridge.Lock = (*Lock)(nil)

// Host returns the heap as a bridge host.
func (l *Lock) Host() bridge.Host {
	return l.h
}

// Held reports whether the engine lock is still held.
func (l *Lock) Held() bool {
	return l != nil && l.held
}

// Heap returns the heap this lock belongs to.
func (l *Lock) Heap() *Heap {
	return l.h
}

// Root adds w to the root table. A wrapper may be rooted more than once;
// each handle must be unrooted separately.
func (l *Lock) Root(w *bridge.Wrapper) (RootHandle, error) {
	if !l.Held() {
		return 0, errors.NotLocked(errors.PhaseHost)
	}
	if w == nil || w.Host() != bridge.Host(l.h) {
		return 0, errors.InvalidInput(errors.PhaseHost, "wrapper does not belong to this heap")
	}
	if w.Finalized() {
		return 0, errors.DeadPayload(errors.PhaseHost, w.Name(), w.ID())
	}
	return l.h.roots.insert(w), nil
}

// Unroot removes a root table entry.
func (l *Lock) Unroot(h RootHandle) error {
	if !l.Held() {
		return errors.NotLocked(errors.PhaseHost)
	}
	if _, ok := l.h.roots.remove(h); !ok {
		return errors.InvalidInput(errors.PhaseHost, "invalid root handle")
	}
	return nil
}

// Resolve returns the wrapper behind a root handle.
func (l *Lock) Resolve(h RootHandle) (*bridge.Wrapper, bool) {
	if !l.Held() {
		return nil, false
	}
	return l.h.roots.get(h)
}

// RootCount returns the number of live root table entries.
func (l *Lock) RootCount() int {
	return l.h.roots.count
}

// Live returns the number of registered wrappers.
func (l *Lock) Live() int {
	return len(l.h.live)
}

// Wrappers returns the registered wrappers in registration order.
func (l *Lock) Wrappers() []*bridge.Wrapper {
	return l.h.snapshot()
}

// Pass returns the number of passes run so far.
func (l *Lock) Pass() int {
	return l.h.pass
}
