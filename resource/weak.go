package resource

import (
	"sync/atomic"

	"github.com/wippyai/refbridge/errors"
)

// Weak references a resource without keeping its payload alive.
type Weak[T any] struct {
	c        *Control
	released atomic.Bool
}

// Upgrade returns a new strong handle iff the payload is still alive at the
// time of the call. A false result is the normal outcome for a resource that
// has already been torn down.
func (w *Weak[T]) Upgrade() (*Strong[T], bool) {
	w.mustLive()
	if !w.c.tryIncStrong() {
		return nil, false
	}
	return &Strong[T]{c: w.c}, true
}

// Clone returns a new weak handle to the same resource.
func (w *Weak[T]) Clone() *Weak[T] {
	w.mustLive()
	w.c.incWeak()
	return &Weak[T]{c: w.c}
}

// Release drops this weak handle.
func (w *Weak[T]) Release() {
	if !w.released.CompareAndSwap(false, true) {
		errors.Fatal(errors.DoubleRelease(errors.PhaseRelease, w.c.name, w.c.id))
	}
	w.c.decWeak()
}

// Close is Release for use with defer and io.Closer-shaped code.
func (w *Weak[T]) Close() error {
	w.Release()
	return nil
}

// Released reports whether this handle was released.
func (w *Weak[T]) Released() bool {
	return w.released.Load()
}

// IsWeak returns true.
func (w *Weak[T]) IsWeak() bool { return true }

// Control returns the shared control block.
func (w *Weak[T]) Control() *Control {
	return w.c
}

// StrongCount returns the resource's current strong count.
func (w *Weak[T]) StrongCount() int {
	return w.c.StrongCount()
}

// WeakCount returns the resource's current weak count.
func (w *Weak[T]) WeakCount() int {
	return w.c.WeakCount()
}

// Trace reports this handle to v. Nil and released handles are skipped.
func (w *Weak[T]) Trace(v Visitor) {
	if w == nil || w.released.Load() {
		return
	}
	v.VisitWeak(w)
}

func (w *Weak[T]) drop() error {
	if w.released.CompareAndSwap(false, true) {
		w.c.decWeak()
	}
	return nil
}

func (w *Weak[T]) mustLive() {
	if w.released.Load() {
		errors.Fatal(errors.UseAfterRelease(errors.PhaseUpgrade, w.c.name, w.c.id))
	}
}
