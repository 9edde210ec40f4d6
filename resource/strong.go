package resource

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/refbridge/errors"
)

// Strong is a counted, owning reference to a resource payload.
//
// Each Strong must be released exactly once with Release or Close. Clones
// are independent handles: releasing one does not invalidate the others.
// Strong handles alone cannot reclaim cycles; cyclic structures are only
// reclaimed when every member is wrapped and traced by a collector.
type Strong[T any] struct {
	c        *Control
	released atomic.Bool
}

// New allocates a control block for payload with a strong count of one and
// returns the first strong handle.
func New[T any](payload T, opts ...Option) *Strong[T] {
	c := newControl(payload, opts)
	c.Notify(EventAllocated, nil)
	return &Strong[T]{c: c}
}

// Get returns the payload.
func (s *Strong[T]) Get() T {
	s.mustLive(errors.PhaseTrace)
	if s.c.destroyed.Load() {
		errors.Fatal(errors.DeadPayload(errors.PhaseTrace, s.c.name, s.c.id))
	}
	return s.c.payload.(T)
}

// Clone returns a new strong handle to the same resource.
func (s *Strong[T]) Clone() *Strong[T] {
	s.mustLive(errors.PhaseAlloc)
	s.c.incStrong()
	return &Strong[T]{c: s.c}
}

// Downgrade returns a weak handle to the same resource.
func (s *Strong[T]) Downgrade() *Weak[T] {
	s.mustLive(errors.PhaseAlloc)
	s.c.incWeak()
	return &Weak[T]{c: s.c}
}

// Release drops this handle. If it was the last strong reference the
// payload is torn down before Release returns; teardown failures are
// logged and reported to observers.
func (s *Strong[T]) Release() {
	if err := s.Close(); err != nil {
		Logger().Debug("release surfaced teardown failure",
			zap.String("resource", s.c.name),
			zap.Error(err))
	}
}

// Close drops this handle and returns the teardown failure, if this
// release destroyed the payload and its hook failed.
func (s *Strong[T]) Close() error {
	if !s.released.CompareAndSwap(false, true) {
		errors.Fatal(errors.DoubleRelease(errors.PhaseRelease, s.c.name, s.c.id))
	}
	return s.c.decStrong()
}

// Released reports whether this handle was released.
func (s *Strong[T]) Released() bool {
	return s.released.Load()
}

// IsWeak returns false.
func (s *Strong[T]) IsWeak() bool { return false }

// Control returns the shared control block.
func (s *Strong[T]) Control() *Control {
	return s.c
}

// StrongCount returns the resource's current strong count.
func (s *Strong[T]) StrongCount() int {
	return s.c.StrongCount()
}

// Trace reports this handle to v. Nil and released handles are skipped, so
// optional fields can be traced unconditionally.
func (s *Strong[T]) Trace(v Visitor) {
	if s == nil || s.released.Load() {
		return
	}
	v.VisitStrong(s)
}

func (s *Strong[T]) drop() error {
	if !s.released.CompareAndSwap(false, true) {
		return nil
	}
	return s.c.decStrong()
}

func (s *Strong[T]) mustLive(phase errors.Phase) {
	if s.released.Load() {
		errors.Fatal(errors.UseAfterRelease(phase, s.c.name, s.c.id))
	}
}
