package bridge

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/refbridge/errors"
	"github.com/wippyai/refbridge/resource"
)

// internalRef is the wrapper's own strong handle.
type internalRef interface {
	resource.Handle
	Close() error
}

// Wrapper is the collector-heap object that exposes one resource to the
// host. It owns exactly one strong handle; its own liveness is decided by
// the host's reachability analysis, never by the native counts.
type Wrapper struct {
	ref       internalRef
	control   *resource.Control
	host      Host
	finalized bool
}

// Wrap promotes s into a wrapper registered with the lock's host.
//
// Wrapping is idempotent per host: if the resource already has a wrapper on
// this host that wrapper is returned and no count changes. Otherwise the
// wrapper stores a clone of s, so the strong count grows by one and the
// payload survives the release of every external handle until the host
// finalizes the wrapper.
func Wrap[T any](l Lock, s *resource.Strong[T]) (*Wrapper, error) {
	if l == nil || !l.Held() {
		return nil, errors.NotLocked(errors.PhaseWrap)
	}
	c := s.Control()
	if s.Released() {
		errors.Fatal(errors.UseAfterRelease(errors.PhaseWrap, c.Name(), c.ID()))
	}
	if !c.Alive() || c.Condemned() {
		return nil, errors.DeadPayload(errors.PhaseWrap, c.Name(), c.ID())
	}

	host := l.Host()
	if existing, ok := c.Wrapper().(*Wrapper); ok && existing != nil {
		if existing.host != host {
			return nil, errors.CrossContext(c.Name(), c.ID())
		}
		return existing, nil
	}

	w := &Wrapper{
		ref:     s.Clone(),
		control: c,
		host:    host,
	}
	c.SetWrapper(w)

	if err := host.Register(w); err != nil {
		c.SetWrapper(nil)
		w.finalized = true
		_ = w.ref.Close()
		return nil, errors.Registration(c.Name(), c.ID(), err)
	}

	c.Notify(resource.EventWrapped, nil)
	Logger().Debug("wrapped resource",
		zap.String("resource", c.Name()),
		zap.Uint64("id", c.ID()),
		zap.Int("strong", c.StrongCount()))
	return w, nil
}

// WrapperOf returns the wrapper recorded for a resource, if any.
// Must be called under the engine lock.
func WrapperOf(c *resource.Control) (*Wrapper, bool) {
	w, ok := c.Wrapper().(*Wrapper)
	return w, ok && w != nil
}

// Unwrap returns the wrapped payload as T.
func Unwrap[T any](w *Wrapper) (T, error) {
	var zero T
	if w.finalized {
		return zero, errors.DeadPayload(errors.PhaseWrap, w.control.Name(), w.control.ID())
	}
	v, ok := w.control.Payload().(T)
	if !ok {
		return zero, errors.TypeMismatch(errors.PhaseWrap, w.control.Name(), w.control.ID(), typeName[T]())
	}
	return v, nil
}

// Strong returns a new external strong handle cloned from the wrapper's
// internal one. The caller owns the returned handle.
func Strong[T any](w *Wrapper) (*resource.Strong[T], error) {
	if w.finalized {
		return nil, errors.DeadPayload(errors.PhaseWrap, w.control.Name(), w.control.ID())
	}
	s, ok := w.ref.(*resource.Strong[T])
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseWrap, w.control.Name(), w.control.ID(), typeName[T]())
	}
	return s.Clone(), nil
}

// Control returns the wrapped resource's control block.
func (w *Wrapper) Control() *resource.Control {
	return w.control
}

// Host returns the host the wrapper lives on.
func (w *Wrapper) Host() Host {
	return w.host
}

// Name returns the wrapped resource's name.
func (w *Wrapper) Name() string {
	return w.control.Name()
}

// ID returns the wrapped resource's control block ID.
func (w *Wrapper) ID() uint64 {
	return w.control.ID()
}

// Finalized reports whether the host has finalized this wrapper.
func (w *Wrapper) Finalized() bool {
	return w.finalized
}

// Trace forwards v to every field of the wrapped payload. Hosts call it on
// each live wrapper during the mark phase.
func (w *Wrapper) Trace(v resource.Visitor) {
	if w.finalized {
		return
	}
	w.control.Trace(v)
}

func typeName[T any]() string {
	var zero T
	return fmt.Sprintf("%T", zero)
}
