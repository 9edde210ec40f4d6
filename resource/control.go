package resource

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/refbridge/errors"
)

// The strong word packs the count with a condemned flag so that Upgrade can
// observe both in one atomic load.
const (
	condemnedBit = uint64(1) << 63
	countMask    = condemnedBit - 1
)

var nextID atomic.Uint64

// Control is the bookkeeping record shared by every handle to one resource.
//
// The payload exists iff the strong count is above zero, except while a
// condemned cycle is being torn down. The wrapper slot belongs to the host
// that wrapped the resource and is only touched under its engine lock.
type Control struct {
	payload   any
	wrapper   any
	observers []Observer
	name      string
	id        uint64
	strong    atomic.Uint64
	weak      atomic.Int64
	destroyed atomic.Bool
	freed     atomic.Bool
}

// Option configures a control block at allocation time.
type Option func(*Control)

// WithName overrides the resource name used in events, logs and errors.
// Defaults to the payload's type name.
func WithName(name string) Option {
	return func(c *Control) {
		c.name = name
	}
}

// WithObserver subscribes o to this resource's lifecycle events.
func WithObserver(o Observer) Option {
	return func(c *Control) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

func newControl(payload any, opts []Option) *Control {
	c := &Control{
		payload: payload,
		id:      nextID.Add(1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.name == "" {
		c.name = typeName(payload)
	}
	c.strong.Store(1)
	return c
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "nil"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return fmt.Sprintf("%T", v)
}

// ID returns the process-unique identifier of this control block.
func (c *Control) ID() uint64 { return c.id }

// Name returns the resource name.
func (c *Control) Name() string { return c.name }

// StrongCount returns the current number of strong handles.
func (c *Control) StrongCount() int {
	return int(c.strong.Load() & countMask)
}

// WeakCount returns the current number of weak handles.
func (c *Control) WeakCount() int {
	return int(c.weak.Load())
}

// Alive reports whether the payload has not been destroyed.
func (c *Control) Alive() bool {
	return !c.destroyed.Load()
}

// Freed reports whether both counts reached zero after destruction.
func (c *Control) Freed() bool {
	return c.freed.Load()
}

// Condemned reports whether a collector condemned this resource.
func (c *Control) Condemned() bool {
	return c.strong.Load()&condemnedBit != 0
}

// Payload returns the payload, or nil once destroyed.
func (c *Control) Payload() any {
	if c.destroyed.Load() {
		return nil
	}
	return c.payload
}

// Wrapper returns the host wrapper recorded for this resource, if any.
// Must be called under the engine lock of the wrapping host.
func (c *Control) Wrapper() any {
	return c.wrapper
}

// SetWrapper records or, with nil, clears the host wrapper.
// Must be called under the engine lock of the wrapping host.
func (c *Control) SetWrapper(w any) {
	c.wrapper = w
}

// Trace forwards v to the payload's fields. No-op once destroyed or when
// the payload embeds nothing. The caller must hold a strong reference; use
// TracePinned otherwise.
func (c *Control) Trace(v Visitor) {
	if c.destroyed.Load() {
		return
	}
	if t, ok := c.payload.(Traceable); ok {
		t.Trace(v)
	}
}

// TracePinned holds a temporary strong reference while forwarding v to the
// payload's fields, so a release on another goroutine cannot tear the
// payload down mid-trace. Returns false without tracing if the payload is
// already gone or condemned. If the pin was the last strong reference the
// payload is torn down on the calling goroutine and the teardown error is
// returned.
func (c *Control) TracePinned(v Visitor) (bool, error) {
	if !c.tryIncStrong() {
		return false, nil
	}
	if t, ok := c.payload.(Traceable); ok {
		t.Trace(v)
	}
	return true, c.decStrong()
}

// Notify delivers a lifecycle event to this resource's observers.
func (c *Control) Notify(t EventType, err error) {
	if len(c.observers) == 0 {
		return
	}
	e := Event{Type: t, Name: c.name, ID: c.id, Err: err}
	for _, o := range c.observers {
		o.OnResourceEvent(e)
	}
}

// Condemn marks the resource as unreachable garbage held only by a cycle.
// Weak upgrades fail from this point on. Returns false if the payload is
// already condemned or destroyed.
func (c *Control) Condemn() bool {
	for {
		v := c.strong.Load()
		if v&condemnedBit != 0 || v&countMask == 0 {
			return false
		}
		if c.strong.CompareAndSwap(v, v|condemnedBit) {
			c.Notify(EventCondemned, nil)
			return true
		}
	}
}

// Reap destroys a condemned payload while strong handles embedded in other
// condemned payloads still point at it. Those handles are released by the
// drop glue of their holders.
func (c *Control) Reap() error {
	if !c.Condemned() {
		errors.Fatal(errors.New(errors.PhaseTeardown, errors.KindInvalidInput).
			Resource(c.name, c.id).
			Detail("reap of a resource that was not condemned").
			Build())
	}
	return c.destroy()
}

func (c *Control) incStrong() {
	c.strong.Add(1)
}

// decStrong drops one strong reference and tears the payload down on the
// 1 -> 0 transition, on the calling goroutine.
func (c *Control) decStrong() error {
	for {
		v := c.strong.Load()
		n := v & countMask
		if n == 0 {
			errors.Fatal(errors.CountUnderflow(errors.PhaseRelease, c.name, c.id, "strong"))
		}
		if !c.strong.CompareAndSwap(v, v-1) {
			continue
		}
		if n > 1 {
			return nil
		}
		err := c.destroy()
		c.maybeFree()
		return err
	}
}

// tryIncStrong is the upgrade primitive: it succeeds iff the payload is
// still alive and not condemned.
func (c *Control) tryIncStrong() bool {
	for {
		v := c.strong.Load()
		if v&condemnedBit != 0 || v&countMask == 0 {
			return false
		}
		if c.strong.CompareAndSwap(v, v+1) {
			return true
		}
	}
}

func (c *Control) incWeak() {
	c.weak.Add(1)
}

func (c *Control) decWeak() {
	n := c.weak.Add(-1)
	if n < 0 {
		errors.Fatal(errors.CountUnderflow(errors.PhaseRelease, c.name, c.id, "weak"))
	}
	if n == 0 {
		c.maybeFree()
	}
}

func (c *Control) maybeFree() {
	if c.strong.Load()&countMask != 0 || c.weak.Load() != 0 {
		return
	}
	if c.freed.CompareAndSwap(false, true) {
		c.Notify(EventFreed, nil)
	}
}

// destroy runs the teardown hook, then releases every handle the payload
// still exposes through Trace. Runs at most once.
func (c *Control) destroy() error {
	if !c.destroyed.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	if d, ok := c.payload.(Dropper); ok {
		err = c.runDrop(d)
	}
	if t, ok := c.payload.(Traceable); ok {
		g := &dropGlue{}
		t.Trace(g)
		err = multierr.Append(err, g.err)
	}
	c.payload = nil

	if err != nil {
		Logger().Warn("resource teardown failed",
			zap.String("resource", c.name),
			zap.Uint64("id", c.id),
			zap.Error(err))
	}
	c.Notify(EventDestroyed, err)
	return err
}

func (c *Control) runDrop(d Dropper) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.TeardownFailed(c.name, c.id, fmt.Errorf("panic: %v", r))
		}
	}()
	if derr := d.Drop(); derr != nil {
		return errors.TeardownFailed(c.name, c.id, derr)
	}
	return nil
}

// dropGlue releases embedded handles of a destroyed payload.
type dropGlue struct {
	err error
}

func (g *dropGlue) VisitStrong(h Handle) {
	g.err = multierr.Append(g.err, h.drop())
}

func (g *dropGlue) VisitWeak(h Handle) {
	g.err = multierr.Append(g.err, h.drop())
}

// VisitObject is a no-op: collector objects are owned by the collector.
func (g *dropGlue) VisitObject(Traceable) {}
