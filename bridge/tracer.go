package bridge

import (
	"reflect"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/refbridge/resource"
)

// EdgeKind is the kind of field an edge was discovered through.
type EdgeKind uint8

const (
	EdgeStrong EdgeKind = iota
	EdgeWeak
	EdgeMember
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeStrong:
		return "strong"
	case EdgeWeak:
		return "weak"
	case EdgeMember:
		return "member"
	default:
		return "unknown"
	}
}

// Edge is a reference from a traced wrapper to another wrapper on the same
// host. Direct is false when the reference was found inside an unwrapped
// resource that the traced payload holds.
type Edge struct {
	To     *Wrapper
	Kind   EdgeKind
	Direct bool
}

// Tracer is the visitor a host runs over each live wrapper. Strong, weak
// and member fields that lead to a wrapper on the same host are reported
// as edges; handles to unwrapped resources are traced through so wrappers
// held by unwrapped intermediates stay reachable.
//
// Unwrapped resources are pinned while traced. A release racing the pass
// on another goroutine may leave the pin as the last strong reference, in
// which case the resource is torn down by the tracer; see Err.
type Tracer struct {
	host    Host
	edge    func(Edge)
	visited map[any]struct{}
	depth   int
	err     error
}

// NewTracer returns a tracer that reports edges on host to fn.
func NewTracer(host Host, fn func(Edge)) *Tracer {
	return &Tracer{
		host:    host,
		edge:    fn,
		visited: make(map[any]struct{}),
	}
}

// TraceWrapper reports every edge reachable from w's payload.
func (t *Tracer) TraceWrapper(w *Wrapper) {
	clear(t.visited)
	t.depth = 0
	t.visited[w.control] = struct{}{}
	w.Trace(t)
}

// Err returns the teardown failures of resources whose last strong
// reference was dropped by the tracer itself.
func (t *Tracer) Err() error {
	return t.err
}

func (t *Tracer) VisitStrong(h resource.Handle) {
	t.visitControl(h.Control(), EdgeStrong)
}

func (t *Tracer) VisitWeak(h resource.Handle) {
	t.visitControl(h.Control(), EdgeWeak)
}

func (t *Tracer) VisitObject(o resource.Traceable) {
	switch x := o.(type) {
	case *Wrapper:
		if x != nil {
			t.report(x, EdgeMember)
		}
	case resource.Handle:
		// Strong and Weak skip nil and released handles themselves.
		o.Trace(t)
	default:
		if o == nil || !t.enter(o) {
			return
		}
		t.depth++
		o.Trace(t)
		t.depth--
	}
}

func (t *Tracer) visitControl(c *resource.Control, kind EdgeKind) {
	if w, ok := WrapperOf(c); ok {
		t.report(w, kind)
		return
	}
	if !t.enter(c) {
		return
	}
	t.depth++
	_, err := c.TracePinned(t)
	t.depth--
	if err != nil {
		Logger().Warn("resource torn down while traced",
			zap.String("resource", c.Name()),
			zap.Uint64("id", c.ID()),
			zap.Error(err))
		t.err = multierr.Append(t.err, err)
	}
}

func (t *Tracer) report(w *Wrapper, kind EdgeKind) {
	if w.finalized || w.host != t.host {
		return
	}
	t.edge(Edge{To: w, Kind: kind, Direct: t.depth == 0})
}

// enter records key as visited and reports whether it was new. Values of
// non-comparable types are always entered.
func (t *Tracer) enter(key any) bool {
	if !reflect.TypeOf(key).Comparable() {
		return true
	}
	if _, seen := t.visited[key]; seen {
		return false
	}
	t.visited[key] = struct{}{}
	return true
}
