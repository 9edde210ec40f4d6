package resource

// EventType identifies a resource lifecycle transition.
type EventType uint8

const (
	EventAllocated EventType = iota
	EventWrapped
	EventFinalized
	EventDestroyed
	EventFreed
	EventCondemned
)

func (t EventType) String() string {
	switch t {
	case EventAllocated:
		return "allocated"
	case EventWrapped:
		return "wrapped"
	case EventFinalized:
		return "finalized"
	case EventDestroyed:
		return "destroyed"
	case EventFreed:
		return "freed"
	case EventCondemned:
		return "condemned"
	default:
		return "unknown"
	}
}

// Event represents a resource lifecycle event.
// Err is set on EventDestroyed when the teardown hook failed.
type Event struct {
	Err  error
	Name string
	ID   uint64
	Type EventType
}

// Observer receives notifications about resource lifecycle events.
// Observers may be called from any goroutine that releases a handle.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }

// Dropper is optionally implemented by payloads that need cleanup.
// Drop runs exactly once, when the last strong reference goes away or when
// the collector condemns the payload. Embedded handles still reported by
// Trace are released by the core after Drop returns.
type Dropper interface {
	Drop() error
}

// Traceable is implemented by payloads that embed handles or wrapper
// references. Trace must forward the visitor to every such field:
//
//	func (p *Parent) Trace(v resource.Visitor) {
//		p.Child.Trace(v)
//		p.Optional.Trace(v) // nil handles are skipped
//		v.VisitObject(p.Callback)
//	}
//
// A field missing from Trace is invisible to the collector, which may then
// finalize a wrapper that is still referenced.
type Traceable interface {
	Trace(Visitor)
}

// Visitor receives the edges a Traceable exposes.
type Visitor interface {
	VisitStrong(h Handle)
	VisitWeak(h Handle)
	VisitObject(o Traceable)
}

// Handle is the type-erased view of a Strong or Weak handle.
type Handle interface {
	Control() *Control
	Released() bool
	IsWeak() bool

	// drop releases the handle unless it is already released.
	drop() error
}
