// Package resource provides reference-counted handles for natively owned
// resources that may later be exposed to a tracing-collector host.
//
// Every resource has a Control block holding an atomic strong count, an
// atomic weak count, the payload, and a slot for the host wrapper.
//
// # Handles
//
//	s := resource.New(&Socket{addr: addr})     // strong = 1
//	s2 := s.Clone()                            // strong = 2
//	w := s.Downgrade()                         // weak = 1
//
//	if up, ok := w.Upgrade(); ok {             // strong = 3
//		up.Get().Send(msg)
//		up.Release()
//	}
//
//	s2.Release()
//	s.Release()                                // payload torn down here
//
// Clone, Release and Upgrade are safe from any goroutine. When the last
// strong handle is released the payload's Drop hook runs synchronously on
// the releasing goroutine. A wrapped resource never reaches that point from
// user code alone: the wrapper's internal strong handle keeps it alive until
// the host finalizes the wrapper.
//
// # Tracing
//
// A payload that embeds handles implements Traceable and forwards the
// visitor to every handle field. The collector uses this to discover edges
// between wrapped resources; the core uses it as drop glue to release
// embedded handles when the payload is destroyed.
//
// # Observers
//
// Lifecycle events are delivered to observers passed at allocation:
//
//	drops := resource.NewCounter()
//	s := resource.New(&Socket{}, resource.WithObserver(drops))
//	s.Release()
//	drops.Destroyed("Socket") // 1
//
// # Invariant Violations
//
// Releasing a handle twice, using a released handle, or driving a count
// below zero panics with an *errors.Error. These are memory-safety bugs,
// not recoverable conditions.
package resource
