// Package bridge connects reference-counted resources to a tracing
// collector.
//
// Three callbacks make up the contract with a host:
//
//	Wrap      promote a strong handle into a heap-resident Wrapper
//	Trace     expose a wrapper's reference edges during a mark pass
//	Finalize  release the wrapper's strong handle once it is unreachable
//
// # Wrapping
//
// A Wrapper owns one strong handle cloned from the handle passed to Wrap.
// From then on the resource has two liveness paths: external strong handles
// and the wrapper, whose lifetime is governed only by the host's
// reachability analysis. Releasing every external handle therefore does not
// destroy the payload; the host's finalization of the wrapper does.
//
//	err := h.Run(func(l *heap.Lock) error {
//		w, err := bridge.Wrap(l, sock)
//		if err != nil {
//			return err
//		}
//		_, err = l.Root(w)
//		return err
//	})
//
// # Tracing
//
// The Tracer turns a payload's fields into edges between wrappers. Strong
// and weak handles whose target is wrapped, and Member fields, all yield
// edges. Handles to unwrapped resources are traced through.
//
// # Finalization
//
// Finalize runs at most once per wrapper. Tearing down a parent releases
// the handles embedded in it, but a wrapped child is only finalized by a
// later pass, once the host re-evaluates reachability. Disposing of a chain
// of depth n takes n passes.
package bridge
