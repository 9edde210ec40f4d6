// Package refbridge ties the lifetime of reference-counted native resources
// to a tracing garbage collector.
//
// Native code shares resources through strong and weak handles on a control
// block. A collector host exposes a resource by wrapping it; from then on
// the wrapper's own strong handle keeps the payload alive until the host
// proves the wrapper unreachable and finalizes it.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	refbridge/           Root package with the architecture overview
//	├── resource/        Control blocks, Strong and Weak handles, teardown
//	├── bridge/          Wrap, Tracer and Finalize callbacks for hosts
//	├── heap/            Reference mark-and-finalize host with a root table
//	├── script/          goja realm binding wrappers as JS globals
//	├── wasmhost/        wazero host module exposing root handles to guests
//	├── errors/          Structured error types for debugging
//	└── cmd/refbridge/   Scenario runner and interactive inspector
//
// # Quick Start
//
// Wrap a resource and let the heap dispose of it:
//
//	h := heap.New()
//	conn := resource.New(&Conn{addr: addr})
//
//	err := h.Run(func(l *heap.Lock) error {
//	    if _, err := bridge.Wrap(l, conn); err != nil {
//	        return err
//	    }
//	    conn.Release()
//	    _, err := l.Collect()
//	    return err
//	})
//
// # Disposal Order
//
// Finalizing a wrapper releases its handle. If that was the last strong
// reference the payload's Drop hook runs and the handles it embeds are
// released. A wrapped child held by a finalized parent is only finalized by
// the next pass; unwrapped children go with their parent. Unreferenced
// cycles of wrapped resources are reclaimed in a single pass.
package refbridge
