package bridge

// Host is the collector side of the bridge. A host owns the heap that
// wrapper objects live on and decides when they are traced and finalized.
type Host interface {
	// Register places w on the collector heap and enrolls it for trace and
	// finalize callbacks.
	Register(w *Wrapper) error

	// Unregister removes w from the collector's bookkeeping. Called by
	// Finalize before the wrapper's internal handle is released.
	Unregister(w *Wrapper)
}

// Lock is proof that the caller holds a host's engine lock. Wrap, Finalize
// and tracing must only run while a Lock is held.
type Lock interface {
	Host() Host
	Held() bool
}
