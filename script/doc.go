// Package script exposes wrapped resources to JavaScript through goja.
//
// Each binding is a global object backed by a rooted wrapper:
//
//	r := script.NewRealm(h)
//	_ = h.Run(func(l *heap.Lock) error {
//		w, err := bridge.Wrap(l, sock)
//		if err != nil {
//			return err
//		}
//		return r.Bind(l, "sock", w)
//	})
//	v, err := r.Run(`release("sock"); gc()`)
//
// Builtins: gc() runs one collection pass and returns the number of
// wrappers it finalized, release(name) removes a binding, bound() lists
// binding names, live() counts registered wrappers and console.log writes
// to the realm's output.
package script
