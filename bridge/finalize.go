package bridge

import (
	"go.uber.org/zap"

	"github.com/wippyai/refbridge/errors"
	"github.com/wippyai/refbridge/resource"
)

// Finalize is the callback a host invokes once it has proven w unreachable.
//
// The wrapper is detached from its control block and unregistered, then its
// internal strong handle is released. If that was the last strong reference
// the payload is torn down before Finalize returns and any teardown failure
// is returned; the host's bookkeeping is already consistent at that point.
// Finalizing the same wrapper twice is an invariant violation.
func Finalize(l Lock, w *Wrapper) error {
	if l == nil || !l.Held() {
		return errors.NotLocked(errors.PhaseFinalize)
	}
	if l.Host() != w.host {
		return errors.CrossContext(w.control.Name(), w.control.ID())
	}
	if w.finalized {
		errors.Fatal(errors.DoubleFinalize(w.control.Name(), w.control.ID()))
	}
	w.finalized = true

	if cur, ok := WrapperOf(w.control); ok && cur == w {
		w.control.SetWrapper(nil)
	}
	w.host.Unregister(w)
	w.control.Notify(resource.EventFinalized, nil)

	err := w.ref.Close()
	Logger().Debug("finalized wrapper",
		zap.String("resource", w.control.Name()),
		zap.Uint64("id", w.control.ID()),
		zap.Int("strong", w.control.StrongCount()),
		zap.Bool("destroyed", !w.control.Alive()),
		zap.Error(err))
	return err
}
