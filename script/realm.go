package script

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/refbridge/bridge"
	"github.com/wippyai/refbridge/errors"
	"github.com/wippyai/refbridge/heap"
)

// Exposer is implemented by payloads that want methods on their script
// object. Values are passed to the JS runtime as is; Go functions become
// callable.
type Exposer interface {
	Methods() map[string]any
}

// Realm is a JS global scope whose bindings are rooted wrappers on one heap.
// A bound wrapper stays alive while its global exists; unbinding it leaves
// the wrapper to the next collection.
type Realm struct {
	vm       *goja.Runtime
	heap     *heap.Heap
	bindings map[string]binding
	lock     *heap.Lock
	thrown   error
	out      io.Writer
}

type binding struct {
	w    *bridge.Wrapper
	root heap.RootHandle
}

// NewRealm creates a realm over h with the builtins installed.
func NewRealm(h *heap.Heap) *Realm {
	r := &Realm{
		vm:       goja.New(),
		heap:     h,
		bindings: make(map[string]binding),
		out:      io.Discard,
	}
	r.installBuiltins()
	return r
}

// WithOutput sets where console.log writes. Nil discards output.
func (r *Realm) WithOutput(w io.Writer) *Realm {
	if w == nil {
		w = io.Discard
	}
	r.out = w
	return r
}

// Heap returns the heap the realm binds wrappers on.
func (r *Realm) Heap() *heap.Heap {
	return r.heap
}

// Runtime returns the underlying JS runtime.
func (r *Realm) Runtime() *goja.Runtime {
	return r.vm
}

// Bind roots w and defines a global object for it named name.
func (r *Realm) Bind(l *heap.Lock, name string, w *bridge.Wrapper) error {
	if !l.Held() {
		return errors.NotLocked(errors.PhaseScript)
	}
	if name == "" {
		return errors.InvalidInput(errors.PhaseScript, "empty binding name")
	}
	if _, ok := r.bindings[name]; ok {
		return errors.InvalidInput(errors.PhaseScript, fmt.Sprintf("%q is already bound", name))
	}

	root, err := l.Root(w)
	if err != nil {
		return err
	}
	obj, err := r.object(w)
	if err != nil {
		_ = l.Unroot(root)
		return err
	}
	if err := r.vm.Set(name, obj); err != nil {
		_ = l.Unroot(root)
		return errors.Script("define global "+name, err)
	}
	r.bindings[name] = binding{w: w, root: root}

	Logger().Debug("bound wrapper",
		zap.String("name", name),
		zap.String("resource", w.Name()),
		zap.Uint64("id", w.ID()))
	return nil
}

// Unbind deletes the global and drops its root.
func (r *Realm) Unbind(l *heap.Lock, name string) error {
	if !l.Held() {
		return errors.NotLocked(errors.PhaseScript)
	}
	b, ok := r.bindings[name]
	if !ok {
		return errors.NotFound(errors.PhaseScript, "binding", name)
	}
	delete(r.bindings, name)
	r.vm.GlobalObject().Delete(name)

	// The root is gone already if the heap was closed.
	if _, ok := l.Resolve(b.root); ok {
		return l.Unroot(b.root)
	}
	return nil
}

// Lookup returns the wrapper bound to name.
func (r *Realm) Lookup(name string) (*bridge.Wrapper, bool) {
	b, ok := r.bindings[name]
	return b.w, ok
}

// Bound returns the bound names in sorted order.
func (r *Realm) Bound() []string {
	names := make([]string, 0, len(r.bindings))
	for name := range r.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run evaluates src with the heap's engine lock held.
func (r *Realm) Run(src string) (goja.Value, error) {
	return r.RunContext(context.Background(), src)
}

// RunContext evaluates src and interrupts it when ctx is done.
func (r *Realm) RunContext(ctx context.Context, src string) (goja.Value, error) {
	var result goja.Value
	err := r.heap.Run(func(l *heap.Lock) error {
		r.lock = l
		r.thrown = nil
		defer func() { r.lock = nil }()

		stop := context.AfterFunc(ctx, func() {
			r.vm.Interrupt(ctx.Err())
		})
		v, err := r.vm.RunString(src)
		if !stop() {
			r.vm.ClearInterrupt()
		}
		if err != nil {
			return r.scriptError(err)
		}
		result = v
		return nil
	})
	return result, err
}

// RunTimeout is RunContext with a deadline.
func (r *Realm) RunTimeout(src string, d time.Duration) (goja.Value, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return r.RunContext(ctx, src)
}

// object builds the script view of w. Script variables may outlive the
// binding, so every method goes through the wrapper and throws once it has
// been finalized; alive() keeps answering.
func (r *Realm) object(w *bridge.Wrapper) (*goja.Object, error) {
	obj := r.vm.NewObject()
	set := func(k string, v any) error {
		if err := obj.Set(k, v); err != nil {
			return errors.Script("define property "+k, err)
		}
		return nil
	}

	if err := set("id", w.ID()); err != nil {
		return nil, err
	}
	if err := set("name", w.Name()); err != nil {
		return nil, err
	}
	if err := set("strongCount", func() int {
		r.mustAlive(w)
		return w.Control().StrongCount()
	}); err != nil {
		return nil, err
	}
	if err := set("alive", func() bool { return w.Control().Alive() && !w.Finalized() }); err != nil {
		return nil, err
	}
	if e, ok := w.Control().Payload().(Exposer); ok {
		for k, v := range e.Methods() {
			val := r.vm.ToValue(v)
			if fn, ok := goja.AssertFunction(val); ok {
				val = r.vm.ToValue(r.guard(w, fn))
			}
			if err := set(k, val); err != nil {
				return nil, err
			}
		}
	}
	return obj, nil
}

func (r *Realm) guard(w *bridge.Wrapper, fn goja.Callable) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		r.mustAlive(w)
		v, err := fn(call.This, call.Arguments...)
		if err != nil {
			// Exceptions and interrupts propagate unchanged.
			panic(err)
		}
		return v
	}
}

func (r *Realm) mustAlive(w *bridge.Wrapper) {
	if w.Finalized() || !w.Control().Alive() {
		r.throw(errors.DeadPayload(errors.PhaseScript, w.Name(), w.ID()))
	}
}

func (r *Realm) installBuiltins() {
	r.vm.Set("gc", func(goja.FunctionCall) goja.Value {
		l := r.mustLock()
		stats, err := l.Collect()
		if err != nil {
			r.throw(err)
		}
		return r.vm.ToValue(stats.Finalized)
	})

	r.vm.Set("release", func(call goja.FunctionCall) goja.Value {
		l := r.mustLock()
		if err := r.Unbind(l, call.Argument(0).String()); err != nil {
			r.throw(err)
		}
		return goja.Undefined()
	})

	r.vm.Set("bound", func(goja.FunctionCall) goja.Value {
		names := r.Bound()
		vals := make([]any, len(names))
		for i, n := range names {
			vals[i] = n
		}
		return r.vm.NewArray(vals...)
	})

	r.vm.Set("live", func(goja.FunctionCall) goja.Value {
		return r.vm.ToValue(r.mustLock().Live())
	})

	console := r.vm.NewObject()
	console.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		line := strings.Join(parts, " ")
		fmt.Fprintln(r.out, line)
		Logger().Debug("console.log", zap.String("line", line))
		return goja.Undefined()
	})
	r.vm.Set("console", console)
}

func (r *Realm) mustLock() *heap.Lock {
	if r.lock == nil || !r.lock.Held() {
		r.throw(errors.NotLocked(errors.PhaseScript))
	}
	return r.lock
}

func (r *Realm) throw(err error) {
	r.thrown = err
	panic(r.vm.NewGoError(err))
}

// scriptError converts a goja failure into an *errors.Error. Errors thrown
// by builtins are kept as the cause.
func (r *Realm) scriptError(err error) error {
	var interrupted *goja.InterruptedError
	if stderrors.As(err, &interrupted) {
		return errors.Script("interrupted", err)
	}
	var ex *goja.Exception
	if stderrors.As(err, &ex) {
		if r.thrown != nil {
			return errors.Script(ex.Error(), r.thrown)
		}
		return errors.Script(ex.Error(), err)
	}
	return errors.Script("evaluation failed", err)
}
