package wasmhost

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/refbridge/heap"
)

// ModuleName is the import module guests use.
const ModuleName = "refbridge"

var i32 = []api.ValueType{api.ValueTypeI32}

// Instantiate registers the refbridge host module on rt. Guests address
// wrappers through root handles of h:
//
//	clone(handle i32) -> i32         new root for the same wrapper, 0 if invalid
//	drop(handle i32) -> i32          1 if the root was removed, 0 if invalid
//	strong_count(handle i32) -> i32  strong count of the resource, -1 if invalid
//	collect() -> i32                 wrappers finalized by one pass, -1 on error
//	live() -> i32                    registered wrappers
//
// Each call takes the heap's engine lock, so guests must not be invoked
// from inside Heap.Run.
func Instantiate(ctx context.Context, rt wazero.Runtime, h *heap.Heap) (api.Module, error) {
	b := &bindings{heap: h}

	return rt.NewHostModuleBuilder(ModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.clone), i32, i32).
		Export("clone").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.drop), i32, i32).
		Export("drop").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.strongCount), i32, i32).
		Export("strong_count").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.collect), nil, i32).
		Export("collect").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(b.live), nil, i32).
		Export("live").
		Instantiate(ctx)
}

type bindings struct {
	heap *heap.Heap
}

func (b *bindings) clone(_ context.Context, _ api.Module, stack []uint64) {
	h := heap.RootHandle(api.DecodeU32(stack[0]))
	var out heap.RootHandle
	_ = b.heap.Run(func(l *heap.Lock) error {
		w, ok := l.Resolve(h)
		if !ok {
			return nil
		}
		root, err := l.Root(w)
		if err != nil {
			Logger().Debug("clone failed", zap.Uint32("handle", uint32(h)), zap.Error(err))
			return nil
		}
		out = root
		return nil
	})
	stack[0] = api.EncodeU32(uint32(out))
}

func (b *bindings) drop(_ context.Context, _ api.Module, stack []uint64) {
	h := heap.RootHandle(api.DecodeU32(stack[0]))
	var ok bool
	_ = b.heap.Run(func(l *heap.Lock) error {
		ok = l.Unroot(h) == nil
		return nil
	})
	stack[0] = boolResult(ok)
}

func (b *bindings) strongCount(_ context.Context, _ api.Module, stack []uint64) {
	h := heap.RootHandle(api.DecodeU32(stack[0]))
	n := int32(-1)
	_ = b.heap.Run(func(l *heap.Lock) error {
		if w, ok := l.Resolve(h); ok {
			n = int32(w.Control().StrongCount())
		}
		return nil
	})
	stack[0] = api.EncodeI32(n)
}

func (b *bindings) collect(_ context.Context, _ api.Module, stack []uint64) {
	stats, err := b.heap.Collect()
	if err != nil {
		Logger().Warn("guest collection failed", zap.Int("pass", stats.Pass), zap.Error(err))
		stack[0] = api.EncodeI32(-1)
		return
	}
	stack[0] = api.EncodeI32(int32(stats.Finalized))
}

func (b *bindings) live(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = api.EncodeI32(int32(b.heap.Live()))
}

func boolResult(ok bool) uint64 {
	if ok {
		return 1
	}
	return 0
}
