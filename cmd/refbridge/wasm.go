package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/refbridge/heap"
	"github.com/wippyai/refbridge/wasmhost"
)

// runWasm instantiates a guest against the heap and calls fn. Root handles
// of the scenario's bindings are passed as arguments, in name order, up to
// the function's parameter count.
func runWasm(e *env, path, fn string) error {
	ctx := context.Background()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	if _, err := wasmhost.Instantiate(ctx, rt, e.heap); err != nil {
		return fmt.Errorf("host module: %w", err)
	}
	guest, err := rt.Instantiate(ctx, data)
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}
	defer guest.Close(ctx)

	f := guest.ExportedFunction(fn)
	if f == nil {
		return fmt.Errorf("guest does not export %q", fn)
	}

	var handles []uint64
	err = e.heap.Run(func(l *heap.Lock) error {
		for _, name := range e.realm.Bound() {
			w, _ := e.realm.Lookup(name)
			h, err := l.Root(w)
			if err != nil {
				return err
			}
			handles = append(handles, uint64(h))
		}
		return nil
	})
	if err != nil {
		return err
	}

	n := len(f.Definition().ParamTypes())
	if n > len(handles) {
		return fmt.Errorf("%s takes %d handles, only %d bound", fn, n, len(handles))
	}

	fmt.Printf("Calling %s%v...\n", fn, handles[:n])
	res, err := f.Call(ctx, handles[:n]...)
	if err != nil {
		return fmt.Errorf("call %s: %w", fn, err)
	}
	fmt.Printf("Result: %v\n", res)
	printHeap(e)
	return nil
}
