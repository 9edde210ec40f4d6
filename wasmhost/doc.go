// Package wasmhost exposes a heap's root table to WebAssembly guests as the
// "refbridge" host module on a wazero runtime.
//
// A guest never sees wrappers or native handles, only root handles. Cloning
// a handle adds a root and dropping removes one; the wrapper is finalized by
// the first collection that finds it unrooted and unreferenced.
package wasmhost
