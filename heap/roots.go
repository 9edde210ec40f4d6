package heap

import "github.com/wippyai/refbridge/bridge"

// RootHandle names an entry in a heap's root table. The zero handle is
// never issued.
type RootHandle uint32

// rootTable holds wrappers the embedder keeps alive explicitly. Slots are
// recycled through a free list, so a handle is only meaningful until it is
// unrooted.
type rootTable struct {
	entries  []rootEntry
	freeList []RootHandle
	count    int
}

type rootEntry struct {
	w     *bridge.Wrapper
	valid bool
}

func newRootTable() rootTable {
	return rootTable{
		entries:  make([]rootEntry, 0, 64),
		freeList: make([]RootHandle, 0, 16),
	}
}

func (t *rootTable) insert(w *bridge.Wrapper) RootHandle {
	e := rootEntry{w: w, valid: true}
	t.count++

	if len(t.freeList) > 0 {
		h := t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.entries[h-1] = e
		return h
	}

	t.entries = append(t.entries, e)
	return RootHandle(len(t.entries))
}

func (t *rootTable) get(h RootHandle) (*bridge.Wrapper, bool) {
	if h == 0 || int(h) > len(t.entries) {
		return nil, false
	}
	e := t.entries[h-1]
	if !e.valid {
		return nil, false
	}
	return e.w, true
}

func (t *rootTable) remove(h RootHandle) (*bridge.Wrapper, bool) {
	w, ok := t.get(h)
	if !ok {
		return nil, false
	}
	t.entries[h-1] = rootEntry{}
	t.freeList = append(t.freeList, h)
	t.count--
	return w, true
}

// each calls fn for every live entry in handle order.
func (t *rootTable) each(fn func(RootHandle, *bridge.Wrapper)) {
	for i, e := range t.entries {
		if e.valid {
			fn(RootHandle(i+1), e.w)
		}
	}
}

// dropWrapper removes every entry that refers to w.
func (t *rootTable) dropWrapper(w *bridge.Wrapper) {
	for i, e := range t.entries {
		if e.valid && e.w == w {
			t.remove(RootHandle(i + 1))
		}
	}
}

func (t *rootTable) reset() {
	t.entries = t.entries[:0]
	t.freeList = t.freeList[:0]
	t.count = 0
}
