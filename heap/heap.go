package heap

import (
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/refbridge/bridge"
	"github.com/wippyai/refbridge/errors"
)

const defaultMaxPasses = 16

// Heap is a mark-and-finalize collector for bridge wrappers. All access to
// its wrappers goes through Run, which holds the engine lock.
type Heap struct {
	mu        sync.Mutex
	logger    *zap.Logger
	hook      func(Stats)
	maxPasses int

	order      []*bridge.Wrapper
	live       map[*bridge.Wrapper]uint64
	seq        uint64
	roots      rootTable
	pass       int
	collecting bool
	closed     bool
}

// New creates an empty heap.
func New() *Heap {
	return &Heap{
		maxPasses: defaultMaxPasses,
		live:      make(map[*bridge.Wrapper]uint64),
		roots:     newRootTable(),
	}
}

// WithLogger sets the logger used for collection passes.
func (h *Heap) WithLogger(l *zap.Logger) *Heap {
	h.logger = l
	return h
}

// WithCollectHook registers fn to be called after every collection pass.
func (h *Heap) WithCollectHook(fn func(Stats)) *Heap {
	h.hook = fn
	return h
}

// WithMaxPasses bounds CollectUntilStable.
func (h *Heap) WithMaxPasses(n int) *Heap {
	if n > 0 {
		h.maxPasses = n
	}
	return h
}

func (h *Heap) log() *zap.Logger {
	if h.logger != nil {
		return h.logger
	}
	return Logger()
}

// Run calls fn with the engine lock held. The Lock must not be retained
// after fn returns.
func (h *Heap) Run(fn func(*Lock) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	l := &Lock{h: h, held: true}
	defer func() { l.held = false }()
	return fn(l)
}

// Collect runs one collection pass.
func (h *Heap) Collect() (Stats, error) {
	var stats Stats
	err := h.Run(func(l *Lock) error {
		var err error
		stats, err = l.Collect()
		return err
	})
	return stats, err
}

// CollectUntilStable runs passes until one finalizes nothing.
func (h *Heap) CollectUntilStable() ([]Stats, error) {
	var stats []Stats
	err := h.Run(func(l *Lock) error {
		var err error
		stats, err = l.CollectUntilStable()
		return err
	})
	return stats, err
}

// Live returns the number of registered wrappers.
func (h *Heap) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.live)
}

// Close finalizes every wrapper regardless of roots, reclaims dead cycles
// and stops accepting registrations.
func (h *Heap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	l := &Lock{h: h, held: true}
	defer func() { l.held = false }()

	h.roots.reset()
	var err error
	for pass := 0; len(h.live) > 0 && pass < h.maxPasses; pass++ {
		_, perr := l.collect(true)
		err = multierr.Append(err, perr)
	}
	h.closed = true
	h.log().Debug("heap closed", zap.Int("leaked", len(h.live)))
	return err
}

// Register implements bridge.Host.
func (h *Heap) Register(w *bridge.Wrapper) error {
	if h.closed {
		return errors.Closed(errors.PhaseHost, "heap")
	}
	h.seq++
	h.live[w] = h.seq
	h.order = append(h.order, w)
	return nil
}

// Unregister implements bridge.Host.
func (h *Heap) Unregister(w *bridge.Wrapper) {
	if _, ok := h.live[w]; !ok {
		return
	}
	delete(h.live, w)
	if h.roots.count > 0 {
		h.roots.dropWrapper(w)
	}
}

// snapshot returns the registered wrappers in registration order and
// compacts the order list.
func (h *Heap) snapshot() []*bridge.Wrapper {
	ws := make([]*bridge.Wrapper, 0, len(h.live))
	for _, w := range h.order {
		if _, ok := h.live[w]; ok {
			ws = append(ws, w)
		}
	}
	h.order = append(h.order[:0], ws...)
	return ws
}
