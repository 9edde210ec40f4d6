package heap

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/refbridge/bridge"
	"github.com/wippyai/refbridge/errors"
	"github.com/wippyai/refbridge/resource"
)

// Stats summarizes one collection pass.
type Stats struct {
	Pass      int
	Wrappers  int
	Roots     int
	Marked    int
	Finalized int
	Condemned int
}

// Collect runs one pass: trace every registered wrapper, mark from the
// roots, finalize unmarked wrappers in registration order, then reclaim
// cycles that finalization left with no outside references.
//
// A wrapper is a root if it is in the root table or if its resource has
// strong references other than the wrapper's own handle and fields of
// wrappers in the same strongly connected component.
//
// Teardown failures do not stop the pass; they are aggregated into the
// returned error. Calling Collect from a teardown hook while a pass is
// running returns a reentrant error.
func (l *Lock) Collect() (Stats, error) {
	if !l.Held() {
		return Stats{}, errors.NotLocked(errors.PhaseCollect)
	}
	return l.collect(false)
}

// CollectUntilStable runs passes until one neither finalizes nor condemns
// anything. Releasing a chain of n wrapped resources takes n passes.
func (l *Lock) CollectUntilStable() ([]Stats, error) {
	if !l.Held() {
		return nil, errors.NotLocked(errors.PhaseCollect)
	}
	if l.h.collecting {
		return nil, errors.Reentrant()
	}

	var all []Stats
	var err error
	for len(all) < l.h.maxPasses {
		s, perr := l.collect(false)
		err = multierr.Append(err, perr)
		all = append(all, s)
		if s.Finalized == 0 && s.Condemned == 0 {
			return all, err
		}
	}
	return all, multierr.Append(err, errors.New(errors.PhaseCollect, errors.KindPassLimitReached).
		Detail("still finalizing after %d passes", l.h.maxPasses).
		Build())
}

func (l *Lock) collect(force bool) (Stats, error) {
	h := l.h
	if h.collecting {
		return Stats{}, errors.Reentrant()
	}
	h.collecting = true
	defer func() { h.collecting = false }()
	h.pass++

	ws := h.snapshot()
	g, err := buildGraph(h, ws)
	stats := Stats{Pass: h.pass, Wrappers: len(ws)}

	if !force {
		h.roots.each(func(_ RootHandle, w *bridge.Wrapper) {
			if i, ok := g.index[w]; ok {
				g.nodes[i].root = true
			}
		})
		for i := range g.nodes {
			if !g.nodes[i].root && g.externalRefs(i) > 0 {
				g.nodes[i].root = true
			}
		}
	}
	for i := range g.nodes {
		if g.nodes[i].root {
			stats.Roots++
		}
	}
	stats.Marked = g.markFrom()

	for i := range g.nodes {
		n := &g.nodes[i]
		if n.marked || n.w.Finalized() {
			continue
		}
		err = multierr.Append(err, bridge.Finalize(l, n.w))
		stats.Finalized++
	}

	condemned, cerr := g.reclaimCycles()
	stats.Condemned = condemned
	err = multierr.Append(err, cerr)

	h.log().Debug("collection pass",
		zap.Int("pass", stats.Pass),
		zap.Int("wrappers", stats.Wrappers),
		zap.Int("roots", stats.Roots),
		zap.Int("marked", stats.Marked),
		zap.Int("finalized", stats.Finalized),
		zap.Int("condemned", stats.Condemned),
		zap.Error(err))
	if err != nil {
		h.log().Warn("teardown failures during collection",
			zap.Int("pass", stats.Pass),
			zap.Int("count", len(multierr.Errors(err))))
	}
	if h.hook != nil {
		h.hook(stats)
	}
	return stats, err
}

// reclaimCycles condemns and destroys the payloads of cyclic components
// whose wrappers were all finalized in this pass and whose remaining
// strong references all come from fields of the component's own members.
func (g *graph) reclaimCycles() (int, error) {
	var condemned int
	var err error

	for _, members := range g.comps {
		if !g.nodes[members[0]].cyclic || !g.unreachable(members) {
			continue
		}

		counter := &ownedCounter{targets: make(map[*resource.Control]int, len(members))}
		var alive []*resource.Control
		for _, i := range members {
			c := g.nodes[i].w.Control()
			if c.Alive() && !c.Condemned() {
				alive = append(alive, c)
				counter.targets[c] = 0
			}
		}
		if len(alive) == 0 {
			continue
		}
		// A member that cannot be pinned is already being torn down by a
		// release elsewhere; leave the component to a later pass.
		held := false
		for _, c := range alive {
			ok, terr := c.TracePinned(counter)
			err = multierr.Append(err, terr)
			held = held || !ok
		}
		for _, c := range alive {
			if c.StrongCount() != counter.targets[c] {
				held = true
				break
			}
		}
		if held {
			Logger().Debug("cycle still referenced from outside",
				zap.String("resource", alive[0].Name()),
				zap.Int("members", len(alive)))
			continue
		}

		for _, c := range alive {
			if c.Condemn() {
				condemned++
			}
		}
		for _, c := range alive {
			err = multierr.Append(err, c.Reap())
		}
	}
	return condemned, err
}

func (g *graph) unreachable(members []int) bool {
	for _, i := range members {
		n := &g.nodes[i]
		if n.marked || !n.w.Finalized() {
			return false
		}
	}
	return true
}
