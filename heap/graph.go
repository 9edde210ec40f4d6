package heap

import (
	"github.com/wippyai/refbridge/bridge"
	"github.com/wippyai/refbridge/resource"
)

// node is one wrapper in a pass's reference graph.
type node struct {
	w     *bridge.Wrapper
	edges []int
	// owned[j] counts direct strong edges from this node to node j.
	owned  map[int]int
	comp   int
	cyclic bool
	root   bool
	marked bool
}

// graph is the wrapper graph traced at the start of a pass.
type graph struct {
	nodes []node
	index map[*bridge.Wrapper]int
	comps [][]int
}

// buildGraph traces ws into a graph. The error reports teardowns the tracer
// ended up running itself; the graph is complete regardless.
func buildGraph(host bridge.Host, ws []*bridge.Wrapper) (*graph, error) {
	g := &graph{
		nodes: make([]node, len(ws)),
		index: make(map[*bridge.Wrapper]int, len(ws)),
	}
	for i, w := range ws {
		g.nodes[i].w = w
		g.index[w] = i
	}

	var from int
	tr := bridge.NewTracer(host, func(e bridge.Edge) {
		to, ok := g.index[e.To]
		if !ok {
			return
		}
		n := &g.nodes[from]
		n.edges = append(n.edges, to)
		if e.Kind == bridge.EdgeStrong && e.Direct {
			if n.owned == nil {
				n.owned = make(map[int]int)
			}
			n.owned[to]++
		}
	})
	for i, w := range ws {
		from = i
		tr.TraceWrapper(w)
	}

	g.components()
	return g, tr.Err()
}

// components groups nodes into strongly connected components over every
// traced edge (Tarjan).
func (g *graph) components() {
	n := len(g.nodes)
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var stack []int
	next := 0

	var visit func(v int)
	visit = func(v int) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, u := range g.nodes[v].edges {
			if u == v {
				g.nodes[v].cyclic = true
			}
			if index[u] < 0 {
				visit(u)
				low[v] = min(low[v], low[u])
			} else if onStack[u] {
				low[v] = min(low[v], index[u])
			}
		}

		if low[v] != index[v] {
			return
		}
		comp := len(g.comps)
		var members []int
		for {
			u := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[u] = false
			g.nodes[u].comp = comp
			members = append(members, u)
			if u == v {
				break
			}
		}
		if len(members) > 1 {
			for _, u := range members {
				g.nodes[u].cyclic = true
			}
		}
		g.comps = append(g.comps, members)
	}

	for v := range g.nodes {
		if index[v] < 0 {
			visit(v)
		}
	}
}

// externalRefs returns the strong references to node i that are neither
// the wrapper's own handle nor fields of wrappers in the same component.
func (g *graph) externalRefs(i int) int {
	n := &g.nodes[i]
	refs := n.w.Control().StrongCount() - 1
	for _, j := range g.comps[n.comp] {
		refs -= g.nodes[j].owned[i]
	}
	return refs
}

// markFrom flags every node reachable from the root nodes.
func (g *graph) markFrom() int {
	var queue []int
	for i := range g.nodes {
		if g.nodes[i].root {
			g.nodes[i].marked = true
			queue = append(queue, i)
		}
	}
	marked := len(queue)
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, u := range g.nodes[v].edges {
			if !g.nodes[u].marked {
				g.nodes[u].marked = true
				marked++
				queue = append(queue, u)
			}
		}
	}
	return marked
}

// ownedCounter counts strong handles held by one payload that point into a
// set of control blocks. It does not trace through other resources.
type ownedCounter struct {
	targets map[*resource.Control]int
}

func (c *ownedCounter) VisitStrong(h resource.Handle) {
	if _, ok := c.targets[h.Control()]; ok {
		c.targets[h.Control()]++
	}
}

func (c *ownedCounter) VisitWeak(resource.Handle) {}

func (c *ownedCounter) VisitObject(o resource.Traceable) {
	if _, ok := o.(resource.Handle); ok {
		o.Trace(c)
	}
}
