package main

import (
	"fmt"
	"sort"

	"github.com/wippyai/refbridge/bridge"
	"github.com/wippyai/refbridge/heap"
	"github.com/wippyai/refbridge/resource"
	"github.com/wippyai/refbridge/script"
)

// node is the demo resource used by every scenario.
type node struct {
	label    string
	children []*resource.Strong[*node]
	peer     *resource.Weak[*node]
	back     bridge.Member
	fail     bool
}

func (n *node) Trace(v resource.Visitor) {
	for _, c := range n.children {
		c.Trace(v)
	}
	n.peer.Trace(v)
	n.back.Trace(v)
}

func (n *node) Drop() error {
	if n.fail {
		return fmt.Errorf("%s: flush failed", n.label)
	}
	return nil
}

func (n *node) Methods() map[string]any {
	return map[string]any{
		"label":    func() string { return n.label },
		"children": func() int { return len(n.children) },
	}
}

type env struct {
	heap  *heap.Heap
	realm *script.Realm
	drops *resource.Counter
}

func (e *env) newNode(label string, children ...*resource.Strong[*node]) *resource.Strong[*node] {
	return resource.New(&node{label: label, children: children},
		resource.WithName(label), resource.WithObserver(e.drops))
}

// wrap wraps s, releases the caller's handle and optionally binds it.
func (e *env) wrap(l *heap.Lock, s *resource.Strong[*node], bind bool) (*bridge.Wrapper, error) {
	w, err := bridge.Wrap(l, s)
	if err != nil {
		return nil, err
	}
	name := s.Control().Name()
	s.Release()
	if bind {
		if err := e.realm.Bind(l, name, w); err != nil {
			return nil, err
		}
	}
	return w, nil
}

type scenario struct {
	name  string
	desc  string
	setup func(e *env, l *heap.Lock) error
}

var scenarios = []scenario{
	{
		name: "chain",
		desc: "a -> b -> c, all wrapped; disposing of the chain takes three passes",
		setup: func(e *env, l *heap.Lock) error {
			c := e.newNode("c")
			b := e.newNode("b", c.Clone())
			a := e.newNode("a", b.Clone())
			if _, err := e.wrap(l, a, true); err != nil {
				return err
			}
			if _, err := e.wrap(l, b, false); err != nil {
				return err
			}
			_, err := e.wrap(l, c, false)
			return err
		},
	},
	{
		name: "tree",
		desc: "wrapped parent owning two unwrapped children; one pass frees all three",
		setup: func(e *env, l *heap.Lock) error {
			parent := e.newNode("parent", e.newNode("left"), e.newNode("right"))
			_, err := e.wrap(l, parent, true)
			return err
		},
	},
	{
		name: "cycle",
		desc: "a <-> b strong cycle; reclaimed by condemning both payloads",
		setup: func(e *env, l *heap.Lock) error {
			a := e.newNode("a")
			b := e.newNode("b", a.Clone())
			a.Get().children = append(a.Get().children, b.Clone())
			if _, err := e.wrap(l, a, true); err != nil {
				return err
			}
			_, err := e.wrap(l, b, false)
			return err
		},
	},
	{
		name: "weak",
		desc: "holder with a weak field to a wrapped target; the weak edge does not keep it alive",
		setup: func(e *env, l *heap.Lock) error {
			target := e.newNode("target")
			holder := e.newNode("holder")
			holder.Get().peer = target.Downgrade()
			if _, err := e.wrap(l, holder, true); err != nil {
				return err
			}
			_, err := e.wrap(l, target, true)
			return err
		},
	},
	{
		name: "member",
		desc: "child points back at its parent's wrapper through a member field",
		setup: func(e *env, l *heap.Lock) error {
			child := e.newNode("child")
			parent := e.newNode("parent", child.Clone())
			pw, err := e.wrap(l, parent, true)
			if err != nil {
				return err
			}
			child.Get().back = bridge.NewMember(pw)
			_, err = e.wrap(l, child, false)
			return err
		},
	},
	{
		name: "failing",
		desc: "a resource whose teardown fails next to one that closes cleanly",
		setup: func(e *env, l *heap.Lock) error {
			bad := e.newNode("bad")
			bad.Get().fail = true
			if _, err := e.wrap(l, bad, true); err != nil {
				return err
			}
			_, err := e.wrap(l, e.newNode("good"), true)
			return err
		},
	},
}

func findScenario(name string) (scenario, bool) {
	for _, s := range scenarios {
		if s.name == name {
			return s, true
		}
	}
	return scenario{}, false
}

func scenarioNames() []string {
	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.name
	}
	sort.Strings(names)
	return names
}
