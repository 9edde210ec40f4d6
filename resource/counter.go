package resource

import "sync"

type counterKey struct {
	name string
	typ  EventType
}

// Counter is an Observer that tallies lifecycle events per resource name.
// Tests inject one per resource instead of relying on global drop counters.
type Counter struct {
	counts map[counterKey]int
	mu     sync.Mutex
}

// NewCounter creates an empty counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[counterKey]int)}
}

// OnResourceEvent records e.
func (c *Counter) OnResourceEvent(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[counterKey{e.Name, e.Type}]++
}

// Count returns how many events of type t were seen for name.
func (c *Counter) Count(name string, t EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[counterKey{name, t}]
}

// Destroyed returns how many payloads named name were torn down.
func (c *Counter) Destroyed(name string) int {
	return c.Count(name, EventDestroyed)
}

// Reset clears all tallies.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.counts)
}
