package bridge

import "github.com/wippyai/refbridge/resource"

// Member is a resource field that refers to a wrapper object. It holds no
// native count: the target stays alive only while the holder is traced
// from a reachable wrapper.
type Member struct {
	w *Wrapper
}

// NewMember returns a member pointing at w.
func NewMember(w *Wrapper) Member {
	return Member{w: w}
}

// Get returns the referenced wrapper, or nil.
func (m Member) Get() *Wrapper {
	return m.w
}

// Reset clears the reference.
func (m *Member) Reset() {
	m.w = nil
}

// Trace reports the referenced wrapper to v.
func (m Member) Trace(v resource.Visitor) {
	if m.w != nil {
		v.VisitObject(m.w)
	}
}
