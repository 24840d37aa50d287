package emotion

import (
	"fmt"
	"sync/atomic"
)

// ActionID names a robot motion.
type ActionID string

// DefaultCandidates is the stock motion table.
func DefaultCandidates() map[Label][]ActionID {
	return map[Label][]ActionID{
		Happy:   {"666_PE_PlayGuitar", "666_IM_Rooster"},
		Sad:     {"666_RE_Bye", "666_PE_Killed"},
		Angry:   {"666_DA_Scratching", "666_TA_LookRL"},
		Neutral: {"666_TA_LookLR", "666_TA_LookRL"},
	}
}

// Binding holds the candidate actions per label and the last candidate
// that played successfully. Candidates are fixed after construction. The
// cache is swapped atomically so readers on other goroutines see a
// consistent snapshot; only the Resolver writes it.
type Binding struct {
	candidates map[Label][]ActionID
	last       atomic.Pointer[map[Label]ActionID]
}

// NewBinding creates a binding. preferred seeds the cache and may be nil.
func NewBinding(candidates map[Label][]ActionID, preferred map[Label]ActionID) *Binding {
	b := &Binding{candidates: make(map[Label][]ActionID, len(candidates))}
	for l, ids := range candidates {
		b.candidates[l] = append([]ActionID(nil), ids...)
	}
	seed := make(map[Label]ActionID, len(preferred))
	for l, id := range preferred {
		seed[l] = id
	}
	b.last.Store(&seed)
	return b
}

// DefaultBinding returns the stock table with an empty cache.
func DefaultBinding() *Binding {
	return NewBinding(DefaultCandidates(), nil)
}

// BindingFromConfig builds a binding from label-keyed string maps as they
// appear in configuration files.
func BindingFromConfig(candidates map[string][]string, preferred map[string]string) (*Binding, error) {
	if len(candidates) == 0 {
		return NewBinding(DefaultCandidates(), nil), nil
	}
	c := make(map[Label][]ActionID, len(candidates))
	for name, ids := range candidates {
		l, err := ParseLabel(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLabel, name)
		}
		for _, id := range ids {
			c[l] = append(c[l], ActionID(id))
		}
	}
	p := make(map[Label]ActionID, len(preferred))
	for name, id := range preferred {
		l, err := ParseLabel(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLabel, name)
		}
		p[l] = ActionID(id)
	}
	return NewBinding(c, p), nil
}

// Candidates returns the ordered candidates for l.
func (b *Binding) Candidates(l Label) []ActionID {
	return b.candidates[l]
}

// Cached returns the last successful action for l.
func (b *Binding) Cached(l Label) (ActionID, bool) {
	id, ok := (*b.last.Load())[l]
	return id, ok
}

// Snapshot returns a copy of the cache.
func (b *Binding) Snapshot() map[Label]ActionID {
	cur := *b.last.Load()
	out := make(map[Label]ActionID, len(cur))
	for l, id := range cur {
		out[l] = id
	}
	return out
}

func (b *Binding) remember(l Label, id ActionID) {
	next := b.Snapshot()
	if next[l] == id {
		return
	}
	next[l] = id
	b.last.Store(&next)
}
