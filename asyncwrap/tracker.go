package asyncwrap

import (
	"github.com/joeycumines/goja-nativecore/binding"
)

// Counts is the allocation accounting for one kind of binding.
type Counts struct {
	Allocated int64
	Freed     int64
}

// Live returns the number of allocated bindings not yet freed.
func (c Counts) Live() int64 {
	return c.Allocated - c.Freed
}

// Tracker counts binding allocations per kind. The zero value is ready to
// use. Like the rest of the core, it is confined to the loop goroutine.
type Tracker struct {
	counts map[binding.NativeKind]*Counts
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) entry(kind binding.NativeKind) *Counts {
	if t.counts == nil {
		t.counts = make(map[binding.NativeKind]*Counts)
	}
	c := t.counts[kind]
	if c == nil {
		c = new(Counts)
		t.counts[kind] = c
	}
	return c
}

func (t *Tracker) alloc(kind binding.NativeKind) {
	if t != nil {
		t.entry(kind).Allocated++
	}
}

func (t *Tracker) free(kind binding.NativeKind) {
	if t != nil {
		t.entry(kind).Freed++
	}
}

// Counts returns the accounting for kind.
func (t *Tracker) Counts(kind binding.NativeKind) Counts {
	if t == nil || t.counts[kind] == nil {
		return Counts{}
	}
	return *t.counts[kind]
}

// Live returns the number of live bindings across all kinds.
func (t *Tracker) Live() int64 {
	if t == nil {
		return 0
	}
	var n int64
	for _, c := range t.counts {
		n += c.Live()
	}
	return n
}
