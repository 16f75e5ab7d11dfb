// Package flight implements per-kind single-flight guards: while an operation of a
// kind is running, further calls of that kind are rejected, not queued.
package flight

import (
	"sync/atomic"
)

// Kind names an operation class guarded independently of the others.
type Kind string

// Guarded operation kinds.
const (
	KindCreate  Kind = "create"
	KindSubmit  Kind = "submit"
	KindRefresh Kind = "refresh"
)

// Group holds one flag per kind.
type Group struct {
	flags map[Kind]*atomic.Bool
}

// NewGroup creates a group for the given kinds.
func NewGroup(kinds ...Kind) *Group {
	g := &Group{flags: make(map[Kind]*atomic.Bool, len(kinds))}
	for _, k := range kinds {
		g.flags[k] = new(atomic.Bool)
	}
	return g
}

// TryAcquire sets the kind's flag. It returns a release func and true when the
// caller now owns the slot; false when another call of the kind holds it.
// Release is idempotent.
func (g *Group) TryAcquire(kind Kind) (func(), bool) {
	flag, ok := g.flags[kind]
	if !ok || !flag.CompareAndSwap(false, true) {
		return func() {}, false
	}
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			flag.Store(false)
		}
	}, true
}

// InFlight reports whether the kind is currently held.
func (g *Group) InFlight(kind Kind) bool {
	flag, ok := g.flags[kind]
	return ok && flag.Load()
}

// Snapshot reports the flag of every kind.
func (g *Group) Snapshot() map[Kind]bool {
	out := make(map[Kind]bool, len(g.flags))
	for k, f := range g.flags {
		out[k] = f.Load()
	}
	return out
}
