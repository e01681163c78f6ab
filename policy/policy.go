// Package policy defines the contract a replacement policy implements:
// attach a newly cached entry, mark an entry recently used on a hit, and
// evict either a specific entry or the oldest one. It is the generalized
// form of the teacher's policy.Hooks/ShardPolicy split: the teacher's
// policies share the shard's own list through Hooks because the shard
// owns storage, whereas a Policy here owns its list outright, so there
// is no separate hooks interface to thread through.
package policy

import "sync/atomic"

// Node is the minimal handle a Policy hands back from Attach. It lets a
// caller read back the opaque payload it attached without keeping its
// own copy.
type Node interface {
	// Data returns the payload passed to Attach.
	Data() any
}

// Slot is a caller-owned, zero-value-ready cell through which a policy
// keeps its node identifier coherent with the cache entry that owns it.
// Touch and targeted Evict address a policy node through a Slot rather
// than a node pointer cached by the caller, so that touching or evicting
// an entry whose node was already evicted is a safe no-op: the slot
// reads back empty instead of pointing at freed memory.
//
// The zero Slot is empty. Store/Load/Clear are called by Policy
// implementations (package alru; package null never touches the slot);
// callers only ever pass a *Slot through, never call these directly.
type Slot struct {
	p atomic.Pointer[Node]
}

// Store installs n as the slot's current occupant, or empties the slot
// if n is nil.
func (s *Slot) Store(n Node) {
	if n == nil {
		s.p.Store(nil)
		return
	}
	s.p.Store(&n)
}

// Load returns the slot's current occupant, or nil if the slot is empty
// (including: never attached, or attached and since evicted).
func (s *Slot) Load() Node {
	p := s.p.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Clear empties the slot. Called by a Policy when it destroys the node
// the slot points at.
func (s *Slot) Clear() { s.p.Store(nil) }

// Policy is the shared contract both the real approximate-LRU
// implementation (package alru) and the no-op stub (package null)
// satisfy, so the component that owns index+policy wiring can be
// parametrized over policy kind uniformly.
type Policy interface {
	// Attach creates a node for value, writes it into slot, and links it
	// at the most-recently-used end of the policy's list.
	Attach(value any, slot *Slot) (Node, error)
	// Touch marks the node currently occupying slot as recently used.
	// A slot that is empty (its node was already evicted) is a no-op.
	Touch(slot *Slot)
	// Evict removes and returns the data of a node. If slot is non-nil,
	// it removes that specific node (targeted evict/detach) and empties
	// the slot. If slot is nil, it removes the current oldest node.
	// Returns ok=false if there was nothing to evict.
	Evict(slot *Slot) (value any, ok bool)
}
