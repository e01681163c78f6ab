// Package null implements the no-op replacement policy: a component that
// wires a cache to package index alone, with no eviction behavior at
// all. It is useful for benchmarking the index in isolation and for
// callers that manage their own external eviction (or none).
package null

import "github.com/nibcache/nibcache/policy"

// none is a policy.Policy that tracks nothing and never evicts anything.
type none struct{}

// New builds a policy whose every operation is a no-op: Attach never
// populates slot and always returns (nil, nil); Touch does nothing;
// Evict always returns (nil, false), targeted or not.
func New() policy.Policy { return none{} }

func (none) Attach(value any, slot *policy.Slot) (policy.Node, error) { return nil, nil }

func (none) Touch(*policy.Slot) {}

func (none) Evict(slot *policy.Slot) (value any, ok bool) { return nil, false }
