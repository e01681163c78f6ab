// Package entry defines the cache entry that both the index and the
// replacement policy reference (the data model the teacher's
// cache/node.go plays for a single shard's intrusive list, generalized
// to carry the index's length-prefixed key and the policy's
// back-pointer slot instead of shard-specific list links).
package entry

import (
	"encoding/binary"

	"github.com/nibcache/nibcache/policy"
)

// Entry is the cache-owned record the index and policy both reference.
// The index itself still borrows indexKey rather than copying it a
// second time -- neither the index nor the policy owns a copy beyond
// this one -- and Entry embeds the policy's back-pointer slot so Touch
// and targeted Evict are O(1).
type Entry struct {
	indexKey []byte
	// Value is the opaque payload the surrounding cache associates with
	// the key. The index and policy never interpret it.
	Value any
	// Slot is the back-pointer the attached policy keeps coherent.
	// Callers must not write to it directly; it is zero-ready.
	Slot policy.Slot
}

// New builds an Entry for key/value. It copies key once into a 4-byte
// little-endian length prefix followed by the key bytes, so that no two
// stored keys can be a byte-prefix of one another -- the contract
// index.Insert/Lookup/Remove require of their callers. IndexKey returns
// that buffer directly; the index does not copy it again.
func New(key []byte, value any) *Entry {
	ik := make([]byte, 4+len(key))
	binary.LittleEndian.PutUint32(ik, uint32(len(key)))
	copy(ik[4:], key)
	return &Entry{indexKey: ik, Value: value}
}

// IndexKey returns the length-prefixed byte string the index indexes
// this entry under.
func (e *Entry) IndexKey() []byte { return e.indexKey }

// Key returns the caller-supplied key without the length prefix.
func (e *Entry) Key() []byte { return e.indexKey[4:] }
