// Package index implements a concurrent, path-compressed radix trie
// (fan-out 16, one child per 4-bit nibble) over arbitrary-length binary
// keys. It is one of the two leaf components underneath a cache: the
// index decides which keys exist and maps each to an opaque value; it
// has no notion of eviction, TTL, or cost.
//
// Keys must be length-prefixed by the caller so that no stored key is a
// byte-prefix of another -- see entry.New, which does this. Passing keys
// where one is a prefix of another is a misuse the index does not
// detect cleanly (see Insert).
//
// All three public operations take the Index's mutex for their entire
// duration, allocation included; there is no lock-free read path.
package index

import (
	"bytes"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nibcache/nibcache/internal/util"
	"github.com/nibcache/nibcache/metrics"
)

// ErrExists is returned by Insert when a leaf with byte-identical key
// material is already present. The index is not modified.
var ErrExists = errors.New("index: key already present")

// ErrOutOfMemory is returned by Insert when node/leaf allocation fails.
// Production use never observes this (Go allocation does not fail
// observably); it exists so fault-injection tests can exercise the
// no-partial-mutation guarantee Insert makes. See Options.Allocator.
var ErrOutOfMemory = errors.New("index: out of memory")

// Options configures an Index. The zero value is safe and matches
// production defaults (no allocation faults, no metrics, no logging).
type Options struct {
	// Allocator, if non-nil, is consulted before each node/leaf
	// allocation during Insert; a non-nil error makes Insert return
	// ErrOutOfMemory with the trie left exactly as it was. Used by
	// tests; leave nil in production.
	Allocator func() error
	// Metrics receives low-level operation counters. Nil => NoopRecorder.
	Metrics metrics.Recorder
	// Logger receives optional debug traces of insert/remove path
	// decisions. Nil => no logging.
	Logger logrus.FieldLogger
}

// Index is a concurrent radix trie. The zero value is not usable; build
// one with New.
type Index struct {
	mu   sync.Mutex
	root node

	alloc   func() error
	metrics metrics.Recorder
	log     logrus.FieldLogger
}

// New builds an empty Index.
func New(opts Options) *Index {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoopRecorder{}
	}
	return &Index{
		alloc:   opts.Allocator,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}
}

func (ix *Index) checkAlloc() error {
	if ix.alloc == nil {
		return nil
	}
	return ix.alloc()
}

func (ix *Index) trace(msg string, fields logrus.Fields) {
	if ix.log == nil {
		return
	}
	ix.log.WithFields(fields).Debug(msg)
}

// Insert makes key reachable by Lookup with value. It returns ErrExists
// if a leaf with byte-identical key already exists (the index does not
// replace; the caller decides policy) or ErrOutOfMemory on a simulated
// allocation failure, in which case the trie is left exactly as it was.
//
// Insert performs, at most, two descents: the first locates any
// representative leaf sharing the longest possible prefix with key; the
// second locates the exact point at which the new leaf diverges from
// the rest of the trie.
func (ix *Index) Insert(key []byte, value any) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.checkAlloc(); err != nil {
		return ErrOutOfMemory
	}
	newLeaf := &leafNode{key: key, value: value}

	if ix.root == nil {
		ix.root = newLeaf
		ix.metrics.IndexInsert(0)
		return nil
	}

	// First descent: find a representative leaf. All leaves below any
	// node we step into share a prefix at least as long as the one
	// common to key and that subtree.
	depth := 0
	n := ix.root
	for {
		in, ok := n.(*innerNode)
		if !ok || in.byteOff >= len(key) {
			break
		}
		depth++
		child := in.children[util.SliceIndex(key[in.byteOff], in.bitOff)]
		if child != nil {
			n = child
			continue
		}
		n = anyLeaf(in)
		break
	}
	if in, ok := n.(*innerNode); ok {
		n = anyLeaf(in)
	}
	rep := n.(*leafNode)

	// Find the divergence point, accurate to a byte.
	commonLen := len(rep.key)
	if len(key) < commonLen {
		commonLen = len(key)
	}
	diff := 0
	for diff < commonLen && rep.key[diff] == key[diff] {
		diff++
	}
	if diff >= commonLen {
		// key and rep.key are prefixes of each other, or identical.
		// Well-formed (length-prefixed) callers never hit this except
		// on a true duplicate.
		ix.trace("insert: no divergence", logrus.Fields{"diff": diff})
		return ErrExists
	}

	// Divergence point within the single byte.
	at := rep.key[diff] ^ key[diff]
	sh := util.MSSBIndex(uint32(at)) &^ uint8(util.Slice-1)

	// Second descent: follow children whose discriminator is earlier than
	// or equal to (diff, sh); an existing node at exactly (diff, sh) is
	// stepped into, and the new leaf lands in its empty slot.
	n = ix.root
	parent := &ix.root
	for {
		in, ok := n.(*innerNode)
		if !ok {
			break
		}
		if !(in.byteOff < diff || (in.byteOff == diff && in.bitOff >= sh)) {
			break
		}
		parent = &in.children[util.SliceIndex(key[in.byteOff], in.bitOff)]
		n = *parent
	}

	if n == nil {
		// The divergence point lands on an already-empty slot: no new
		// internal node is needed, just place the leaf.
		*parent = newLeaf
		ix.trace("insert: placed into empty slot", logrus.Fields{"depth": depth})
		ix.metrics.IndexInsert(depth)
		return nil
	}

	if err := ix.checkAlloc(); err != nil {
		return ErrOutOfMemory
	}
	split := &innerNode{byteOff: diff, bitOff: sh}
	split.children[util.SliceIndex(rep.key[diff], sh)] = n
	split.children[util.SliceIndex(key[diff], sh)] = newLeaf
	*parent = split
	ix.trace("insert: split edge", logrus.Fields{"depth": depth, "byteOff": diff, "bitOff": sh})
	ix.metrics.IndexInsert(depth)
	return nil
}

// Lookup returns the value stored under key, or ok=false if absent.
func (ix *Index) Lookup(key []byte) (value any, ok bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	n := ix.root
	for {
		in, isInner := n.(*innerNode)
		if !isInner {
			break
		}
		if in.byteOff >= len(key) {
			return nil, false
		}
		n = in.children[util.SliceIndex(key[in.byteOff], in.bitOff)]
	}
	leaf, isLeaf := n.(*leafNode)
	if !isLeaf || !bytes.Equal(leaf.key, key) {
		return nil, false
	}
	return leaf.value, true
}

// Remove detaches and discards the leaf for key, returning its value.
// If the leaf's parent retains exactly one child afterward, that parent
// is itself collapsed into its own parent's slot (edge-shortening), so
// every internal node keeps at least two children. Remove never
// shortens past the root.
func (ix *Index) Remove(key []byte) (value any, ok bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var leafParentSlot *node
	leafSlot := &ix.root
	n := *leafSlot
	for {
		in, isInner := n.(*innerNode)
		if !isInner {
			break
		}
		if in.byteOff >= len(key) {
			return nil, false
		}
		leafParentSlot = leafSlot
		leafSlot = &in.children[util.SliceIndex(key[in.byteOff], in.bitOff)]
		n = *leafSlot
	}
	leaf, isLeaf := n.(*leafNode)
	if !isLeaf || !bytes.Equal(leaf.key, key) {
		return nil, false
	}
	value = leaf.value
	*leafSlot = nil
	ix.metrics.IndexRemove()

	if leafParentSlot == nil {
		return value, true // the removed leaf was the root
	}

	leafParent := (*leafParentSlot).(*innerNode)
	if count, only := countChildren(leafParent); count == 1 {
		*leafParentSlot = only
		ix.trace("remove: edge-shortened", logrus.Fields{"byteOff": leafParent.byteOff, "bitOff": leafParent.bitOff})
		ix.metrics.IndexEdgeShorten()
	}
	return value, true
}
