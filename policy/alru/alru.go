// Package alru implements the approximate-LRU replacement policy: a
// doubly-linked most-recently-used/least-recently-used list plus a
// bounded, mostly lock-free "touched" buffer that lets cache hits avoid
// the policy's mutex on the fast path.
//
// Attach and targeted Evict/drain are serialized by a single mutex.
// Touch is split: a compare-and-swap on the node's own tri-state flag
// plus a fetch-and-add on the buffer's shared counter, falling into the
// mutex only when the buffer overflows and must be drained.
//
// The resulting order is approximate, not strict LRU: touches observed
// between two drains are reordered arbitrarily among themselves, but
// every touched node is guaranteed to rank more recently used than every
// untouched node after the next drain (triggered by either buffer
// overflow or an evict-oldest call).
package alru

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/nibcache/nibcache/internal/util"
	"github.com/nibcache/nibcache/metrics"
	"github.com/nibcache/nibcache/policy"
)

// ErrOutOfMemory is returned by Attach when node allocation fails. As in
// package index, production Go never observes this; it exists for
// fault-injection tests. See Options.Allocator.
var ErrOutOfMemory = errors.New("alru: out of memory")

// DefaultBufferSize is the touched buffer's capacity when
// Options.BufferSize is zero.
const DefaultBufferSize = 256

// tri-state values for node.wasUsed.
const (
	notUsed = int32(iota) // idle; node sits at its natural list position
	reserving             // a toucher has claimed a touched-buffer slot
	pending               // the claimed slot is live and awaiting drain
)

// node is the policy's own list element. It is never exposed outside
// this package except through the opaque policy.Node interface.
type node struct {
	data any
	slot *policy.Slot

	prev, next *node

	wasUsed atomic.Int32
	iUsed   int
}

// Data implements policy.Node.
func (n *node) Data() any { return n.data }

// touchedBuffer is the bounded, mostly lock-free batch of nodes awaiting
// reordering into the list. nUsed is padded against false sharing since
// every concurrent Touch contends on it. slots is an atomic-pointer slice
// rather than a plain []*node: Touch's fast path writes a slot without
// holding l.mu while drainLocked and targeted Evict read/clear slots
// under l.mu, so every access to a slot's contents must itself be atomic
// -- the nUsed counter only orders reservation of an index, not the
// store into it.
type touchedBuffer struct {
	_     util.CacheLinePad
	nUsed atomic.Uint32
	slots []atomic.Pointer[node]
}

// Options configures an LRU policy. The zero value is safe and uses
// DefaultBufferSize with no allocation faults, no metrics, and a
// standard logrus logger for the fail-stop diagnostic path.
type Options struct {
	// BufferSize is the touched buffer's capacity. <= 0 => DefaultBufferSize.
	BufferSize int
	// Allocator, if non-nil, is consulted before each node allocation
	// during Attach; a non-nil error makes Attach return ErrOutOfMemory
	// with no state change. Used by tests; leave nil in production.
	Allocator func() error
	// Metrics receives low-level operation counters. Nil => NoopRecorder.
	Metrics metrics.Recorder
	// Logger receives the fail-stop diagnostic if the touch protocol's
	// invariant is ever violated (concurrent misuse of the same Slot).
	// Nil => logrus.StandardLogger().
	Logger logrus.FieldLogger
}

// LRU is the approximate-LRU policy. The zero value is not usable;
// build one with New.
type LRU struct {
	mu         sync.Mutex
	head, tail *node // head = most-recently-used, tail = least-recently-used

	buf touchedBuffer

	alloc   func() error
	metrics metrics.Recorder
	log     logrus.FieldLogger
}

// New builds an LRU policy satisfying policy.Policy.
func New(opts Options) policy.Policy {
	bufSize := opts.BufferSize
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	l := &LRU{
		alloc:   opts.Allocator,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}
	l.buf.slots = make([]atomic.Pointer[node], bufSize)
	return l
}

// Attach creates a node for value, writes it into slot, and links it at
// the most-recently-used end of the list.
func (l *LRU) Attach(value any, slot *policy.Slot) (policy.Node, error) {
	if l.alloc != nil {
		if err := l.alloc(); err != nil {
			return nil, ErrOutOfMemory
		}
	}
	n := &node{data: value, slot: slot}
	slot.Store(n)

	l.mu.Lock()
	l.pushFront(n)
	l.mu.Unlock()

	l.metrics.PolicyAttach()
	return n, nil
}

// Touch marks the node currently occupying slot as recently used. If
// slot is empty (its node has already been evicted), Touch is a no-op:
// it reads *slot rather than trusting a cached node pointer, so a racing
// eviction is always observed correctly.
func (l *LRU) Touch(slot *policy.Slot) {
	pn := slot.Load()
	if pn == nil {
		return
	}
	n := pn.(*node)

	if !n.wasUsed.CompareAndSwap(notUsed, reserving) {
		// Another toucher already claimed this node's slot this cycle.
		return
	}

	i := l.reserveIndex()
	n.iUsed = i
	l.buf.slots[i].Store(n)

	if !n.wasUsed.CompareAndSwap(reserving, pending) {
		l.log.WithField("node", n).
			Fatal("alru: touch protocol violated: concurrent use of the same slot")
	}
	l.metrics.PolicyTouch()
}

// reserveIndex obtains a touched-buffer index via fetch-and-add,
// draining under the mutex on overflow and retrying once. Concurrent,
// non-overflowing touches keep incrementing the counter lock-free while
// a drain is in flight; the rare case where the post-drain index is
// still out of range is clamped rather than retried again, which is
// consistent with this policy's approximate ordering guarantees.
func (l *LRU) reserveIndex() int {
	n := len(l.buf.slots)
	i := int(l.buf.nUsed.Add(1)) - 1
	if i < n {
		return i
	}

	l.mu.Lock()
	l.drainLocked()
	i = int(l.buf.nUsed.Add(1)) - 1
	l.mu.Unlock()

	if i >= n {
		i = n - 1
	}
	return i
}

// drainLocked moves every live node in the touched buffer to the front
// of the list (most-recently-used), resets each node's flag, and resets
// the buffer. Must be called with l.mu held.
func (l *LRU) drainLocked() {
	n := len(l.buf.slots)
	used := int(l.buf.nUsed.Load())
	if used > n {
		used = n
	}
	moved := 0
	for i := 0; i < used; i++ {
		nd := l.buf.slots[i].Swap(nil)
		if nd == nil {
			continue
		}
		l.moveToFront(nd)
		nd.wasUsed.Store(notUsed)
		moved++
	}
	l.buf.nUsed.Store(0)
	l.metrics.PolicyDrain(moved)
}

// Evict removes and returns the data of a node. With slot non-nil it
// targets that specific node (detach); with slot nil it first drains the
// touched buffer, then removes the current least-recently-used node.
func (l *LRU) Evict(slot *policy.Slot) (value any, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n *node
	reason := "targeted"
	if slot != nil {
		pn := slot.Load()
		if pn == nil {
			return nil, false
		}
		n = pn.(*node)
	} else {
		reason = "oldest"
		l.drainLocked()
		n = l.tail
	}
	if n == nil {
		return nil, false
	}

	l.removeNode(n)
	if n.slot != nil {
		n.slot.Clear()
	}
	if n.wasUsed.Load() == pending {
		l.buf.slots[n.iUsed].CompareAndSwap(n, nil)
	}

	l.metrics.PolicyEvict(reason)
	return n.data, true
}

// ---- list mechanics (mu held by all callers) ----

func (l *LRU) pushFront(n *node) {
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

func (l *LRU) moveToFront(n *node) {
	if n == l.head {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if l.tail == n {
		l.tail = n.prev
	}
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

func (l *LRU) removeNode(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if l.head == n {
		l.head = n.next
	}
	if l.tail == n {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
}
