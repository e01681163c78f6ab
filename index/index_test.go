package index

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func ik(s string) []byte {
	b := make([]byte, 4+len(s))
	b[0] = byte(len(s))
	copy(b[4:], s)
	return b
}

// checkInvariant walks the whole trie and fails the test if any internal
// node has fewer than two non-nil children.
func checkInvariant(t *testing.T, ix *Index) {
	t.Helper()
	var walk func(n node)
	walk = func(n node) {
		in, ok := n.(*innerNode)
		if !ok {
			return
		}
		count, _ := countChildren(in)
		require.GreaterOrEqualf(t, count, 2, "internal node at byteOff=%d bitOff=%d has %d children", in.byteOff, in.bitOff, count)
		for _, c := range in.children {
			if c != nil {
				walk(c)
			}
		}
	}
	if ix.root != nil {
		walk(ix.root)
	}
}

func TestIndex_BasicInsertLookupRemove(t *testing.T) {
	ix := New(Options{})

	require.NoError(t, ix.Insert(ik("a"), 1))

	v, ok := ix.Lookup(ik("a"))
	require.True(t, ok)
	require.Equal(t, 1, v)

	_, ok = ix.Lookup(ik("b"))
	require.False(t, ok, "Lookup b must miss")

	v, ok = ix.Remove(ik("a"))
	require.True(t, ok)
	require.Equal(t, 1, v)

	_, ok = ix.Lookup(ik("a"))
	require.False(t, ok, "a must be absent after Remove")
}

func TestIndex_InsertDuplicateReturnsErrExists(t *testing.T) {
	ix := New(Options{})
	require.NoError(t, ix.Insert(ik("dup"), 1))
	require.ErrorIs(t, ix.Insert(ik("dup"), 2), ErrExists)

	v, ok := ix.Lookup(ik("dup"))
	require.True(t, ok)
	require.Equal(t, 1, v, "value must be unchanged")
}

func TestIndex_EdgeShorteningKeepsInvariant(t *testing.T) {
	ix := New(Options{})
	keys := []string{"alpha", "album", "alter", "beta"}
	for i, k := range keys {
		require.NoError(t, ix.Insert(ik(k), i))
	}
	checkInvariant(t, ix)

	for i, k := range keys {
		_, ok := ix.Remove(ik(k))
		require.True(t, ok, "Remove %q failed", k)
		checkInvariant(t, ix)
		for _, rest := range keys[i+1:] {
			_, ok := ix.Lookup(ik(rest))
			require.True(t, ok, "after removing %q, %q went missing", k, rest)
		}
	}
}

func TestIndex_ManyKeysRoundTrip(t *testing.T) {
	ix := New(Options{})
	const n = 2000
	for i := 0; i < n; i++ {
		k := ik(fmt.Sprintf("key-%06d", i))
		require.NoError(t, ix.Insert(k, i))
	}
	checkInvariant(t, ix)
	for i := 0; i < n; i++ {
		k := ik(fmt.Sprintf("key-%06d", i))
		v, ok := ix.Lookup(k)
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	for i := 0; i < n; i += 2 {
		k := ik(fmt.Sprintf("key-%06d", i))
		_, ok := ix.Remove(k)
		require.True(t, ok, "Remove %d failed", i)
	}
	checkInvariant(t, ix)
	for i := 0; i < n; i++ {
		k := ik(fmt.Sprintf("key-%06d", i))
		_, ok := ix.Lookup(k)
		if i%2 == 0 {
			require.False(t, ok, "key %d should have been removed", i)
		} else {
			require.True(t, ok, "key %d should still be present", i)
		}
	}
}

func TestIndex_AllocatorFailureLeavesTrieUnchanged(t *testing.T) {
	fail := false
	ix := New(Options{Allocator: func() error {
		if fail {
			return ErrOutOfMemory
		}
		return nil
	}})

	require.NoError(t, ix.Insert(ik("existing"), 1))

	fail = true
	require.ErrorIs(t, ix.Insert(ik("new"), 2), ErrOutOfMemory)

	_, ok := ix.Lookup(ik("new"))
	require.False(t, ok, "failed insert must not be visible")

	v, ok := ix.Lookup(ik("existing"))
	require.True(t, ok)
	require.Equal(t, 1, v, "existing entry must survive a failed insert elsewhere")
}

func TestIndex_RemoveMissingKey(t *testing.T) {
	ix := New(Options{})
	_, ok := ix.Remove(ik("nothing"))
	require.False(t, ok, "Remove on empty index must report ok=false")

	require.NoError(t, ix.Insert(ik("x"), 1))
	_, ok = ix.Remove(ik("y"))
	require.False(t, ok, "Remove on absent key must report ok=false")
}
